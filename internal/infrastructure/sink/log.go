// Package sink provides the metric sinks the check reports into.
package sink

import (
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

// LogSink writes every gauge and event to the structured logger. Mostly
// useful at debug level and in development.
type LogSink struct{}

// NewLogSink creates a new LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Gauge logs a gauge sample.
func (s *LogSink) Gauge(name string, value float64, tags []string) {
	utils.Logger.Debug("gauge", "name", name, "value", value, "tags", tags)
}

// Event logs an event at a level matching its severity.
func (s *LogSink) Event(ev domain.Event) {
	switch ev.Severity {
	case "error":
		utils.Logger.Error(ev.Title, "text", ev.Text, "tags", ev.Tags)
	case "warning":
		utils.Logger.Warn(ev.Title, "text", ev.Text, "tags", ev.Tags)
	default:
		utils.Logger.Info(ev.Title, "text", ev.Text, "tags", ev.Tags)
	}
}

// MultiSink fans out to several sinks.
type MultiSink []domain.Sink

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...domain.Sink) MultiSink {
	return MultiSink(sinks)
}

// Gauge forwards to every sink.
func (m MultiSink) Gauge(name string, value float64, tags []string) {
	for _, s := range m {
		s.Gauge(name, value, tags)
	}
}

// Event forwards to every sink.
func (m MultiSink) Event(ev domain.Event) {
	for _, s := range m {
		s.Event(ev)
	}
}
