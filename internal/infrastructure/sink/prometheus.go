package sink

import (
	"strings"

	"github.com/lagscout/lagscout/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes the check's gauges through a Prometheus registry.
// Tag lists are mapped onto the fixed label set; tags outside it are dropped
// from the labels (they remain visible in the log sink and status API).
type PrometheusSink struct {
	registry *prometheus.Registry

	brokerOffset   *prometheus.GaugeVec
	consumerOffset *prometheus.GaugeVec
	consumerLag    *prometheus.GaugeVec
	events         *prometheus.CounterVec
}

var gaugeLabels = []string{"topic", "partition", "consumer_group", "source"}

// NewPrometheusSink creates a sink backed by its own registry.
func NewPrometheusSink() *PrometheusSink {
	s := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		brokerOffset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kafka_broker_offset",
			Help: "Latest produced offset per topic partition.",
		}, gaugeLabels),
		consumerOffset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kafka_consumer_offset",
			Help: "Last committed consumer offset per group and topic partition.",
		}, gaugeLabels),
		consumerLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Difference between the broker highwater and the committed consumer offset.",
		}, gaugeLabels),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lagscout_events_total",
			Help: "Events emitted by the check, by type and severity.",
		}, []string{"event_type", "severity"}),
	}
	s.registry.MustRegister(s.brokerOffset, s.consumerOffset, s.consumerLag, s.events)
	return s
}

// Registry returns the backing registry, for the /metrics handler.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// Gauge records a gauge sample under the matching metric family.
func (s *PrometheusSink) Gauge(name string, value float64, tags []string) {
	labels := labelsFromTags(tags)
	switch name {
	case domain.MetricBrokerOffset:
		s.brokerOffset.With(labels).Set(value)
	case domain.MetricConsumerOffset:
		s.consumerOffset.With(labels).Set(value)
	case domain.MetricConsumerLag:
		s.consumerLag.With(labels).Set(value)
	}
}

// Event counts an event.
func (s *PrometheusSink) Event(ev domain.Event) {
	s.events.WithLabelValues(ev.EventType, ev.Severity).Inc()
}

// labelsFromTags extracts the fixed label set from key:value tags.
func labelsFromTags(tags []string) prometheus.Labels {
	labels := prometheus.Labels{}
	for _, l := range gaugeLabels {
		labels[l] = ""
	}
	for _, tag := range tags {
		k, v, ok := strings.Cut(tag, ":")
		if !ok {
			continue
		}
		if _, want := labels[k]; want {
			labels[k] = v
		}
	}
	return labels
}
