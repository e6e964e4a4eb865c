// Package domain defines the core entities of the lag check: topic-partition
// offset maps, emitted metrics and events, run results, and the abstractions
// over Kafka, Zookeeper, and metric sinks.
package domain

import "time"

// Metric names emitted by the check.
const (
	MetricBrokerOffset   = "kafka.broker_offset"
	MetricConsumerOffset = "kafka.consumer_offset"
	MetricConsumerLag    = "kafka.consumer_lag"
)

// Offset source tag values.
const (
	SourceKafka = "kafka"
	SourceZK    = "zk"
)

// TopicPartition identifies one partition of a topic.
type TopicPartition struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
}

// GroupTopicPartition identifies one partition consumed by a group; it is the
// unit the partition-context cap counts.
type GroupTopicPartition struct {
	Group     string `json:"group"`
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
}

// TP returns the topic-partition half of the key.
func (g GroupTopicPartition) TP() TopicPartition {
	return TopicPartition{Topic: g.Topic, Partition: g.Partition}
}

// Metric is a single gauge sample.
type Metric struct {
	Name  string   `json:"name"`
	Value float64  `json:"value"`
	Tags  []string `json:"tags,omitempty"`
}

// Event is an out-of-band notification, e.g. negative consumer lag.
type Event struct {
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	EventType      string    `json:"event_type"`
	AggregationKey string    `json:"aggregation_key"`
	Severity       string    `json:"severity"`
	SourceTypeName string    `json:"source_type_name"`
	Tags           []string  `json:"tags,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// CheckResult summarizes one run of the check against one instance.
type CheckResult struct {
	Instance  string        `json:"instance"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Metrics   []Metric      `json:"metrics,omitempty"`
	Events    []Event       `json:"events,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Err       string        `json:"error,omitempty"`
}
