package application

import "errors"

var (
	// ErrInstanceNotFound is returned when an instance id is unknown.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrClientUnavailable is returned when an instance has no usable
	// Kafka client, typically because creation failed at load time.
	ErrClientUnavailable = errors.New("kafka client unavailable")

	// ErrNoConsumerGroups is returned when a run ends up with no groups to
	// fetch Kafka offsets for and discovery is disabled.
	ErrNoConsumerGroups = errors.New("no consumer groups to monitor, specify consumer_groups or enable monitor_unlisted_consumer_groups")
)
