package domain

import (
	"context"

	"github.com/lagscout/lagscout/internal/config"
)

// OffsetClient exposes the broker-side operations the check needs.
type OffsetClient interface {
	// IsHealthy reports whether the cluster answers metadata requests.
	IsHealthy() bool

	// ListGroups returns all consumer group names known to the cluster.
	ListGroups(ctx context.Context) ([]string, error)

	// FetchCommittedOffsets returns committed offsets for the requested
	// groups. An empty topic map fetches every topic the group has commits
	// for; an empty partition list fetches every committed partition of the
	// topic.
	FetchCommittedOffsets(ctx context.Context, groups config.ConsumerGroups) (map[GroupTopicPartition]int64, error)

	// ListHighwaterOffsets returns the latest offset of every partition of
	// the named topics, plus the partitions currently without a leader.
	ListHighwaterOffsets(ctx context.Context, topics []string) (map[TopicPartition]int64, []TopicPartition, error)

	// Close releases the underlying connections.
	Close()
}

// LegacyOffsetSource reads consumer offsets from Zookeeper, the pre-0.9
// offset storage. Passing nil groups discovers every group under the
// consumers znode.
type LegacyOffsetSource interface {
	FetchOffsets(ctx context.Context, groups config.ConsumerGroups) (map[GroupTopicPartition]int64, error)
}

// ClientFactory builds offset clients from instance configuration.
type ClientFactory interface {
	CreateClient(inst config.Instance, init config.InitConfig) (OffsetClient, error)
	CreateLegacySource(inst config.Instance, init config.InitConfig) (LegacyOffsetSource, error)
}

// InstanceRepository manages the configured instances and their clients.
type InstanceRepository interface {
	InitConfig() config.InitConfig
	FindAll() []config.Instance
	FindByID(id string) (config.Instance, bool)
	GetClient(id string) (OffsetClient, bool)
	Watch() error
	Close()
}

// Sink receives the gauges and events the check emits.
type Sink interface {
	Gauge(name string, value float64, tags []string)
	Event(ev Event)
}
