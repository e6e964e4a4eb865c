package kafka

import (
	"context"
	"time"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
	"github.com/twmb/franz-go/pkg/kadm"
)

// Admin performs the offset and group queries over kadm.
type Admin struct {
	client  *kadm.Client
	timeout time.Duration
}

// NewAdmin creates a new Admin.
func NewAdmin(client *kadm.Client, timeout time.Duration) *Admin {
	if timeout <= 0 {
		timeout = config.DefaultKafkaTimeout * time.Second
	}
	return &Admin{client: client, timeout: timeout}
}

// IsHealthy checks if the cluster is reachable.
func (a *Admin) IsHealthy() bool {
	if a == nil || a.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	_, err := a.client.BrokerMetadata(ctx)
	return err == nil
}

// ListGroups returns all consumer group names known to the cluster.
func (a *Admin) ListGroups(ctx context.Context) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	listed, err := a.client.ListGroups(cctx)
	if err != nil {
		return nil, err
	}
	return listed.Groups(), nil
}

// FetchCommittedOffsets fetches committed offsets for the requested groups,
// filtered down to the configured topics and partitions. An empty topic map
// or partition list keeps everything the group has committed.
func (a *Admin) FetchCommittedOffsets(ctx context.Context, groups config.ConsumerGroups) (map[domain.GroupTopicPartition]int64, error) {
	out := make(map[domain.GroupTopicPartition]int64)

	for group, topics := range groups {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		resp, err := a.client.FetchOffsets(cctx, group)
		cancel()
		if err != nil {
			utils.Logger.Error("could not read consumer offsets", "group", group, "err", err)
			continue
		}
		if err := resp.Error(); err != nil {
			utils.Logger.Error("offset fetch returned an error", "group", group, "err", err)
			continue
		}

		resp.Each(func(o kadm.OffsetResponse) {
			if o.Err != nil || o.At < 0 {
				return
			}
			if !wantTopicPartition(topics, o.Topic, o.Partition) {
				return
			}
			key := domain.GroupTopicPartition{Group: group, Topic: o.Topic, Partition: o.Partition}
			out[key] = o.At
		})
	}

	return out, nil
}

// ListHighwaterOffsets returns the latest offset of every partition of the
// named topics. Partitions whose listing failed (typically leaderless during
// an election) are returned separately.
func (a *Admin) ListHighwaterOffsets(ctx context.Context, topics []string) (map[domain.TopicPartition]int64, []domain.TopicPartition, error) {
	if len(topics) == 0 {
		return map[domain.TopicPartition]int64{}, nil, nil
	}

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	listed, err := a.client.ListEndOffsets(cctx, topics...)
	if err != nil {
		return nil, nil, err
	}

	highwater := make(map[domain.TopicPartition]int64)
	var leaderless []domain.TopicPartition
	listed.Each(func(lo kadm.ListedOffset) {
		tp := domain.TopicPartition{Topic: lo.Topic, Partition: lo.Partition}
		if lo.Err != nil {
			utils.Logger.Warn("no highwater offset for partition",
				"topic", lo.Topic, "partition", lo.Partition, "err", lo.Err)
			leaderless = append(leaderless, tp)
			return
		}
		highwater[tp] = lo.Offset
	})

	return highwater, leaderless, nil
}

// wantTopicPartition applies the configured topic/partition filter of one
// group; empty maps and lists mean "keep everything".
func wantTopicPartition(topics map[string][]int32, topic string, partition int32) bool {
	if len(topics) == 0 {
		return true
	}
	partitions, ok := topics[topic]
	if !ok {
		return false
	}
	if len(partitions) == 0 {
		return true
	}
	for _, p := range partitions {
		if p == partition {
			return true
		}
	}
	return false
}
