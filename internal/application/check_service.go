// Package application implements the consumer-lag check and its scheduler.
package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

const sourceTypeName = "kafka"

// CheckService runs the consumer-lag check against configured instances.
type CheckService struct {
	repo    domain.InstanceRepository
	factory domain.ClientFactory
	sink    domain.Sink
}

// NewCheckService creates a new check service.
func NewCheckService(repo domain.InstanceRepository, factory domain.ClientFactory, sink domain.Sink) *CheckService {
	return &CheckService{repo: repo, factory: factory, sink: sink}
}

// RunByID runs the check for a single instance by id.
func (s *CheckService) RunByID(ctx context.Context, id string) (domain.CheckResult, error) {
	inst, ok := s.repo.FindByID(id)
	if !ok {
		return domain.CheckResult{}, ErrInstanceNotFound
	}
	return s.Run(ctx, inst), nil
}

// Run executes one check pass for an instance: consumer offsets (Kafka and,
// when configured, Zookeeper), broker highwater offsets, then per-partition
// lag.
func (s *CheckService) Run(ctx context.Context, inst config.Instance) domain.CheckResult {
	res := domain.CheckResult{Instance: inst.ID(), StartedAt: time.Now()}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	client, ok := s.repo.GetClient(inst.ID())
	if !ok {
		res.Err = ErrClientUnavailable.Error()
		return res
	}

	init := s.repo.InitConfig()

	// Consumer offsets are fetched before broker offsets: whichever side is
	// read first may be stale by the time the other is read, and reading the
	// consumer side first means lag is at worst overstated, never negative
	// from the race alone.
	zkOffsets := s.fetchZookeeperOffsets(ctx, inst, init, &res)
	kafkaOffsets := s.fetchKafkaOffsets(ctx, inst, client, &res)

	// Cap the number of (group, topic, partition) contexts per source. An
	// oversized run reports nothing so a misconfigured instance cannot flood
	// the metric backend.
	limit := init.MaxPartitionContexts
	if tooManyContexts(len(zkOffsets), limit, &res) || tooManyContexts(len(kafkaOffsets), limit, &res) {
		return res
	}

	topics := topicsToFetch(inst, kafkaOffsets, zkOffsets)
	highwater, leaderless, err := client.ListHighwaterOffsets(ctx, topics)
	if err != nil {
		utils.Logger.Error("there was a problem collecting the highwater offsets", "instance", inst.ID(), "err", err)
		res.Err = err.Error()
		return res
	}

	for _, tp := range sortedTPs(highwater) {
		tags := append([]string{
			"topic:" + tp.Topic,
			"partition:" + strconv.Itoa(int(tp.Partition)),
		}, inst.Tags...)
		s.gauge(&res, domain.MetricBrokerOffset, float64(highwater[tp]), tags)
	}

	if len(zkOffsets) > 0 {
		s.reportConsumerMetrics(&res, highwater, zkOffsets, leaderless, inst.Tags, domain.SourceZK)
	}
	if len(kafkaOffsets) > 0 {
		s.reportConsumerMetrics(&res, highwater, kafkaOffsets, leaderless, inst.Tags, domain.SourceKafka)
	}

	return res
}

// fetchZookeeperOffsets reads offsets from the deprecated Zookeeper storage
// when zk_connect_str is set.
func (s *CheckService) fetchZookeeperOffsets(ctx context.Context, inst config.Instance, init config.InitConfig, res *domain.CheckResult) map[domain.GroupTopicPartition]int64 {
	if len(inst.ZKConnectStr) == 0 {
		return nil
	}
	src, err := s.factory.CreateLegacySource(inst, init)
	if err != nil {
		s.warn(res, fmt.Sprintf("could not create zookeeper source: %v", err))
		return nil
	}
	groups := inst.ConsumerGroups
	if inst.MonitorUnlistedConsumerGroups {
		// nil groups makes the source enumerate every group under the
		// consumers znode, which covers the explicit ones too
		groups = nil
	}
	offsets, err := src.FetchOffsets(ctx, groups)
	if err != nil {
		s.warn(res, fmt.Sprintf("could not fetch zookeeper consumer offsets: %v", err))
		return nil
	}
	return offsets
}

// fetchKafkaOffsets reads committed offsets through the consumer group API,
// discovering groups first when monitor_unlisted_consumer_groups is set.
func (s *CheckService) fetchKafkaOffsets(ctx context.Context, inst config.Instance, client domain.OffsetClient, res *domain.CheckResult) map[domain.GroupTopicPartition]int64 {
	if !inst.FetchKafkaOffsets() {
		return nil
	}

	groups := make(config.ConsumerGroups, len(inst.ConsumerGroups))
	for g, topics := range inst.ConsumerGroups {
		groups[g] = topics
	}
	if inst.MonitorUnlistedConsumerGroups {
		names, err := client.ListGroups(ctx)
		if err != nil {
			s.warn(res, fmt.Sprintf("could not list consumer groups: %v", err))
		}
		for _, g := range names {
			if _, explicit := groups[g]; !explicit {
				groups[g] = nil
			}
		}
	}
	if len(groups) == 0 {
		if len(inst.ZKConnectStr) == 0 {
			res.Err = ErrNoConsumerGroups.Error()
		}
		return nil
	}

	offsets, err := client.FetchCommittedOffsets(ctx, groups)
	if err != nil {
		s.warn(res, fmt.Sprintf("could not fetch kafka consumer offsets: %v", err))
		return nil
	}
	return offsets
}

// reportConsumerMetrics emits consumer offset and lag gauges for one offset
// source, and an error event for any negative lag.
func (s *CheckService) reportConsumerMetrics(res *domain.CheckResult, highwater map[domain.TopicPartition]int64, offsets map[domain.GroupTopicPartition]int64, leaderless []domain.TopicPartition, customTags []string, source string) {
	noLeader := make(map[domain.TopicPartition]struct{}, len(leaderless))
	for _, tp := range leaderless {
		noLeader[tp] = struct{}{}
	}

	for _, key := range sortedGTPs(offsets) {
		offset := offsets[key]
		tp := key.TP()
		hw, ok := highwater[tp]
		if !ok {
			utils.Logger.Warn("no highwater offset for consumed partition, skipping",
				"group", key.Group, "topic", key.Topic, "partition", key.Partition)
			if _, leaderlessTP := noLeader[tp]; !leaderlessTP {
				utils.Logger.Warn("group has offsets for a topic partition that does not exist in the cluster",
					"group", key.Group, "topic", key.Topic, "partition", key.Partition)
			}
			continue
		}

		tags := append([]string{
			"topic:" + key.Topic,
			"partition:" + strconv.Itoa(int(key.Partition)),
			"consumer_group:" + key.Group,
			"source:" + source,
		}, customTags...)

		s.gauge(res, domain.MetricConsumerOffset, float64(offset), tags)

		lag := hw - offset
		if lag < 0 {
			// negative lag means committed past the highwater, i.e. data
			// loss; surface it loudly
			ev := domain.Event{
				Title:          fmt.Sprintf("Negative consumer lag for group: %s.", key.Group),
				Text:           fmt.Sprintf("Consumer lag for group: %s, topic: %s, partition: %d is negative. This should never happen.", key.Group, key.Topic, key.Partition),
				EventType:      "consumer_lag",
				AggregationKey: fmt.Sprintf("%s:%s:%d", key.Group, key.Topic, key.Partition),
				Severity:       "error",
				SourceTypeName: sourceTypeName,
				Tags:           tags,
				Timestamp:      time.Now(),
			}
			res.Events = append(res.Events, ev)
			s.sink.Event(ev)
		}
		s.gauge(res, domain.MetricConsumerLag, float64(lag), tags)
	}
}

func (s *CheckService) gauge(res *domain.CheckResult, name string, value float64, tags []string) {
	res.Metrics = append(res.Metrics, domain.Metric{Name: name, Value: value, Tags: tags})
	s.sink.Gauge(name, value, tags)
}

func (s *CheckService) warn(res *domain.CheckResult, msg string) {
	utils.Logger.Warn(msg, "instance", res.Instance)
	res.Warnings = append(res.Warnings, msg)
}

func tooManyContexts(n, limit int, res *domain.CheckResult) bool {
	if limit <= 0 || n <= limit {
		return false
	}
	msg := fmt.Sprintf("discovered %d partition contexts, exceeding the limit of %d; narrow the consumer groups, topics, and partitions to monitor", n, limit)
	utils.Logger.Warn(msg, "instance", res.Instance)
	res.Warnings = append(res.Warnings, msg)
	return true
}

// topicsToFetch collects every topic referenced by an offset, falling back
// to the explicitly configured topics when no offsets were found.
func topicsToFetch(inst config.Instance, sources ...map[domain.GroupTopicPartition]int64) []string {
	set := make(map[string]struct{})
	for _, offsets := range sources {
		for key := range offsets {
			set[key.Topic] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, topics := range inst.ConsumerGroups {
			for topic := range topics {
				set[topic] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func sortedTPs(m map[domain.TopicPartition]int64) []domain.TopicPartition {
	out := make([]domain.TopicPartition, 0, len(m))
	for tp := range m {
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}

func sortedGTPs(m map[domain.GroupTopicPartition]int64) []domain.GroupTopicPartition {
	out := make([]domain.GroupTopicPartition, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}
