// Package testutil provides in-memory test doubles for the domain
// interfaces.
package testutil

import (
	"context"
	"sync"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
)

// FakeOffsetClient is a test double implementing domain.OffsetClient with
// configurable responses.
type FakeOffsetClient struct {
	Healthy    bool
	Groups     []string
	Committed  map[domain.GroupTopicPartition]int64
	Highwater  map[domain.TopicPartition]int64
	Leaderless []domain.TopicPartition
	Err        error

	// captured arguments
	FetchedGroups   config.ConsumerGroups
	HighwaterTopics []string
	Closed          bool
}

// NewFakeOffsetClient creates a healthy fake with empty maps.
func NewFakeOffsetClient() *FakeOffsetClient {
	return &FakeOffsetClient{
		Healthy:   true,
		Committed: map[domain.GroupTopicPartition]int64{},
		Highwater: map[domain.TopicPartition]int64{},
	}
}

func (f *FakeOffsetClient) IsHealthy() bool { return f.Healthy }

func (f *FakeOffsetClient) ListGroups(_ context.Context) ([]string, error) {
	return f.Groups, f.Err
}

func (f *FakeOffsetClient) FetchCommittedOffsets(_ context.Context, groups config.ConsumerGroups) (map[domain.GroupTopicPartition]int64, error) {
	f.FetchedGroups = groups
	if f.Err != nil {
		return nil, f.Err
	}
	out := make(map[domain.GroupTopicPartition]int64, len(f.Committed))
	for key, off := range f.Committed {
		if _, requested := groups[key.Group]; requested {
			out[key] = off
		}
	}
	return out, nil
}

func (f *FakeOffsetClient) ListHighwaterOffsets(_ context.Context, topics []string) (map[domain.TopicPartition]int64, []domain.TopicPartition, error) {
	f.HighwaterTopics = topics
	if f.Err != nil {
		return nil, nil, f.Err
	}
	return f.Highwater, f.Leaderless, nil
}

func (f *FakeOffsetClient) Close() { f.Closed = true }

// FakeLegacySource is a test double implementing domain.LegacyOffsetSource.
type FakeLegacySource struct {
	Offsets map[domain.GroupTopicPartition]int64
	Err     error

	// FetchedGroups records the groups argument of the last FetchOffsets call.
	FetchedGroups config.ConsumerGroups
	Called        bool
}

func (f *FakeLegacySource) FetchOffsets(_ context.Context, groups config.ConsumerGroups) (map[domain.GroupTopicPartition]int64, error) {
	f.FetchedGroups = groups
	f.Called = true
	return f.Offsets, f.Err
}

// FakeFactory is a test double implementing domain.ClientFactory.
type FakeFactory struct {
	Client *FakeOffsetClient
	Legacy *FakeLegacySource
	Err    error
}

func (f *FakeFactory) CreateClient(_ config.Instance, _ config.InitConfig) (domain.OffsetClient, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Client == nil {
		return NewFakeOffsetClient(), nil
	}
	return f.Client, nil
}

func (f *FakeFactory) CreateLegacySource(_ config.Instance, _ config.InitConfig) (domain.LegacyOffsetSource, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Legacy == nil {
		return &FakeLegacySource{}, nil
	}
	return f.Legacy, nil
}

// FakeInstanceRepository is a simple in-memory repository for tests.
type FakeInstanceRepository struct {
	Init      config.InitConfig
	Instances []config.Instance
	Clients   map[string]domain.OffsetClient
}

func NewFakeInstanceRepository() *FakeInstanceRepository {
	return &FakeInstanceRepository{
		Init:    config.InitConfig{KafkaTimeout: config.DefaultKafkaTimeout, ZKTimeout: config.DefaultZKTimeout, MaxPartitionContexts: config.DefaultMaxPartitionContexts, CheckInterval: config.DefaultCheckInterval},
		Clients: map[string]domain.OffsetClient{},
	}
}

func (r *FakeInstanceRepository) InitConfig() config.InitConfig { return r.Init }

func (r *FakeInstanceRepository) FindAll() []config.Instance { return r.Instances }

func (r *FakeInstanceRepository) FindByID(id string) (config.Instance, bool) {
	for _, inst := range r.Instances {
		if inst.ID() == id {
			return inst, true
		}
	}
	return config.Instance{}, false
}

func (r *FakeInstanceRepository) GetClient(id string) (domain.OffsetClient, bool) {
	c, ok := r.Clients[id]
	return c, ok
}

func (r *FakeInstanceRepository) Watch() error { return nil }
func (r *FakeInstanceRepository) Close()       {}

// RecordingSink captures every gauge and event for assertions.
type RecordingSink struct {
	mu      sync.Mutex
	Metrics []domain.Metric
	Events  []domain.Event
}

func (s *RecordingSink) Gauge(name string, value float64, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metrics = append(s.Metrics, domain.Metric{Name: name, Value: value, Tags: tags})
}

func (s *RecordingSink) Event(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
}

// MetricsNamed returns the captured metrics with the given name.
func (s *RecordingSink) MetricsNamed(name string) []domain.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Metric
	for _, m := range s.Metrics {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
