package application

import (
	"context"
	"testing"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/testutil"
	"github.com/lagscout/lagscout/internal/utils"
	"github.com/stretchr/testify/require"
)

func newInstance() config.Instance {
	return config.Instance{
		Name:            "test",
		KafkaConnectStr: config.StringOrList{"localhost:9092"},
		ConsumerGroups:  config.ConsumerGroups{"g1": {"orders": []int32{0, 1}}},
	}
}

func boolPtr(b bool) *bool { return &b }

func setup(t *testing.T, inst config.Instance, client *testutil.FakeOffsetClient) (*CheckService, *testutil.RecordingSink, *testutil.FakeInstanceRepository) {
	t.Helper()
	utils.InitLogger()
	repo := testutil.NewFakeInstanceRepository()
	repo.Instances = []config.Instance{inst}
	repo.Clients[inst.ID()] = client
	recorder := &testutil.RecordingSink{}
	svc := NewCheckService(repo, &testutil.FakeFactory{Client: client}, recorder)
	return svc, recorder, repo
}

func TestCheckService_LagComputation(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	client := testutil.NewFakeOffsetClient()
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "g1", Topic: "orders", Partition: 0}: 90,
		{Group: "g1", Topic: "orders", Partition: 1}: 100,
	}
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 100,
		{Topic: "orders", Partition: 1}: 100,
	}

	svc, recorder, _ := setup(t, inst, client)
	res := svc.Run(context.Background(), inst)

	require.Empty(t, res.Err)
	require.Empty(t, res.Warnings)

	broker := recorder.MetricsNamed(domain.MetricBrokerOffset)
	require.Len(t, broker, 2)

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 2)
	require.Equal(t, float64(10), lags[0].Value)
	require.Equal(t, float64(0), lags[1].Value)
	require.Contains(t, lags[0].Tags, "consumer_group:g1")
	require.Contains(t, lags[0].Tags, "topic:orders")
	require.Contains(t, lags[0].Tags, "partition:0")
	require.Contains(t, lags[0].Tags, "source:kafka")

	offsets := recorder.MetricsNamed(domain.MetricConsumerOffset)
	require.Len(t, offsets, 2)
	require.Equal(t, float64(90), offsets[0].Value)

	require.Empty(t, recorder.Events)
}

func TestCheckService_CustomTagsPropagate(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	inst.Tags = []string{"env:prod", "team:data"}
	client := testutil.NewFakeOffsetClient()
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "g1", Topic: "orders", Partition: 0}: 5,
	}
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 10,
	}

	svc, recorder, _ := setup(t, inst, client)
	svc.Run(context.Background(), inst)

	for _, m := range recorder.Metrics {
		require.Contains(t, m.Tags, "env:prod")
		require.Contains(t, m.Tags, "team:data")
	}
}

func TestCheckService_NegativeLagEmitsEvent(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	client := testutil.NewFakeOffsetClient()
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "g1", Topic: "orders", Partition: 0}: 120,
	}
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 100,
	}

	svc, recorder, _ := setup(t, inst, client)
	res := svc.Run(context.Background(), inst)

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 1)
	require.Equal(t, float64(-20), lags[0].Value)

	require.Len(t, recorder.Events, 1)
	ev := recorder.Events[0]
	require.Equal(t, "error", ev.Severity)
	require.Equal(t, "consumer_lag", ev.EventType)
	require.Equal(t, "g1:orders:0", ev.AggregationKey)
	require.Len(t, res.Events, 1)
}

func TestCheckService_ContextCapSkipsReporting(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	inst.ConsumerGroups = config.ConsumerGroups{"g1": nil}
	client := testutil.NewFakeOffsetClient()
	for p := int32(0); p < 10; p++ {
		client.Committed[domain.GroupTopicPartition{Group: "g1", Topic: "orders", Partition: p}] = 1
		client.Highwater[domain.TopicPartition{Topic: "orders", Partition: p}] = 2
	}

	svc, recorder, repo := setup(t, inst, client)
	repo.Init.MaxPartitionContexts = 5

	res := svc.Run(context.Background(), inst)
	require.NotEmpty(t, res.Warnings)
	require.Empty(t, recorder.Metrics)
}

func TestCheckService_MissingHighwaterSkipsPartition(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	client := testutil.NewFakeOffsetClient()
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "g1", Topic: "orders", Partition: 0}: 50,
		{Group: "g1", Topic: "orders", Partition: 1}: 60,
	}
	// partition 1 has no highwater, e.g. leaderless during an election
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 55,
	}
	client.Leaderless = []domain.TopicPartition{{Topic: "orders", Partition: 1}}

	svc, recorder, _ := setup(t, inst, client)
	svc.Run(context.Background(), inst)

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 1)
	require.Contains(t, lags[0].Tags, "partition:0")
}

func TestCheckService_MonitorUnlistedDiscoversGroups(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	inst.ConsumerGroups = nil
	inst.MonitorUnlistedConsumerGroups = true
	client := testutil.NewFakeOffsetClient()
	client.Groups = []string{"discovered"}
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "discovered", Topic: "orders", Partition: 0}: 10,
	}
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 15,
	}

	svc, recorder, _ := setup(t, inst, client)
	res := svc.Run(context.Background(), inst)

	require.Empty(t, res.Err)
	require.Contains(t, client.FetchedGroups, "discovered")
	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 1)
	require.Equal(t, float64(5), lags[0].Value)
}

func TestCheckService_ZookeeperSource(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	inst.ZKConnectStr = config.StringOrList{"localhost:2181"}
	inst.ConsumerGroups = config.ConsumerGroups{"legacy": {"orders": []int32{0}}}

	client := testutil.NewFakeOffsetClient()
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 100,
	}

	legacy := &testutil.FakeLegacySource{Offsets: map[domain.GroupTopicPartition]int64{
		{Group: "legacy", Topic: "orders", Partition: 0}: 80,
	}}

	utils.InitLogger()
	repo := testutil.NewFakeInstanceRepository()
	repo.Instances = []config.Instance{inst}
	repo.Clients[inst.ID()] = client
	recorder := &testutil.RecordingSink{}
	svc := NewCheckService(repo, &testutil.FakeFactory{Client: client, Legacy: legacy}, recorder)

	res := svc.Run(context.Background(), inst)
	require.Empty(t, res.Err)

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 1)
	require.Equal(t, float64(20), lags[0].Value)
	require.Contains(t, lags[0].Tags, "source:zk")
}

func TestCheckService_ZookeeperDiscoversUnlistedGroups(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	inst.ZKConnectStr = config.StringOrList{"localhost:2181"}
	inst.ConsumerGroups = config.ConsumerGroups{"explicit": nil}
	inst.MonitorUnlistedConsumerGroups = true
	inst.KafkaConsumerOffsets = boolPtr(false)

	client := testutil.NewFakeOffsetClient()
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 100,
	}

	// the source discovers both the explicit group and an unlisted one
	legacy := &testutil.FakeLegacySource{Offsets: map[domain.GroupTopicPartition]int64{
		{Group: "explicit", Topic: "orders", Partition: 0}: 90,
		{Group: "unlisted", Topic: "orders", Partition: 0}: 70,
	}}

	utils.InitLogger()
	repo := testutil.NewFakeInstanceRepository()
	repo.Instances = []config.Instance{inst}
	repo.Clients[inst.ID()] = client
	recorder := &testutil.RecordingSink{}
	svc := NewCheckService(repo, &testutil.FakeFactory{Client: client, Legacy: legacy}, recorder)

	res := svc.Run(context.Background(), inst)
	require.Empty(t, res.Err)

	// with unlisted monitoring on, the source must be asked to enumerate
	// every group, not just the configured ones
	require.True(t, legacy.Called)
	require.Nil(t, legacy.FetchedGroups)

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 2)
	require.Contains(t, lags[1].Tags, "consumer_group:unlisted")
	require.Equal(t, float64(30), lags[1].Value)
}

func TestCheckService_OffsetsForVanishedPartition(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	client := testutil.NewFakeOffsetClient()
	client.Committed = map[domain.GroupTopicPartition]int64{
		{Group: "g1", Topic: "orders", Partition: 0}: 50,
		{Group: "g1", Topic: "orders", Partition: 1}: 60,
	}
	// partition 1 has no highwater and is not leaderless, the group
	// committed offsets for a partition the cluster no longer has
	client.Highwater = map[domain.TopicPartition]int64{
		{Topic: "orders", Partition: 0}: 55,
	}

	svc, recorder, _ := setup(t, inst, client)
	res := svc.Run(context.Background(), inst)
	require.Empty(t, res.Err)

	offsets := recorder.MetricsNamed(domain.MetricConsumerOffset)
	require.Len(t, offsets, 1)
	require.Contains(t, offsets[0].Tags, "partition:0")

	lags := recorder.MetricsNamed(domain.MetricConsumerLag)
	require.Len(t, lags, 1)
	require.Contains(t, lags[0].Tags, "partition:0")
}

func TestCheckService_ClientUnavailable(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	utils.InitLogger()
	repo := testutil.NewFakeInstanceRepository()
	repo.Instances = []config.Instance{inst}
	svc := NewCheckService(repo, &testutil.FakeFactory{}, &testutil.RecordingSink{})

	res := svc.Run(context.Background(), inst)
	require.Equal(t, ErrClientUnavailable.Error(), res.Err)
}

func TestCheckService_RunByID(t *testing.T) {
	t.Parallel()
	inst := newInstance()
	client := testutil.NewFakeOffsetClient()
	svc, _, _ := setup(t, inst, client)

	_, err := svc.RunByID(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrInstanceNotFound)

	res, err := svc.RunByID(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, "test", res.Instance)
}
