package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/testutil"
	"github.com/lagscout/lagscout/internal/utils"
	"github.com/stretchr/testify/require"
)

// countingFactory hands out fresh fake clients and counts creations.
type countingFactory struct {
	created []*testutil.FakeOffsetClient
}

func (f *countingFactory) CreateClient(_ config.Instance, _ config.InitConfig) (domain.OffsetClient, error) {
	c := testutil.NewFakeOffsetClient()
	f.created = append(f.created, c)
	return c, nil
}

func (f *countingFactory) CreateLegacySource(_ config.Instance, _ config.InitConfig) (domain.LegacyOffsetSource, error) {
	return &testutil.FakeLegacySource{}, nil
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestInstanceRepository_LoadAndLookup(t *testing.T) {
	utils.InitLogger()
	path := filepath.Join(t.TempDir(), "lagscout.yml")
	writeConfig(t, path, `init_config:
  kafka_timeout: 9
instances:
  - name: dev
    kafka_connect_str: localhost:9092
    monitor_unlisted_consumer_groups: true
`)

	factory := &countingFactory{}
	repo := NewInstanceRepository(path, factory)
	defer repo.Close()

	require.NoError(t, repo.LoadFromFile())

	require.Equal(t, 9, repo.InitConfig().KafkaTimeout)
	require.Len(t, repo.FindAll(), 1)

	inst, ok := repo.FindByID("dev")
	require.True(t, ok)
	require.Equal(t, "dev", inst.Name)

	_, ok = repo.FindByID("unknown")
	require.False(t, ok)

	_, ok = repo.GetClient("dev")
	require.True(t, ok)
	require.Len(t, factory.created, 1)
}

func TestInstanceRepository_LoadRejectsInvalidConfig(t *testing.T) {
	utils.InitLogger()
	path := filepath.Join(t.TempDir(), "lagscout.yml")
	writeConfig(t, path, `instances:
  - kafka_connect_str: localhost:9092
`)

	repo := NewInstanceRepository(path, &countingFactory{})
	defer repo.Close()
	require.Error(t, repo.LoadFromFile())
}

func TestInstanceRepository_ReconcileReplacesAndRemoves(t *testing.T) {
	utils.InitLogger()
	path := filepath.Join(t.TempDir(), "lagscout.yml")
	writeConfig(t, path, `instances:
  - name: a
    kafka_connect_str: localhost:9092
    monitor_unlisted_consumer_groups: true
  - name: b
    kafka_connect_str: localhost:9093
    monitor_unlisted_consumer_groups: true
`)

	factory := &countingFactory{}
	repo := NewInstanceRepository(path, factory)
	defer repo.Close()
	require.NoError(t, repo.LoadFromFile())
	require.Len(t, factory.created, 2)

	// unchanged instances keep their client
	require.NoError(t, repo.LoadFromFile())
	require.Len(t, factory.created, 2)

	// change a, drop b
	writeConfig(t, path, `instances:
  - name: a
    kafka_connect_str: localhost:9094
    monitor_unlisted_consumer_groups: true
`)
	require.NoError(t, repo.LoadFromFile())

	require.Len(t, factory.created, 3)
	require.True(t, factory.created[0].Closed || factory.created[1].Closed)

	_, ok := repo.GetClient("b")
	require.False(t, ok)
	require.Len(t, repo.FindAll(), 1)
}

func TestInstanceRepository_CloseClosesClients(t *testing.T) {
	utils.InitLogger()
	path := filepath.Join(t.TempDir(), "lagscout.yml")
	writeConfig(t, path, `instances:
  - name: a
    kafka_connect_str: localhost:9092
    monitor_unlisted_consumer_groups: true
`)

	factory := &countingFactory{}
	repo := NewInstanceRepository(path, factory)
	require.NoError(t, repo.LoadFromFile())
	repo.Close()
	require.True(t, factory.created[0].Closed)
}
