package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lagscout.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfig(t *testing.T) {
	t.Run("full classic schema", func(t *testing.T) {
		path := writeFile(t, `init_config:
  kafka_timeout: 10
  zk_timeout: 8
  max_partition_contexts: 100
  check_interval: 30

instances:
  - kafka_connect_str:
      - localhost:9092
      - localhost:9093
    consumer_groups:
      my_consumer:
        my_topic: [0, 1, 4, 12]
    monitor_unlisted_consumer_groups: false
    tags:
      - env:prod
      - team:data
    security_protocol: SASL_SSL
    sasl_mechanism: PLAIN
    sasl_plain_username: admin
    sasl_plain_password: secret
    ssl_cafile: /path/to/ca.pem
    ssl_check_hostname: false
`)

		cfg, err := ReadConfig(path)
		if err != nil {
			t.Fatalf("ReadConfig() error = %v", err)
		}

		if cfg.InitConfig.KafkaTimeout != 10 {
			t.Errorf("expected kafka_timeout 10, got %d", cfg.InitConfig.KafkaTimeout)
		}
		if cfg.InitConfig.KafkaTimeoutDuration() != 10*time.Second {
			t.Errorf("unexpected kafka timeout duration %v", cfg.InitConfig.KafkaTimeoutDuration())
		}
		if cfg.InitConfig.MaxPartitionContexts != 100 {
			t.Errorf("expected max_partition_contexts 100, got %d", cfg.InitConfig.MaxPartitionContexts)
		}

		if len(cfg.Instances) != 1 {
			t.Fatalf("expected 1 instance, got %d", len(cfg.Instances))
		}
		inst := cfg.Instances[0]
		if len(inst.KafkaConnectStr) != 2 {
			t.Errorf("expected 2 brokers, got %d", len(inst.KafkaConnectStr))
		}
		partitions := inst.ConsumerGroups["my_consumer"]["my_topic"]
		if len(partitions) != 4 || partitions[3] != 12 {
			t.Errorf("unexpected partitions: %v", partitions)
		}
		if inst.SecurityProtocol != "SASL_SSL" {
			t.Errorf("expected SASL_SSL, got %s", inst.SecurityProtocol)
		}
		if inst.CheckHostname() {
			t.Error("expected ssl_check_hostname false")
		}
		if !inst.FetchKafkaOffsets() {
			t.Error("expected kafka offset fetching by default")
		}
	})

	t.Run("kafka_connect_str as scalar", func(t *testing.T) {
		path := writeFile(t, `instances:
  - kafka_connect_str: localhost:9092
    monitor_unlisted_consumer_groups: true
`)
		cfg, err := ReadConfig(path)
		if err != nil {
			t.Fatalf("ReadConfig() error = %v", err)
		}
		if len(cfg.Instances[0].KafkaConnectStr) != 1 || cfg.Instances[0].KafkaConnectStr[0] != "localhost:9092" {
			t.Errorf("unexpected kafka_connect_str: %v", cfg.Instances[0].KafkaConnectStr)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeFile(t, `instances:
  - kafka_connect_str: localhost:9092
    monitor_unlisted_consumer_groups: true
`)
		cfg, err := ReadConfig(path)
		if err != nil {
			t.Fatalf("ReadConfig() error = %v", err)
		}
		if cfg.InitConfig.KafkaTimeout != DefaultKafkaTimeout {
			t.Errorf("expected default kafka_timeout, got %d", cfg.InitConfig.KafkaTimeout)
		}
		if cfg.InitConfig.ZKTimeout != DefaultZKTimeout {
			t.Errorf("expected default zk_timeout, got %d", cfg.InitConfig.ZKTimeout)
		}
		if cfg.InitConfig.MaxPartitionContexts != DefaultMaxPartitionContexts {
			t.Errorf("expected default max_partition_contexts, got %d", cfg.InitConfig.MaxPartitionContexts)
		}
		if cfg.InitConfig.CheckInterval != DefaultCheckInterval {
			t.Errorf("expected default check_interval, got %d", cfg.InitConfig.CheckInterval)
		}
	})

	t.Run("deprecated zookeeper fields", func(t *testing.T) {
		path := writeFile(t, `instances:
  - kafka_connect_str: localhost:9092
    zk_connect_str:
      - localhost:2181
    zk_prefix: /kafka
    kafka_consumer_offsets: true
`)
		cfg, err := ReadConfig(path)
		if err != nil {
			t.Fatalf("ReadConfig() error = %v", err)
		}
		inst := cfg.Instances[0]
		if len(inst.ZKConnectStr) != 1 {
			t.Fatalf("expected 1 zk host, got %d", len(inst.ZKConnectStr))
		}
		if inst.ZKPrefix != "/kafka" {
			t.Errorf("expected zk_prefix /kafka, got %s", inst.ZKPrefix)
		}
		if !inst.FetchKafkaOffsets() {
			t.Error("kafka_consumer_offsets: true should force kafka fetching")
		}
	})

	t.Run("zk only instance skips kafka offsets", func(t *testing.T) {
		path := writeFile(t, `instances:
  - kafka_connect_str: localhost:9092
    zk_connect_str: localhost:2181
`)
		cfg, err := ReadConfig(path)
		if err != nil {
			t.Fatalf("ReadConfig() error = %v", err)
		}
		if cfg.Instances[0].FetchKafkaOffsets() {
			t.Error("zk-only instance should not fetch kafka offsets by default")
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := ReadConfig("/nonexistent/path/lagscout.yml")
		if err == nil {
			t.Error("expected error for non-existent file, got nil")
		}
	})

	t.Run("invalid YAML", func(t *testing.T) {
		path := writeFile(t, `instances:
  - kafka_connect_str: [invalid yaml structure
`)
		_, err := ReadConfig(path)
		if err == nil {
			t.Error("expected error for invalid YAML, got nil")
		}
	})
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lagscout.yml")

	original := FileConfig{
		InitConfig: InitConfig{KafkaTimeout: 7, ZKTimeout: 3, MaxPartitionContexts: 50, CheckInterval: 60},
		Instances: []Instance{
			{
				Name:            "prod",
				KafkaConnectStr: StringOrList{"kafka1:9092", "kafka2:9092"},
				ConsumerGroups: ConsumerGroups{
					"billing": {"invoices": []int32{0, 1}},
				},
				Tags:             []string{"env:prod"},
				SecurityProtocol: "PLAINTEXT",
			},
		},
	}

	if err := WriteConfig(path, original); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}
	read, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if len(read.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(read.Instances))
	}
	if read.Instances[0].Name != "prod" {
		t.Errorf("expected name prod, got %s", read.Instances[0].Name)
	}
	if read.InitConfig.KafkaTimeout != 7 {
		t.Errorf("expected kafka_timeout 7, got %d", read.InitConfig.KafkaTimeout)
	}
	got := read.Instances[0].ConsumerGroups["billing"]["invoices"]
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("unexpected partitions: %v", got)
	}
}

func TestInstanceID(t *testing.T) {
	named := Instance{Name: "prod", KafkaConnectStr: StringOrList{"kafka1:9092"}}
	if named.ID() != "prod" {
		t.Errorf("expected prod, got %s", named.ID())
	}
	unnamed := Instance{KafkaConnectStr: StringOrList{"kafka1:9092", "kafka2:9092"}}
	if unnamed.ID() != "kafka1:9092" {
		t.Errorf("expected first broker, got %s", unnamed.ID())
	}
}
