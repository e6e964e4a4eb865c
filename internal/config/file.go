// Package config defines the agent configuration contract: an init_config
// block with shared timeouts plus a list of check instances, each naming a
// Kafka cluster, the consumer groups to watch, and connection security.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultKafkaTimeout is the request timeout for broker calls, in seconds.
	DefaultKafkaTimeout = 5
	// DefaultZKTimeout is the Zookeeper session timeout, in seconds.
	DefaultZKTimeout = 5
	// DefaultMaxPartitionContexts caps how many (group, topic, partition)
	// offset contexts a single run may report.
	DefaultMaxPartitionContexts = 200
	// DefaultCheckInterval is the collection cadence, in seconds.
	DefaultCheckInterval = 15
)

// StringOrList decodes a YAML value that may be either a single scalar or a
// sequence of scalars. kafka_connect_str and zk_connect_str historically
// accept both forms.
type StringOrList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = []string{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got yaml kind %d", value.Kind)
	}
}

// InitConfig holds settings shared by every instance.
type InitConfig struct {
	KafkaTimeout         int `yaml:"kafka_timeout,omitempty" json:"kafka_timeout,omitempty"`
	ZKTimeout            int `yaml:"zk_timeout,omitempty" json:"zk_timeout,omitempty"`
	MaxPartitionContexts int `yaml:"max_partition_contexts,omitempty" json:"max_partition_contexts,omitempty"`
	CheckInterval        int `yaml:"check_interval,omitempty" json:"check_interval,omitempty"`
}

// KafkaTimeoutDuration returns the broker request timeout.
func (c InitConfig) KafkaTimeoutDuration() time.Duration {
	return time.Duration(c.KafkaTimeout) * time.Second
}

// ZKTimeoutDuration returns the Zookeeper session timeout.
func (c InitConfig) ZKTimeoutDuration() time.Duration {
	return time.Duration(c.ZKTimeout) * time.Second
}

// CheckIntervalDuration returns the collection cadence.
func (c InitConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// ConsumerGroups maps group name -> topic -> partitions. An empty topic map
// or partition list means "discover".
type ConsumerGroups map[string]map[string][]int32

// Instance is one monitored cluster. Field names follow the classic
// kafka_consumer check schema.
type Instance struct {
	Name                          string         `yaml:"name,omitempty" json:"name,omitempty"`
	KafkaConnectStr               StringOrList   `yaml:"kafka_connect_str" json:"kafka_connect_str"`
	ConsumerGroups                ConsumerGroups `yaml:"consumer_groups,omitempty" json:"consumer_groups,omitempty"`
	MonitorUnlistedConsumerGroups bool           `yaml:"monitor_unlisted_consumer_groups,omitempty" json:"monitor_unlisted_consumer_groups,omitempty"`
	Tags                          []string       `yaml:"tags,omitempty" json:"tags,omitempty"`

	SecurityProtocol        string `yaml:"security_protocol,omitempty" json:"security_protocol,omitempty"`
	SASLMechanism           string `yaml:"sasl_mechanism,omitempty" json:"sasl_mechanism,omitempty"`
	SASLPlainUsername       string `yaml:"sasl_plain_username,omitempty" json:"sasl_plain_username,omitempty"`
	SASLPlainPassword       string `yaml:"sasl_plain_password,omitempty" json:"-"`
	SASLKerberosServiceName string `yaml:"sasl_kerberos_service_name,omitempty" json:"sasl_kerberos_service_name,omitempty"`
	SASLKerberosDomainName  string `yaml:"sasl_kerberos_domain_name,omitempty" json:"sasl_kerberos_domain_name,omitempty"`

	SSLCAFile        string `yaml:"ssl_cafile,omitempty" json:"ssl_cafile,omitempty"`
	SSLCertFile      string `yaml:"ssl_certfile,omitempty" json:"ssl_certfile,omitempty"`
	SSLKeyFile       string `yaml:"ssl_keyfile,omitempty" json:"ssl_keyfile,omitempty"`
	SSLPassword      string `yaml:"ssl_password,omitempty" json:"-"`
	SSLCheckHostname *bool  `yaml:"ssl_check_hostname,omitempty" json:"ssl_check_hostname,omitempty"`
	SSLCRLFile       string `yaml:"ssl_crlfile,omitempty" json:"ssl_crlfile,omitempty"`
	SSLContext       string `yaml:"ssl_context,omitempty" json:"ssl_context,omitempty"`

	KafkaClientAPIVersion string `yaml:"kafka_client_api_version,omitempty" json:"kafka_client_api_version,omitempty"`

	// Deprecated Zookeeper-based offset storage.
	ZKConnectStr         StringOrList `yaml:"zk_connect_str,omitempty" json:"zk_connect_str,omitempty"`
	ZKPrefix             string       `yaml:"zk_prefix,omitempty" json:"zk_prefix,omitempty"`
	KafkaConsumerOffsets *bool        `yaml:"kafka_consumer_offsets,omitempty" json:"kafka_consumer_offsets,omitempty"`
}

// ID returns a stable identifier for the instance: the explicit name when
// set, otherwise the first bootstrap broker.
func (i *Instance) ID() string {
	if i.Name != "" {
		return i.Name
	}
	if len(i.KafkaConnectStr) > 0 {
		return i.KafkaConnectStr[0]
	}
	return ""
}

// FetchKafkaOffsets reports whether Kafka-native committed offsets should be
// collected. Defaults to true unless the instance only uses Zookeeper.
func (i *Instance) FetchKafkaOffsets() bool {
	if i.KafkaConsumerOffsets != nil {
		return *i.KafkaConsumerOffsets
	}
	return len(i.ZKConnectStr) == 0
}

// CheckHostname reports whether TLS certificate hostnames are verified.
func (i *Instance) CheckHostname() bool {
	return i.SSLCheckHostname == nil || *i.SSLCheckHostname
}

// FileConfig is the full agent configuration file.
type FileConfig struct {
	InitConfig InitConfig `yaml:"init_config" json:"init_config"`
	Instances  []Instance `yaml:"instances" json:"instances"`
}

// ApplyDefaults fills unset init_config values.
func (c *FileConfig) ApplyDefaults() {
	if c.InitConfig.KafkaTimeout <= 0 {
		c.InitConfig.KafkaTimeout = DefaultKafkaTimeout
	}
	if c.InitConfig.ZKTimeout <= 0 {
		c.InitConfig.ZKTimeout = DefaultZKTimeout
	}
	if c.InitConfig.MaxPartitionContexts <= 0 {
		c.InitConfig.MaxPartitionContexts = DefaultMaxPartitionContexts
	}
	if c.InitConfig.CheckInterval <= 0 {
		c.InitConfig.CheckInterval = DefaultCheckInterval
	}
}

// ReadConfig loads, defaults, and validates a configuration file.
func ReadConfig(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteConfig persists a configuration file.
func WriteConfig(path string, cfg FileConfig) error {
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
