package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Security protocols accepted by the check.
const (
	ProtocolPlaintext     = "PLAINTEXT"
	ProtocolSSL           = "SSL"
	ProtocolSASLPlaintext = "SASL_PLAINTEXT"
	ProtocolSASLSSL       = "SASL_SSL"
)

// SASL mechanisms accepted by the check.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSha256 = "SCRAM-SHA-256"
	MechanismScramSha512 = "SCRAM-SHA-512"
	MechanismGSSAPI      = "GSSAPI"
)

var (
	// ErrNoInstances is returned for a file with no instances.
	ErrNoInstances = errors.New("configuration has no instances")

	// ErrNoConsumerGroups is returned when an instance names no consumer
	// groups, has no Zookeeper fallback, and does not monitor unlisted groups.
	ErrNoConsumerGroups = errors.New("either consumer_groups must be specified or monitor_unlisted_consumer_groups must be true")

	// ErrGSSAPIUnsupported is returned for the Kerberos SASL mechanism.
	ErrGSSAPIUnsupported = errors.New("sasl_mechanism GSSAPI is not supported")

	// ErrSSLContextUnsupported is returned when ssl_context is set; providing
	// a pre-built context is a Python-agent facility with no equivalent here.
	ErrSSLContextUnsupported = errors.New("ssl_context is not supported, use ssl_cafile/ssl_certfile/ssl_keyfile")
)

// Validate checks the whole file.
func (c *FileConfig) Validate() error {
	if len(c.Instances) == 0 {
		return ErrNoInstances
	}
	seen := make(map[string]struct{}, len(c.Instances))
	for idx := range c.Instances {
		inst := &c.Instances[idx]
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instance %d (%s): %w", idx, inst.ID(), err)
		}
		id := inst.ID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("instance %d: duplicate instance id %q", idx, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Validate checks a single instance against the schema invariants.
func (i *Instance) Validate() error {
	if len(i.KafkaConnectStr) == 0 {
		return errors.New("kafka_connect_str is required and must be non-empty")
	}
	for _, hp := range i.KafkaConnectStr {
		if err := validateHostPort(hp); err != nil {
			return fmt.Errorf("kafka_connect_str: %w", err)
		}
	}
	for _, hp := range i.ZKConnectStr {
		// zk entries may carry a chroot suffix, validate the address part only
		addr := hp
		if idx := strings.Index(hp, "/"); idx > 0 {
			addr = hp[:idx]
		}
		if err := validateHostPort(addr); err != nil {
			return fmt.Errorf("zk_connect_str: %w", err)
		}
	}

	if err := i.validateSecurity(); err != nil {
		return err
	}
	if err := i.validateConsumerGroups(); err != nil {
		return err
	}

	// Without explicit groups or a Zookeeper source to discover them from,
	// the check has nothing to do unless it may list groups itself.
	if len(i.ConsumerGroups) == 0 && len(i.ZKConnectStr) == 0 && !i.MonitorUnlistedConsumerGroups {
		return ErrNoConsumerGroups
	}
	return nil
}

func (i *Instance) validateSecurity() error {
	proto := i.SecurityProtocol
	if proto == "" {
		proto = ProtocolPlaintext
	}
	switch proto {
	case ProtocolPlaintext, ProtocolSSL, ProtocolSASLPlaintext, ProtocolSASLSSL:
	default:
		return fmt.Errorf("security_protocol %q is not one of PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL", i.SecurityProtocol)
	}

	if i.SSLContext != "" {
		return ErrSSLContextUnsupported
	}

	if proto == ProtocolSASLPlaintext || proto == ProtocolSASLSSL {
		switch i.SASLMechanism {
		case MechanismPlain, MechanismScramSha256, MechanismScramSha512:
			if i.SASLPlainUsername == "" || i.SASLPlainPassword == "" {
				return fmt.Errorf("sasl_mechanism %s requires sasl_plain_username and sasl_plain_password", i.SASLMechanism)
			}
		case MechanismGSSAPI:
			return ErrGSSAPIUnsupported
		case "":
			return errors.New("sasl_mechanism is required under SASL security protocols")
		default:
			return fmt.Errorf("sasl_mechanism %q is not supported", i.SASLMechanism)
		}
	}

	if i.SSLCertFile != "" && i.SSLKeyFile == "" {
		return errors.New("ssl_certfile requires ssl_keyfile")
	}
	return nil
}

func (i *Instance) validateConsumerGroups() error {
	for group, topics := range i.ConsumerGroups {
		if group == "" {
			return errors.New("consumer_groups contains an empty group name")
		}
		for topic, partitions := range topics {
			if topic == "" {
				return fmt.Errorf("consumer_groups[%s] contains an empty topic name", group)
			}
			for _, p := range partitions {
				if p < 0 {
					return fmt.Errorf("consumer_groups[%s][%s] contains negative partition %d", group, topic, p)
				}
			}
		}
	}
	return nil
}

func validateHostPort(hp string) error {
	host, port, err := net.SplitHostPort(hp)
	if err != nil {
		return fmt.Errorf("%q is not host:port", hp)
	}
	if host == "" || port == "" {
		return fmt.Errorf("%q is not host:port", hp)
	}
	return nil
}
