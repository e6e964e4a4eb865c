// Package kafka implements the broker-side offset operations over franz-go.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/lagscout/lagscout/internal/config"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kversion"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

const clientID = "lagscout"

// Client wraps a kgo client and its admin view for one instance.
type Client struct {
	client *kgo.Client
	*Admin
}

// NewClient builds a Kafka client from an instance configuration.
func NewClient(inst config.Instance, init config.InitConfig) (*Client, error) {
	opts := []kgo.Opt{
		kgo.ClientID(clientID),
		kgo.SeedBrokers(inst.KafkaConnectStr...),
		kgo.DialTimeout(init.KafkaTimeoutDuration()),
	}

	proto := inst.SecurityProtocol
	if proto == "" {
		proto = config.ProtocolPlaintext
	}

	if proto == config.ProtocolSSL || proto == config.ProtocolSASLSSL {
		tlsCfg, err := buildTLSConfig(inst)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	if proto == config.ProtocolSASLPlaintext || proto == config.ProtocolSASLSSL {
		mech, err := buildSASLMechanism(inst)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mech))
	}

	if inst.KafkaClientAPIVersion != "" {
		vs, err := apiVersions(inst.KafkaClientAPIVersion)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.MaxVersions(vs))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: client,
		Admin:  NewAdmin(kadm.NewClient(client), init.KafkaTimeoutDuration()),
	}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

// buildTLSConfig maps the ssl_* fields onto a tls.Config.
func buildTLSConfig(inst config.Instance) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: !inst.CheckHostname(),
	}

	if inst.SSLCAFile != "" {
		b, err := os.ReadFile(inst.SSLCAFile)
		if err != nil {
			return nil, fmt.Errorf("read ssl_cafile: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(b) {
			return nil, fmt.Errorf("ssl_cafile %s contains no certificates", inst.SSLCAFile)
		}
		cfg.RootCAs = pool
	}

	if inst.SSLCertFile != "" && inst.SSLKeyFile != "" {
		cert, err := loadKeyPair(inst.SSLCertFile, inst.SSLKeyFile, inst.SSLPassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// loadKeyPair loads the client certificate, decrypting a legacy
// password-protected PEM key when ssl_password is set.
func loadKeyPair(certFile, keyFile, password string) (tls.Certificate, error) {
	if password == "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("load ssl keypair: %w", err)
		}
		return cert, nil
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read ssl_certfile: %w", err)
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read ssl_keyfile: %w", err)
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return tls.Certificate{}, fmt.Errorf("ssl_keyfile %s is not PEM", keyFile)
	}
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy RSA PEM encryption, what ssl_password is for
		der, err := x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("decrypt ssl_keyfile: %w", err)
		}
		keyPEM = pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der})
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load ssl keypair: %w", err)
	}
	return cert, nil
}

// buildSASLMechanism maps sasl_mechanism and credentials onto a franz-go
// mechanism. GSSAPI is rejected at validation, before this runs.
func buildSASLMechanism(inst config.Instance) (sasl.Mechanism, error) {
	user := inst.SASLPlainUsername
	pass := inst.SASLPlainPassword
	switch inst.SASLMechanism {
	case config.MechanismPlain:
		return plain.Auth{User: user, Pass: pass}.AsMechanism(), nil
	case config.MechanismScramSha256:
		return scram.Auth{User: user, Pass: pass}.AsSha256Mechanism(), nil
	case config.MechanismScramSha512:
		return scram.Auth{User: user, Pass: pass}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("sasl_mechanism %q is not supported", inst.SASLMechanism)
	}
}

// apiVersions pins the client's maximum protocol version when
// kafka_client_api_version is set.
func apiVersions(v string) (*kversion.Versions, error) {
	switch v {
	case "0.10.0":
		return kversion.V0_10_0(), nil
	case "0.10.1":
		return kversion.V0_10_1(), nil
	case "0.10.2":
		return kversion.V0_10_2(), nil
	case "0.11.0":
		return kversion.V0_11_0(), nil
	case "1.0", "1.0.0":
		return kversion.V1_0_0(), nil
	case "1.1", "1.1.0":
		return kversion.V1_1_0(), nil
	case "2.0", "2.0.0":
		return kversion.V2_0_0(), nil
	case "2.1", "2.1.0":
		return kversion.V2_1_0(), nil
	case "2.2", "2.2.0":
		return kversion.V2_2_0(), nil
	case "2.3", "2.3.0":
		return kversion.V2_3_0(), nil
	case "2.4", "2.4.0":
		return kversion.V2_4_0(), nil
	case "2.5", "2.5.0":
		return kversion.V2_5_0(), nil
	case "2.6", "2.6.0":
		return kversion.V2_6_0(), nil
	case "2.7", "2.7.0":
		return kversion.V2_7_0(), nil
	case "2.8", "2.8.0":
		return kversion.V2_8_0(), nil
	case "3.0", "3.0.0":
		return kversion.V3_0_0(), nil
	default:
		return nil, fmt.Errorf("kafka_client_api_version %q is not recognized", v)
	}
}
