package kafka

import (
	"github.com/lagscout/lagscout/internal/config"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/infrastructure/zookeeper"
)

// Factory creates offset clients from instance configuration.
type Factory struct{}

// NewFactory creates a new client factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateClient creates a Kafka offset client for an instance.
func (f *Factory) CreateClient(inst config.Instance, init config.InitConfig) (domain.OffsetClient, error) {
	return NewClient(inst, init)
}

// CreateLegacySource creates a Zookeeper offset source for an instance.
func (f *Factory) CreateLegacySource(inst config.Instance, init config.InitConfig) (domain.LegacyOffsetSource, error) {
	return zookeeper.NewOffsetSource(inst.ZKConnectStr, inst.ZKPrefix, init.ZKTimeoutDuration()), nil
}
