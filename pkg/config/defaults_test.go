package config

import (
	"testing"
	"time"

	"github.com/docspp/cluster/internal/bytesize"
	"github.com/stretchr/testify/assert"
)

func TestApplyNameNodeDefaultsFillsZeroValues(t *testing.T) {
	cfg := &NameNodeConfig{}
	ApplyNameNodeDefaults(cfg)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.TBeat)
	assert.Equal(t, 15*time.Second, cfg.TDead, "t_dead defaults to 3x t_beat")
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 8080, cfg.Admin.Port)
	assert.Equal(t, "docspp-nn", cfg.Admin.JWT.Issuer)
}

func TestApplyNameNodeDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &NameNodeConfig{Port: 9000, TBeat: time.Second, TDead: 10 * time.Second}
	ApplyNameNodeDefaults(cfg)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, time.Second, cfg.TBeat)
	assert.Equal(t, 10*time.Second, cfg.TDead)
}

func TestApplyStorageNodeDefaultsFillsZeroValues(t *testing.T) {
	cfg := &StorageNodeConfig{}
	ApplyStorageNodeDefaults(cfg)

	assert.Equal(t, 7100, cfg.ClientPort)
	assert.Equal(t, 7101, cfg.NNPort)
	assert.Equal(t, 7102, cfg.SSPort)
	assert.Equal(t, bytesize.GiB, cfg.Capacity)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestApplyMetricsDefaultsOnlySetsPortWhenEnabled(t *testing.T) {
	cfg := &MetricsConfig{}
	applyMetricsDefaults(cfg)
	assert.Equal(t, 0, cfg.Port, "disabled metrics should not get a default port")

	cfg = &MetricsConfig{Enabled: true}
	applyMetricsDefaults(cfg)
	assert.Equal(t, 9090, cfg.Port)
}

func TestGetDefaultNameNodeConfigPassesValidation(t *testing.T) {
	cfg := GetDefaultNameNodeConfig()
	assert.NoError(t, Validate(cfg))
}

func TestGetDefaultStorageNodeConfigPassesValidation(t *testing.T) {
	cfg := GetDefaultStorageNodeConfig()
	assert.NoError(t, Validate(cfg))
}
