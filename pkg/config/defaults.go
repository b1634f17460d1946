package config

import (
	"strings"
	"time"

	"github.com/docspp/cluster/internal/bytesize"
)

// ApplyNameNodeDefaults fills unset fields of cfg with sensible defaults
// using the same zero-value-replacement strategy as the rest of this
// package's Apply*Defaults helpers.
func ApplyNameNodeDefaults(cfg *NameNodeConfig) {
	if cfg.Port == 0 {
		cfg.Port = 7000
	}
	if cfg.TBeat == 0 {
		cfg.TBeat = 5 * time.Second
	}
	if cfg.TDead == 0 {
		cfg.TDead = 3 * cfg.TBeat
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)
}

// ApplyStorageNodeDefaults fills unset fields of cfg with sensible
// defaults.
func ApplyStorageNodeDefaults(cfg *StorageNodeConfig) {
	if cfg.ClientPort == 0 {
		cfg.ClientPort = 7100
	}
	if cfg.NNPort == 0 {
		cfg.NNPort = 7101
	}
	if cfg.SSPort == 0 {
		cfg.SSPort = 7102
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = bytesize.GiB
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "docspp-nn"
	}
	if cfg.JWT.AccessTokenDuration == 0 {
		cfg.JWT.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenDuration == 0 {
		cfg.JWT.RefreshTokenDuration = 7 * 24 * time.Hour
	}
}

// GetDefaultNameNodeConfig returns a NameNodeConfig with every default
// applied, for `nnd init` and tests. The admin JWT secret is left blank
// and must be supplied before Admin.Enabled is turned on, since
// Validate rejects a short secret.
func GetDefaultNameNodeConfig() *NameNodeConfig {
	cfg := &NameNodeConfig{MaxSN: 16, MaxClients: 256, MaxFiles: 4096}
	ApplyNameNodeDefaults(cfg)
	return cfg
}

// GetDefaultStorageNodeConfig returns a StorageNodeConfig with every
// default applied, for `snd init` and tests.
func GetDefaultStorageNodeConfig() *StorageNodeConfig {
	cfg := &StorageNodeConfig{
		SSID:      1,
		BasePath:  "/var/lib/docspp/sn1",
		NNAddress: "127.0.0.1:7000",
	}
	ApplyStorageNodeDefaults(cfg)
	return cfg
}
