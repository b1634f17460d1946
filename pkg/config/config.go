// Package config loads and validates the Name Node and Storage Node
// configuration files: viper-backed YAML with environment-variable
// overrides, decode hooks for byte sizes and durations, and
// go-playground/validator struct-tag validation, the shape used for
// daemon configuration across the retrieval pack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/docspp/cluster/internal/bytesize"
	"github.com/docspp/cluster/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DOCSPP"

// LoggingConfig mirrors internal/logger.Config with validation tags.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ToLoggerConfig converts to the type internal/logger.Init expects.
func (l LoggingConfig) ToLoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}

// MetricsConfig controls the Prometheus scrape endpoint (pkg/metrics).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// JWTConfig mirrors internal/controlplane/api/auth.JWTConfig.
type JWTConfig struct {
	Secret               string        `mapstructure:"secret" validate:"omitempty,min=32" yaml:"secret"`
	Issuer               string        `mapstructure:"issuer" yaml:"issuer"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration"`
}

// AdminConfig is the Name Node's admin REST surface (internal/controlplane).
// There is exactly one operator credential; AdminPasswordHash is a bcrypt
// hash, never a plaintext password, so a leaked config file doesn't leak
// the password itself.
type AdminConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	Port              int           `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AdminUsername     string        `mapstructure:"admin_username" validate:"required_if=Enabled true" yaml:"admin_username"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash" validate:"required_if=Enabled true" yaml:"admin_password_hash"`
	JWT               JWTConfig     `mapstructure:"jwt" yaml:"jwt"`
}

// NameNodeConfig is the root configuration for cmd/nnd (spec.md §6
// "Configuration (NN)").
type NameNodeConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`
	MaxSN           int           `mapstructure:"max_sn" validate:"omitempty,min=0" yaml:"max_sn"`
	MaxClients      int           `mapstructure:"max_clients" validate:"omitempty,min=0" yaml:"max_clients"`
	MaxFiles        int           `mapstructure:"max_files" validate:"omitempty,min=0" yaml:"max_files"`
	TBeat           time.Duration `mapstructure:"t_beat" validate:"required,gt=0" yaml:"t_beat"`
	TDead           time.Duration `mapstructure:"t_dead" validate:"required,gt=0" yaml:"t_dead"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Admin   AdminConfig   `mapstructure:"admin" yaml:"admin"`
}

// CacheConfig is the Storage Node's optional badger-backed metadata
// warm-cache (SPEC_FULL §B; pkg/store/badger). Never the source of
// truth: the SN always rescans base_path at startup.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true" yaml:"path"`
}

// WatchConfig enables fsnotify-driven registry refresh on out-of-band
// changes to base_path (SPEC_FULL §B).
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// StorageNodeConfig is the root configuration for cmd/snd (spec.md §6
// "Configuration (per SN)"). NNAddress is the Name Node's dial address
// (host:port) the SN registers and heartbeats against; NNPort is this
// SN's own listening port, which the Name Node dials back to deliver
// CREATE/DELETE/COPY directives (internal/namenode.Director).
type StorageNodeConfig struct {
	SSID       int               `mapstructure:"ss_id" validate:"required,min=1" yaml:"ss_id"`
	BasePath   string            `mapstructure:"base_path" validate:"required" yaml:"base_path"`
	NNAddress  string            `mapstructure:"nn_address" validate:"required" yaml:"nn_address"`
	NNPort     int               `mapstructure:"nn_port" validate:"required,min=1,max=65535" yaml:"nn_port"`
	ClientPort int               `mapstructure:"client_port" validate:"required,min=1,max=65535" yaml:"client_port"`
	SSPort     int               `mapstructure:"ss_port" validate:"required,min=1,max=65535" yaml:"ss_port"`
	Capacity   bytesize.ByteSize `mapstructure:"capacity" yaml:"capacity"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// LoadNameNodeConfig reads, defaults, and validates a Name Node config
// file.
func LoadNameNodeConfig(configPath string) (*NameNodeConfig, error) {
	cfg := &NameNodeConfig{}
	if err := load(configPath, "nnd", cfg); err != nil {
		return nil, err
	}
	ApplyNameNodeDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid name node config: %w", err)
	}
	return cfg, nil
}

// LoadStorageNodeConfig reads, defaults, and validates a Storage Node
// config file.
func LoadStorageNodeConfig(configPath string) (*StorageNodeConfig, error) {
	cfg := &StorageNodeConfig{}
	if err := load(configPath, "snd", cfg); err != nil {
		return nil, err
	}
	ApplyStorageNodeDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid storage node config: %w", err)
	}
	return cfg, nil
}

// MustLoadNameNodeConfig wraps LoadNameNodeConfig with a friendlier
// missing-file error pointing at `nnd init`.
func MustLoadNameNodeConfig(configPath string) (*NameNodeConfig, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: run `nnd init` to create one", configPath)
		}
	}
	return LoadNameNodeConfig(configPath)
}

// MustLoadStorageNodeConfig wraps LoadStorageNodeConfig with a friendlier
// missing-file error pointing at `snd init`.
func MustLoadStorageNodeConfig(configPath string) (*StorageNodeConfig, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: run `snd init` to create one", configPath)
		}
	}
	return LoadStorageNodeConfig(configPath)
}

// SaveConfig writes cfg (a *NameNodeConfig or *StorageNodeConfig) to path
// as YAML with owner-only permissions, since it may contain a JWT secret.
func SaveConfig(cfg any, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// load reads configPath (or discovers one named daemonName.yaml on the
// standard search path) into out via viper, honoring DOCSPP_-prefixed
// environment overrides.
func load(configPath, daemonName string, out any) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(daemonName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := getConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(out, viper.DecodeHook(decodeHook)); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// Validate runs go-playground/validator struct-tag validation over cfg,
// plus the cross-field checks validator's struct tags can't express on
// their own.
func Validate(cfg any) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if nn, ok := cfg.(*NameNodeConfig); ok && nn.Admin.Enabled && len(nn.Admin.JWT.Secret) < 32 {
		return fmt.Errorf("admin.jwt.secret must be at least 32 characters when admin.enabled is true")
	}
	return nil
}

// byteSizeDecodeHook lets "capacity: 10Gi" style strings (and plain
// numbers) decode into bytesize.ByteSize fields.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the XDG config directory for docspp.
func getConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docspp"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docspp"), nil
}

// GetConfigDir exposes getConfigDir for cmd/nnd and cmd/snd's `init`
// subcommands.
func GetConfigDir() (string, error) { return getConfigDir() }

// InitNameNodeConfig writes a default Name Node config to the standard
// config directory (nnd.yaml), refusing to overwrite an existing file
// unless force is true. Returns the path written.
func InitNameNodeConfig(force bool) (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "nnd.yaml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := SaveConfig(GetDefaultNameNodeConfig(), path); err != nil {
		return "", err
	}
	return path, nil
}

// InitStorageNodeConfig writes a default Storage Node config to the
// standard config directory (snd.yaml), refusing to overwrite an
// existing file unless force is true. Returns the path written.
func InitStorageNodeConfig(force bool) (string, error) {
	dir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "snd.yaml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := SaveConfig(GetDefaultStorageNodeConfig(), path); err != nil {
		return "", err
	}
	return path, nil
}
