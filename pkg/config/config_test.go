package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadNameNodeConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
port: 7000
t_beat: 5s
t_dead: 15s
logging:
  level: DEBUG
`)

	cfg, err := LoadNameNodeConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8080, cfg.Admin.Port)
}

func TestLoadNameNodeConfigDecodesDurations(t *testing.T) {
	path := writeConfigFile(t, `
port: 7000
t_beat: 2s
t_dead: 6s
shutdown_timeout: 45s
`)

	cfg, err := LoadNameNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.TBeat)
	assert.Equal(t, 6*time.Second, cfg.TDead)
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
}

func TestLoadStorageNodeConfigDecodesCapacity(t *testing.T) {
	path := writeConfigFile(t, `
ss_id: 1
base_path: "`+yamlSafePath(t.TempDir())+`"
nn_address: "127.0.0.1:7000"
nn_port: 7101
client_port: 7100
ss_port: 7102
capacity: 10Gi
`)

	cfg, err := LoadStorageNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(10*1024*1024*1024), uint64(cfg.Capacity))
}

func TestLoadStorageNodeConfigMissingRequiredFieldFails(t *testing.T) {
	path := writeConfigFile(t, `
base_path: "/tmp"
nn_address: "127.0.0.1:7000"
`)
	_, err := LoadStorageNodeConfig(path)
	assert.Error(t, err)
}

func TestMustLoadNameNodeConfigMissingFileReportsInitHint(t *testing.T) {
	_, err := MustLoadNameNodeConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nnd init")
}

func TestSaveConfigRoundTrips(t *testing.T) {
	cfg := GetDefaultStorageNodeConfig()
	path := filepath.Join(t.TempDir(), "snd.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadStorageNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.SSID, loaded.SSID)
	assert.Equal(t, cfg.BasePath, loaded.BasePath)
}

func TestEnvironmentOverrideTakesPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
port: 7000
t_beat: 5s
t_dead: 15s
`)

	t.Setenv("DOCSPP_PORT", "9999")
	cfg, err := LoadNameNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
}
