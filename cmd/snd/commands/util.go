package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/config"
)

// InitLogger initializes the structured logger from cfg.Logging.
func InitLogger(cfg *config.StorageNodeConfig) error {
	return logger.Init(cfg.Logging.ToLoggerConfig())
}

// GetDefaultStateDir returns the default state directory for PID and log files.
func GetDefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "docspp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return filepath.Join(home, ".local", "state", "docspp")
}

// GetDefaultPidFile returns the default PID file path for Storage Node
// ssID, namespaced so multiple Storage Nodes can run on one host.
func GetDefaultPidFile(ssID int) string {
	return filepath.Join(GetDefaultStateDir(), fmt.Sprintf("snd-%d.pid", ssID))
}

// GetDefaultLogFile returns the default daemon log file path for Storage
// Node ssID.
func GetDefaultLogFile(ssID int) string {
	return filepath.Join(GetDefaultStateDir(), fmt.Sprintf("snd-%d.log", ssID))
}
