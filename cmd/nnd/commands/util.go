package commands

import (
	"os"
	"path/filepath"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/config"
)

// InitLogger initializes the structured logger from cfg.Logging.
func InitLogger(cfg *config.NameNodeConfig) error {
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

// GetDefaultPidFile returns the default nnd PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "nnd.pid")
}

// GetDefaultLogFile returns the default nnd daemon log file path.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "nnd.log")
}
