package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	controlplaneapi "github.com/docspp/cluster/internal/controlplane/api"
	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/handlers"
	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/internal/namenode"
	"github.com/docspp/cluster/pkg/config"
	"github.com/docspp/cluster/pkg/metrics"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Name Node",
	Long: `Start the Name Node daemon.

By default nnd runs in the background (daemon mode). Use --foreground to
run attached to the terminal, e.g. under a process supervisor.

Examples:
  nnd start
  nnd start --foreground
  nnd start --config /etc/docspp/nnd.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in the foreground")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (default: $XDG_STATE_HOME/docspp/nnd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Daemon log file path (default: $XDG_STATE_HOME/docspp/nnd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoadNameNodeConfig(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var clusterMetrics metrics.ClusterMetrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		clusterMetrics = metrics.NewClusterMetrics()
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	}

	coordinator := namenode.New(namenode.Config{
		MaxSN:      cfg.MaxSN,
		MaxClients: cfg.MaxClients,
		MaxFiles:   cfg.MaxFiles,
		TBeat:      cfg.TBeat,
		TDead:      cfg.TDead,
	}).WithMetrics(clusterMetrics)

	go coordinator.RunHeartbeatMonitor(ctx)

	nnServer := namenode.NewServer(fmt.Sprintf(":%d", cfg.Port), coordinator, 0).WithMetrics(clusterMetrics)

	var adminServer *controlplaneapi.Server
	if cfg.Admin.Enabled {
		adminServer, err = controlplaneapi.NewServer(controlplaneapi.Config{
			Port:         cfg.Admin.Port,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
			Credential: handlers.AdminCredential{
				Username:     cfg.Admin.AdminUsername,
				PasswordHash: cfg.Admin.AdminPasswordHash,
			},
			JWT: auth.JWTConfig{
				Secret:               cfg.Admin.JWT.Secret,
				Issuer:               cfg.Admin.JWT.Issuer,
				AccessTokenDuration:  cfg.Admin.JWT.AccessTokenDuration,
				RefreshTokenDuration: cfg.Admin.JWT.RefreshTokenDuration,
			},
		}, coordinator)
		if err != nil {
			return fmt.Errorf("failed to create admin API server: %w", err)
		}
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 2)
	go func() { serverDone <- nnServer.Serve(ctx) }()
	if adminServer != nil {
		go func() {
			if err := adminServer.Start(ctx); err != nil {
				serverDone <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("name node is running", "port", cfg.Port)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := nnServer.Stop(shutdownCtx); err != nil {
			logger.Error("name node shutdown error", "error", err)
		}
		if adminServer != nil {
			if err := adminServer.Stop(shutdownCtx); err != nil {
				logger.Error("admin API shutdown error", "error", err)
			}
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		logger.Info("name node stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("name node server error", "error", err)
			return err
		}
	}

	return nil
}

func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("nnd is already running (PID %d); stop it first", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFileHandle.Close()

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("nnd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	return nil
}
