package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/internal/storagenode"
	"github.com/docspp/cluster/pkg/config"
	"github.com/docspp/cluster/pkg/metrics"
	"github.com/docspp/cluster/pkg/store/badger"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a Storage Node",
	Long: `Start a Storage Node daemon.

By default snd runs in the background (daemon mode). Use --foreground to
run attached to the terminal, e.g. under a process supervisor.

Examples:
  snd start
  snd start --foreground
  snd start --config /etc/docspp/snd-1.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in the foreground")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (default: $XDG_STATE_HOME/docspp/snd-<ss_id>.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Daemon log file path (default: $XDG_STATE_HOME/docspp/snd-<ss_id>.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoadStorageNodeConfig(GetConfigFile())
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

	registry := storagenode.NewFileRegistry(cfg.BasePath, int64(cfg.Capacity))

	var cache *badger.Cache
	if cfg.Cache.Enabled {
		cache, err = badger.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("opening warm-cache at %s: %w", cfg.Cache.Path, err)
		}
		defer cache.Close()
		registry.WithCache(cache)
		logger.Info("warm-cache enabled", "path", cfg.Cache.Path)
	}

	if err := registry.Scan(); err != nil {
		return fmt.Errorf("scanning base path %s: %w", cfg.BasePath, err)
	}
	logger.Info("storage node file registry scanned",
		"ss_id", cfg.SSID, "files", registry.Count(),
		"used_bytes", registry.UsedBytes(), "used", humanize.Bytes(uint64(registry.UsedBytes())))

	var watcher *storagenode.Watcher
	if cfg.Watch.Enabled {
		watcher, err = storagenode.NewWatcher(registry)
		if err != nil {
			return fmt.Errorf("starting base path watcher: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
		logger.Info("base path watcher enabled", "base_path", cfg.BasePath)
	}

	node := storagenode.NewNode(cfg.SSID, registry)

	dataAddr := fmt.Sprintf(":%d", cfg.ClientPort)
	controlAddr := fmt.Sprintf(":%d", cfg.NNPort)
	ssAddr := fmt.Sprintf(":%d", cfg.SSPort)
	server := storagenode.NewServer(dataAddr, controlAddr, ssAddr, node, 0).WithMetrics(clusterMetrics)

	heartbeatClient := storagenode.NewClient(cfg.NNAddress, storagenode.RegistrationInfo{
		ID:         cfg.SSID,
		ClientPort: cfg.ClientPort,
		NNPort:     cfg.NNPort,
		SSPort:     cfg.SSPort,
	}, node, defaultBeatInterval)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(ctx) }()
	go heartbeatClient.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("storage node is running", "ss_id", cfg.SSID, "client_port", cfg.ClientPort, "nn_port", cfg.NNPort, "ss_port", cfg.SSPort)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("storage node shutdown error", "error", err)
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		logger.Info("storage node stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("storage node server error", "error", err)
			return err
		}
	}

	return nil
}

// defaultBeatInterval is the heartbeat cadence when no SPEC_FULL t_beat
// override exists on the Storage Node side; the Name Node's own t_beat
// (config.NameNodeConfig.TBeat) governs how often it sweeps for dead
// nodes, not how often an SN sends one.
const defaultBeatInterval = 5 * time.Second

func startDaemon() error {
	cfg, err := config.LoadStorageNodeConfig(GetConfigFile())
	if err != nil {
		return fmt.Errorf("loading config to determine Storage Node identity: %w", err)
	}

	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile(cfg.SSID)
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("snd (ss_id %d) is already running (PID %d); stop it first", cfg.SSID, pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile(cfg.SSID)
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

	fmt.Printf("snd (ss_id %d) started in background (PID %d)\n", cfg.SSID, cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	return nil
}
