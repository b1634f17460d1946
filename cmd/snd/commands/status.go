package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docspp/cluster/internal/cli/output"
	"github.com/docspp/cluster/pkg/config"
)

var (
	statusOutput  string
	statusPidFile string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Storage Node status",
	Long: `Display whether a Storage Node's daemon process is running.

Storage Nodes expose no admin HTTP surface (see nnd status for that), so
this checks process liveness via the PID file only. If --config is set,
the configured ss_id picks the default PID file's name.

Examples:
  snd status
  snd status --config /etc/docspp/snd-1.yaml
  snd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/docspp/snd-<ss_id>.pid)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus reports whether a Storage Node's daemon process is alive.
type ServerStatus struct {
	Running bool   `json:"running" yaml:"running"`
	PID     int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Storage Node is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		ssID := 0
		if cfg, err := config.LoadStorageNodeConfig(GetConfigFile()); err == nil {
			ssID = cfg.SSID
		}
		pidPath = GetDefaultPidFile(ssID)
	}

	if pidData, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(pidData))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					status.Running = true
					status.PID = pid
					status.Message = "Storage Node is running"
				}
			}
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("Storage Node Status")
	fmt.Println("====================")
	fmt.Println()

	if status.Running {
		fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		fmt.Printf("  PID:        %d\n", status.PID)
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
