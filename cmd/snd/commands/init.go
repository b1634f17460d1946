package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docspp/cluster/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample Storage Node configuration file",
	Long: `Write a sample snd configuration file.

By default the file is created at $XDG_CONFIG_HOME/docspp/snd.yaml. Use
--config to pick a different path, e.g. when running several Storage
Nodes on one host.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.GetDefaultStorageNodeConfig()

	var path string
	var err error
	if GetConfigFile() != "" {
		path = GetConfigFile()
		err = config.SaveConfig(cfg, path)
	} else {
		path, err = config.InitStorageNodeConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set ss_id, base_path, and nn_address for this Storage Node")
	fmt.Println("  2. Start it with: snd start")
	return nil
}
