package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docspp/cluster/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample Name Node configuration file",
	Long: `Write a sample nnd configuration file.

By default the file is created at $XDG_CONFIG_HOME/docspp/nnd.yaml. Use
--config to pick a different path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.GetDefaultNameNodeConfig()

	secret, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	cfg.Admin.JWT.Secret = secret

	var path string
	if GetConfigFile() != "" {
		path = GetConfigFile()
		err = config.SaveConfig(cfg, path)
	} else {
		path, err = config.InitNameNodeConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set admin.admin_username / admin.admin_password_hash if you enable the admin API")
	fmt.Println("  2. Start the Name Node with: nnd start")
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random admin.jwt.secret has been generated. Treat this file as a secret.")
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
