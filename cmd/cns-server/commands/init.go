package commands

import (
	"fmt"
	"os"

	"github.com/feelus/cns-server/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample cns-server configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/cns-server/config.yaml. Use --config to specify a
custom path.

Examples:
  # Initialize with default location
  cns-server init

  # Initialize with custom path
  cns-server init --config /etc/cns-server/config.yaml

  # Force overwrite existing config
  cns-server init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: cns-server start")
	fmt.Printf("  3. Or specify custom config: cns-server start --config %s\n", path)

	return nil
}
