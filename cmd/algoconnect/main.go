// AlgoConnect - wallet session bootstrapper
// License: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sipeed/algoconnect/pkg/config"
	"github.com/sipeed/algoconnect/pkg/logger"
)

var (
	version = "dev"

	configPath string
)

const logo = "◈"

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".algoconnect", "config.json")
}

// loadConfig reads the config file and applies its log settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	logger.SetOutput(os.Stderr, cfg.Log.JSON)
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "algoconnect",
		Short:         "Connect a browser or mobile wallet and show its balance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.algoconnect/config.json)")

	root.AddCommand(
		newConnectCommand(),
		newStatusCommand(),
		newServeCommand(),
		newOnboardCommand(),
		newKeystoreCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s algoconnect %s\n", logo, version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
