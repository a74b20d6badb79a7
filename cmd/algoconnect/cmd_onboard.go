// AlgoConnect - wallet session bootstrapper
// License: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/algoconnect/pkg/config"
)

func newOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard(cmd, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	return cmd
}

func onboard(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	path := getConfigPath()

	// Check if config already exists
	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		fmt.Fprintln(out, "Run 'algoconnect onboard --force' to overwrite.")
		if _, err := config.LoadConfig(path); err != nil {
			fmt.Fprintf(out, "Warning: existing config does not load: %v\n", err)
		}
		return nil
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(out, "Created config at %s\n", path)

	fmt.Fprintf(out, "%s algoconnect is ready!\n", logo)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Review network.mode (%s) and network.provider_env (%s) in %s\n",
		cfg.Network.Mode, cfg.Network.ProviderEnv, path)
	fmt.Fprintln(out, "  2. Connect a wallet: algoconnect connect --wallet pera")
	fmt.Fprintln(out, "  3. Or run the gateway: algoconnect serve")
	return nil
}
