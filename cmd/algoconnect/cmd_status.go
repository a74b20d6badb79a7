package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load the client and report which wallets are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s, err := newSession(cfg, out)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(out, "Config:  %s\n", getConfigPath())
			fmt.Fprintf(out, "Network: %s (%s)\n", cfg.Network.Mode, cfg.Network.ProviderEnv)

			if err := s.Initialize(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Client:  unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintln(out, "Client:  loaded")

			fmt.Fprintln(out, "Wallets:")
			for _, opt := range s.Options() {
				if opt.Available {
					fmt.Fprintf(out, "  ✓ %s\n", opt.Kind)
				} else {
					fmt.Fprintf(out, "  ✗ %s (%v)\n", opt.Kind, opt.Err)
				}
			}
			return nil
		},
	}
}
