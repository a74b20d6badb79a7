package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/config"
	"github.com/sipeed/algoconnect/pkg/connectors"
	"github.com/sipeed/algoconnect/pkg/session"
)

func newSession(cfg *config.Config, out io.Writer) (*session.Bootstrapper, error) {
	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return session.New(settings, chain.DefaultRegistry(), connectors.Modules(cfg, out)), nil
}

func newConnectCommand() *cobra.Command {
	var wallet string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a wallet and print its balance",
		Example: `  algoconnect connect --wallet pera
  algoconnect connect -w myalgo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s, err := newSession(cfg, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Initialize(ctx); err != nil {
				return err
			}
			bal, err := s.ConnectWallet(ctx, connectors.Kind(wallet))
			if err != nil {
				return describeConnectError(err)
			}

			fmt.Fprintf(out, "Wallet:  %s\n", bal.Connector)
			fmt.Fprintf(out, "Account: %s\n", bal.Address)
			fmt.Fprintf(out, "Balance: %s %s\n", bal.Formatted, cfg.Network.Mode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&wallet, "wallet", "w", string(connectors.KindPera), "wallet to connect: myalgo|pera|keystore")
	return cmd
}

func describeConnectError(err error) error {
	var cerr *session.ConnectError
	if !errors.As(err, &cerr) {
		return err
	}
	switch cerr.Reason {
	case session.UserRejected:
		return fmt.Errorf("connection was rejected in the wallet: %w", err)
	case session.NoWallet:
		return fmt.Errorf("no wallet account found, install or unlock the wallet first: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out waiting for the wallet: %w", err)
	}
	return err
}
