package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/algoconnect/pkg/connectors"
)

func newKeystoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage the local EVM keystore wallet",
	}

	var pin string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a new keystore account protected by a PIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if pin == "" {
				pin = cfg.Wallets.Keystore.PIN
			}
			if !connectors.ValidatePIN(pin) {
				return connectors.ErrInvalidPINFormat
			}

			ks, err := connectors.LoadKeystore(cfg.KeystoreDir(), pin)
			if err != nil {
				return err
			}
			addr, err := ks.Create(pin)
			if errors.Is(err, connectors.ErrWalletAlreadyExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "Wallet already exists in %s\n", cfg.KeystoreDir())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created keystore account %s\n", addr)
			fmt.Fprintln(cmd.OutOrStdout(), "Set wallets.keystore.enabled and network.mode ETH to connect it.")
			return nil
		},
	}
	create.Flags().StringVar(&pin, "pin", "", "4 digit PIN (default wallets.keystore.pin)")

	cmd.AddCommand(create)
	return cmd
}
