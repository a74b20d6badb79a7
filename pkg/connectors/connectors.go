package connectors

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/config"
)

// Kind names a supported wallet.
type Kind string

const (
	KindMyAlgo   Kind = "myalgo"
	KindPera     Kind = "pera"
	KindKeystore Kind = "keystore"
)

var (
	// ErrUserRejected is returned when the user declines the connection
	ErrUserRejected = errors.New("connection rejected by user")

	// ErrNoWallet is returned when no wallet or account is available
	ErrNoWallet = errors.New("no wallet available")
)

// Module is a connector that still has to be loaded. Loading is independent
// per module and may fail without affecting the others.
type Module struct {
	Kind Kind
	Load func(ctx context.Context) (chain.Connector, error)
}

// Modules returns the enabled connector modules for cfg. Approval prompts
// and QR codes are written to out, or stdout when out is nil.
func Modules(cfg *config.Config, out io.Writer) []Module {
	if out == nil {
		out = os.Stdout
	}

	var mods []Module
	if cfg.Wallets.MyAlgo.Enabled {
		addr := cfg.Wallets.MyAlgo.ListenAddr
		mods = append(mods, Module{
			Kind: KindMyAlgo,
			Load: func(ctx context.Context) (chain.Connector, error) {
				conn, err := LoadMyAlgo(ctx, addr, out)
				if err != nil {
					return nil, err
				}
				return conn, nil
			},
		})
	}
	if cfg.Wallets.Pera.Enabled {
		bridge, showQR := cfg.Wallets.Pera.BridgeURL, cfg.Wallets.Pera.ShowQR
		mods = append(mods, Module{
			Kind: KindPera,
			Load: func(ctx context.Context) (chain.Connector, error) {
				conn, err := LoadPera(ctx, bridge, showQR, out)
				if err != nil {
					return nil, err
				}
				return conn, nil
			},
		})
	}
	if cfg.Wallets.Keystore.Enabled {
		dir, pin := cfg.KeystoreDir(), cfg.Wallets.Keystore.PIN
		mods = append(mods, Module{
			Kind: KindKeystore,
			Load: func(ctx context.Context) (chain.Connector, error) {
				conn, err := LoadKeystore(dir, pin)
				if err != nil {
					return nil, err
				}
				return conn, nil
			},
		})
	}
	return mods
}
