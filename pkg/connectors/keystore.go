package connectors

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/logger"
)

var (
	// ErrWalletAlreadyExists is returned when trying to create a second keystore account
	ErrWalletAlreadyExists = errors.New("wallet already exists")

	// ErrInvalidPIN is returned when the PIN does not unlock the account
	ErrInvalidPIN = fmt.Errorf("invalid PIN: %w", ErrUserRejected)

	// ErrPINRequired is returned when the keystore has no PIN configured
	ErrPINRequired = fmt.Errorf("PIN required: %w", ErrUserRejected)

	// ErrInvalidPINFormat is returned when PIN format is invalid
	ErrInvalidPINFormat = errors.New("PIN must be 4 digits")
)

// KeystoreConnector proves ownership of a local go-ethereum keystore account
// by unlocking it with a 4-digit PIN. Only the address leaves the connector.
type KeystoreConnector struct {
	dir string
	pin string
	ks  *keystore.KeyStore
}

// LoadKeystore opens (creating if needed) the keystore directory.
func LoadKeystore(dir, pin string) (*KeystoreConnector, error) {
	return loadKeystore(dir, pin, keystore.StandardScryptN, keystore.StandardScryptP)
}

func loadKeystore(dir, pin string, scryptN, scryptP int) (*KeystoreConnector, error) {
	if dir == "" {
		return nil, fmt.Errorf("keystore dir not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	return &KeystoreConnector{
		dir: dir,
		pin: pin,
		ks:  keystore.NewKeyStore(dir, scryptN, scryptP),
	}, nil
}

func (c *KeystoreConnector) Name() string { return string(KindKeystore) }

func (c *KeystoreConnector) Supports(mode chain.Mode) bool { return mode == chain.ModeETH }

// Exists checks if a keystore account already exists
func (c *KeystoreConnector) Exists() bool {
	return len(c.ks.Accounts()) > 0
}

// Create creates the keystore account, encrypted with pin.
func (c *KeystoreConnector) Create(pin string) (string, error) {
	if c.Exists() {
		return "", ErrWalletAlreadyExists
	}
	if !ValidatePIN(pin) {
		return "", ErrInvalidPINFormat
	}

	account, err := c.ks.NewAccount(pin)
	if err != nil {
		return "", fmt.Errorf("keystore operation failed: %w", err)
	}

	logger.InfoCF("keystore", "Wallet created", map[string]any{
		"address": account.Address.Hex(),
	})
	return account.Address.Hex(), nil
}

func (c *KeystoreConnector) Connect(ctx context.Context, providerEnv string) (chain.Account, error) {
	accounts := c.ks.Accounts()
	if len(accounts) == 0 {
		return chain.Account{}, ErrNoWallet
	}
	if c.pin == "" {
		return chain.Account{}, ErrPINRequired
	}
	if err := ctx.Err(); err != nil {
		return chain.Account{}, err
	}

	account := accounts[0]
	if err := c.ks.Unlock(account, c.pin); err != nil {
		return chain.Account{}, ErrInvalidPIN
	}
	if err := c.ks.Lock(account.Address); err != nil {
		logger.WarnCF("keystore", "Failed to relock account", map[string]any{"error": err.Error()})
	}

	return chain.Account{Address: account.Address.Hex(), Connector: c.Name()}, nil
}

// ValidatePIN checks if PIN is valid 4-digit format
func ValidatePIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
