package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Mode selects the chain family a Handle talks to.
type Mode string

const (
	ModeALGO Mode = "ALGO"
	ModeETH  Mode = "ETH"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeALGO:
		return ModeALGO, nil
	case ModeETH:
		return ModeETH, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

var (
	// ErrNoFallback is returned by GetDefaultAccount when no wallet fallback is registered
	ErrNoFallback = errors.New("no wallet fallback registered")

	// ErrUnsupportedMode is returned for a network mode with no registered loader
	ErrUnsupportedMode = errors.New("unsupported network mode")

	// ErrIncompatibleConnector is returned when a connector cannot serve the handle's mode or env
	ErrIncompatibleConnector = errors.New("connector incompatible with client")

	// ErrInvalidAddress is returned when a wallet hands back an address the chain rejects
	ErrInvalidAddress = errors.New("invalid account address")
)

// Connector is one wallet-connection mechanism. The client library treats
// it as opaque and only asks it for an account.
type Connector interface {
	Name() string
	Supports(mode Mode) bool
	Connect(ctx context.Context, providerEnv string) (Account, error)
}

// Account is the authenticated wallet session returned by a connector.
type Account struct {
	Address   string
	Connector string
}

// Descriptor pairs a connector with the provider env it was built for.
type Descriptor struct {
	ProviderEnv string
	Connector   Connector
}

type FallbackOptions struct {
	ProviderEnv string // defaults to the handle's env
	Connector   Connector
}

// Handle is a loaded client for one network mode and provider env.
type Handle interface {
	Mode() Mode
	Env() string
	WalletFallback(opts FallbackOptions) (Descriptor, error)
	SetWalletFallback(d Descriptor)
	Fallback() (Descriptor, bool)
	GetDefaultAccount(ctx context.Context) (Account, error)
	AccountFrom(ctx context.Context, d Descriptor) (Account, error)
	BalanceOf(ctx context.Context, acct Account) (*big.Int, error)
	FormatCurrency(amount *big.Int, places int) string
	Close()
}

// base carries the fallback registration shared by every Handle.
type base struct {
	mode         Mode
	env          string
	unitDecimals int
	validate     func(addr string) error

	mu       sync.RWMutex
	fallback *Descriptor
}

func (b *base) Mode() Mode { return b.mode }
func (b *base) Env() string { return b.env }

func (b *base) WalletFallback(opts FallbackOptions) (Descriptor, error) {
	if opts.Connector == nil {
		return Descriptor{}, fmt.Errorf("%w: nil connector", ErrIncompatibleConnector)
	}

	env := opts.ProviderEnv
	if env == "" {
		env = b.env
	}
	if !strings.EqualFold(env, b.env) {
		return Descriptor{}, fmt.Errorf("%w: provider env %s, client env %s", ErrIncompatibleConnector, env, b.env)
	}
	if !opts.Connector.Supports(b.mode) {
		return Descriptor{}, fmt.Errorf("%w: %s does not support %s", ErrIncompatibleConnector, opts.Connector.Name(), b.mode)
	}

	return Descriptor{ProviderEnv: b.env, Connector: opts.Connector}, nil
}

func (b *base) SetWalletFallback(d Descriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = &d
}

func (b *base) Fallback() (Descriptor, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.fallback == nil {
		return Descriptor{}, false
	}
	return *b.fallback, true
}

func (b *base) GetDefaultAccount(ctx context.Context) (Account, error) {
	d, ok := b.Fallback()
	if !ok {
		return Account{}, ErrNoFallback
	}
	return b.AccountFrom(ctx, d)
}

// AccountFrom asks the connector in d for an account, independent of the
// currently registered fallback.
func (b *base) AccountFrom(ctx context.Context, d Descriptor) (Account, error) {
	if d.Connector == nil {
		return Account{}, ErrNoFallback
	}

	acct, err := d.Connector.Connect(ctx, d.ProviderEnv)
	if err != nil {
		return Account{}, err
	}
	if acct.Connector == "" {
		acct.Connector = d.Connector.Name()
	}

	if b.validate != nil {
		if err := b.validate(acct.Address); err != nil {
			return Account{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, acct.Address, err)
		}
	}
	return acct, nil
}

func (b *base) FormatCurrency(amount *big.Int, places int) string {
	return FormatUnits(amount, b.unitDecimals, places)
}
