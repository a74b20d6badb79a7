// AlgoConnect - wallet session bootstrapper
// License: MIT

package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sipeed/algoconnect/pkg/chain"
	"github.com/sipeed/algoconnect/pkg/config"
	"github.com/sipeed/algoconnect/pkg/connectors"
	"github.com/sipeed/algoconnect/pkg/logger"
)

// Settings tunes a Bootstrapper.
type Settings struct {
	Chain            chain.Options
	Decimals         int
	LoadTimeout      time.Duration
	DiscoveryTimeout time.Duration
	BalanceTimeout   time.Duration
}

func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	opts, err := chain.OptionsFromConfig(cfg)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Chain:            opts,
		Decimals:         cfg.Session.Decimals,
		LoadTimeout:      cfg.Session.LoadTimeout.Std(),
		DiscoveryTimeout: cfg.Session.DiscoveryTimeout.Std(),
		BalanceTimeout:   cfg.Session.BalanceTimeout.Std(),
	}, nil
}

// Balance is the outcome of a successful Connect.
type Balance struct {
	Address   string
	Connector string
	Raw       *big.Int
	Decimals  int
	Formatted string
}

// Option is the availability of one wallet choice.
type Option struct {
	Kind      connectors.Kind
	Available bool
	Err       error
}

// Bootstrapper owns the single client handle of a session and drives the
// select-then-connect sequence against it.
type Bootstrapper struct {
	settings Settings
	registry *chain.Registry
	modules  []connectors.Module

	group   singleflight.Group
	loading atomic.Int32
	ready   chan struct{}

	mu       sync.RWMutex
	handle   chain.Handle
	loadErr  error
	loaded   map[connectors.Kind]chain.Connector
	failed   map[connectors.Kind]error
	selected connectors.Kind
	inflight *connectCall
}

// connectCall is the one connect attempt a session runs at a time.
type connectCall struct {
	kind    connectors.Kind
	waiters int
	cancel  context.CancelFunc
	done    chan struct{}

	bal Balance
	err error
}

func New(settings Settings, registry *chain.Registry, modules []connectors.Module) *Bootstrapper {
	if registry == nil {
		registry = chain.DefaultRegistry()
	}
	return &Bootstrapper{
		settings: settings,
		registry: registry,
		modules:  modules,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Initialize has succeeded.
func (b *Bootstrapper) Ready() <-chan struct{} { return b.ready }

// Loading reports whether an initialization is in flight.
func (b *Bootstrapper) Loading() bool { return b.loading.Load() > 0 }

func (b *Bootstrapper) isReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// Start runs Initialize in the background. Loading is true from the moment
// Start returns until that initialization finishes. After a failed load,
// calling Start again retries it.
func (b *Bootstrapper) Start(ctx context.Context) {
	if b.isReady() {
		return
	}
	b.loading.Add(1)
	go func() {
		defer b.loading.Add(-1)
		if err := b.Initialize(ctx); err != nil {
			logger.ErrorCF("session", "Background initialization failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

// Initialize loads the client handle and every connector module. It is
// idempotent and concurrent callers share one load. A connector that fails
// to load only disables that wallet; a client failure leaves the session
// uninitialized and retriable.
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	if b.isReady() {
		return nil
	}

	_, err, _ := b.group.Do("initialize", func() (any, error) {
		if b.isReady() {
			return nil, nil
		}
		b.loading.Add(1)
		defer b.loading.Add(-1)

		err := b.load(ctx)
		b.mu.Lock()
		b.loadErr = err
		b.mu.Unlock()
		return nil, err
	})
	return err
}

// LoadError is the error of the last failed initialization, or nil once
// the session is ready or before any attempt finished.
func (b *Bootstrapper) LoadError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadErr
}

func (b *Bootstrapper) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.settings.LoadTimeout)
	defer cancel()

	start := time.Now()
	var (
		handle chain.Handle
		mu     sync.Mutex
		loaded = make(map[connectors.Kind]chain.Connector)
		failed = make(map[connectors.Kind]error)
	)

	// No shared context: one failing module must not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		h, err := b.registry.Load(ctx, b.settings.Chain)
		if err != nil {
			return &LibraryLoadError{Module: "client " + string(b.settings.Chain.Mode), Err: err}
		}
		handle = h
		return nil
	})
	for _, m := range b.modules {
		g.Go(func() error {
			conn, err := m.Load(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[m.Kind] = err
			} else {
				loaded[m.Kind] = conn
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.ErrorCF("session", "Client library failed to load", map[string]any{
			"mode":  b.settings.Chain.Mode,
			"env":   b.settings.Chain.ProviderEnv,
			"error": err.Error(),
		})
		return err
	}

	for kind, conn := range loaded {
		if !conn.Supports(handle.Mode()) {
			failed[kind] = fmt.Errorf("%w: %s does not support %s", chain.ErrIncompatibleConnector, kind, handle.Mode())
			delete(loaded, kind)
		}
	}
	for kind, err := range failed {
		logger.WarnCF("session", "Wallet connector unavailable", map[string]any{
			"wallet": kind,
			"error":  err.Error(),
		})
	}

	b.mu.Lock()
	b.handle = handle
	b.loaded = loaded
	b.failed = failed
	b.mu.Unlock()
	close(b.ready)

	logger.InfoCF("session", "Wallet session ready", map[string]any{
		"mode":     handle.Mode(),
		"env":      handle.Env(),
		"wallets":  len(loaded),
		"disabled": len(failed),
		"took_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// Options lists every configured wallet with its availability, in
// configuration order. Nothing is available before initialization.
func (b *Bootstrapper) Options() []Option {
	b.mu.RLock()
	defer b.mu.RUnlock()

	opts := make([]Option, 0, len(b.modules))
	for _, m := range b.modules {
		opt := Option{Kind: m.Kind}
		if _, ok := b.loaded[m.Kind]; ok {
			opt.Available = true
		} else if err, ok := b.failed[m.Kind]; ok {
			opt.Err = err
		}
		opts = append(opts, opt)
	}
	return opts
}

// Handle returns the session's client handle once initialized.
func (b *Bootstrapper) Handle() (chain.Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle, b.handle != nil
}

func (b *Bootstrapper) Selected() connectors.Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selected
}

// SelectConnector registers kind as the wallet fallback, replacing any
// earlier selection. The handle itself is not reloaded. While a connect is
// in flight only the wallet being connected may be selected.
func (b *Bootstrapper) SelectConnector(kind connectors.Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selectLocked(kind)
}

func (b *Bootstrapper) selectLocked(kind connectors.Kind) error {
	if b.handle == nil {
		return ErrNotReady
	}
	if err, ok := b.failed[kind]; ok {
		return &LibraryLoadError{Module: string(kind), Err: err}
	}
	conn, ok := b.loaded[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownConnector, kind)
	}
	if b.inflight != nil && b.inflight.kind != kind {
		return fmt.Errorf("%w: %s", ErrConnectInProgress, b.inflight.kind)
	}

	d, err := b.handle.WalletFallback(chain.FallbackOptions{
		ProviderEnv: b.settings.Chain.ProviderEnv,
		Connector:   conn,
	})
	if err != nil {
		return err
	}
	b.handle.SetWalletFallback(d)
	b.selected = kind

	logger.DebugCF("session", "Wallet selected", map[string]any{"wallet": kind})
	return nil
}

// Connect asks the selected wallet for its default account and returns the
// formatted balance. A session runs one attempt at a time: overlapping calls
// share it, each waiting under its own ctx.
func (b *Bootstrapper) Connect(ctx context.Context) (Balance, error) {
	b.mu.Lock()
	call, err := b.joinLocked(ctx)
	b.mu.Unlock()
	if err != nil {
		return Balance{}, err
	}
	return b.wait(ctx, call)
}

// ConnectWallet selects kind and connects it as one step, so a concurrent
// selection cannot swap the wallet in between. It fails with
// ErrConnectInProgress while another wallet is being connected.
func (b *Bootstrapper) ConnectWallet(ctx context.Context, kind connectors.Kind) (Balance, error) {
	b.mu.Lock()
	if b.inflight == nil || b.inflight.kind != kind {
		if err := b.selectLocked(kind); err != nil {
			b.mu.Unlock()
			return Balance{}, err
		}
	}
	call, err := b.joinLocked(ctx)
	b.mu.Unlock()
	if err != nil {
		return Balance{}, err
	}
	return b.wait(ctx, call)
}

// joinLocked returns the in-flight attempt or starts one for the current
// selection. The attempt outlives a cancelled caller as long as someone is
// still waiting on it.
func (b *Bootstrapper) joinLocked(ctx context.Context) (*connectCall, error) {
	if c := b.inflight; c != nil {
		c.waiters++
		logger.DebugCF("session", "Connect coalesced with in-flight attempt", map[string]any{"wallet": c.kind})
		return c, nil
	}

	if b.handle == nil || b.selected == "" {
		return nil, ErrNotReady
	}
	d, ok := b.handle.Fallback()
	if !ok {
		return nil, ErrNotReady
	}

	attemptCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &connectCall{
		kind:    b.selected,
		waiters: 1,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.inflight = c

	handle := b.handle
	go func() {
		defer close(c.done)
		c.bal, c.err = b.connect(attemptCtx, handle, c.kind, d)
		cancel()

		b.mu.Lock()
		if b.inflight == c {
			b.inflight = nil
		}
		b.mu.Unlock()
	}()
	return c, nil
}

func (b *Bootstrapper) wait(ctx context.Context, c *connectCall) (Balance, error) {
	select {
	case <-c.done:
		return c.bal, c.err
	case <-ctx.Done():
	}

	b.mu.Lock()
	c.waiters--
	if c.waiters == 0 {
		c.cancel()
	}
	b.mu.Unlock()
	return Balance{}, ctx.Err()
}

func (b *Bootstrapper) connect(ctx context.Context, handle chain.Handle, kind connectors.Kind, d chain.Descriptor) (Balance, error) {
	discoveryCtx, cancel := context.WithTimeout(ctx, b.settings.DiscoveryTimeout)
	acct, err := handle.AccountFrom(discoveryCtx, d)
	cancel()
	if errors.Is(err, chain.ErrNoFallback) {
		return Balance{}, ErrNotReady
	}
	if err != nil {
		cerr := &ConnectError{Reason: classify(err), Connector: string(kind), Err: err}
		logger.ErrorCF("session", "Error when connecting to wallet", map[string]any{
			"wallet": kind,
			"reason": cerr.Reason,
			"error":  err.Error(),
		})
		return Balance{}, cerr
	}

	balanceCtx, cancel := context.WithTimeout(ctx, b.settings.BalanceTimeout)
	raw, err := handle.BalanceOf(balanceCtx, acct)
	cancel()
	if err != nil {
		cerr := &ConnectError{Reason: NetworkError, Connector: string(kind), Err: err}
		logger.ErrorCF("session", "Error when querying balance", map[string]any{
			"wallet":  kind,
			"address": acct.Address,
			"error":   err.Error(),
		})
		return Balance{}, cerr
	}

	bal := Balance{
		Address:   acct.Address,
		Connector: acct.Connector,
		Raw:       raw,
		Decimals:  b.settings.Decimals,
		Formatted: handle.FormatCurrency(raw, b.settings.Decimals),
	}

	logger.InfoCF("session", "Balance retrieved", map[string]any{
		"wallet":  kind,
		"address": acct.Address,
		"balance": bal.Formatted,
	})
	return bal, nil
}

// Close releases the client handle.
func (b *Bootstrapper) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		b.handle.Close()
	}
}
