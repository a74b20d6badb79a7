// AlgoConnect - wallet session bootstrapper
// License: MIT

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/sipeed/algoconnect/pkg/config"
)

// Options is what a Loader needs to build a Handle.
type Options struct {
	Mode        Mode
	ProviderEnv string
	AlgodURL    string
	AlgodToken  string
	EthRPC      string
	EthChainID  int64
}

// OptionsFromConfig maps the network section of the config onto loader options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := ParseMode(cfg.Network.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:        mode,
		ProviderEnv: cfg.Network.ProviderEnv,
		AlgodURL:    cfg.AlgodURL(),
		AlgodToken:  cfg.Network.AlgodToken,
		EthRPC:      cfg.Network.EthRPC,
		EthChainID:  cfg.Network.EthChainID,
	}, nil
}

// Loader builds a Handle. It may block on network I/O.
type Loader func(ctx context.Context, opts Options) (Handle, error)

// Registry maps network modes to loaders.
type Registry struct {
	loaders map[Mode]Loader
	mu      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[Mode]Loader)}
}

// DefaultRegistry knows the ALGO and ETH loaders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ModeALGO, LoadAlgo)
	r.Register(ModeETH, LoadEVM)
	return r
}

// Register adds or replaces the loader for a mode.
func (r *Registry) Register(mode Mode, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[mode] = loader
}

// Modes returns the registered modes.
func (r *Registry) Modes() []Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modes := make([]Mode, 0, len(r.loaders))
	for m := range r.loaders {
		modes = append(modes, m)
	}
	return modes
}

// Load builds a Handle for opts.Mode.
func (r *Registry) Load(ctx context.Context, opts Options) (Handle, error) {
	r.mu.RLock()
	loader, ok := r.loaders[opts.Mode]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, opts.Mode)
	}
	return loader(ctx, opts)
}
