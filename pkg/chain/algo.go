package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/sipeed/algoconnect/pkg/logger"
)

// microAlgos per Algo
const algoUnitDecimals = 6

// AlgoHandle is a Handle backed by an algod REST endpoint.
type AlgoHandle struct {
	base
	client *algod.Client
	url    string
}

// LoadAlgo connects to algod and checks the node answers a status call.
func LoadAlgo(ctx context.Context, opts Options) (Handle, error) {
	if opts.AlgodURL == "" {
		return nil, fmt.Errorf("algod url not configured for %s", opts.ProviderEnv)
	}

	client, err := algod.MakeClient(opts.AlgodURL, opts.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}

	status, err := client.Status().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reach algod at %s: %w", opts.AlgodURL, err)
	}

	logger.InfoCF("chain", "Connected to algod", map[string]any{
		"url":        opts.AlgodURL,
		"env":        opts.ProviderEnv,
		"last_round": status.LastRound,
	})

	return &AlgoHandle{
		base: base{
			mode:         ModeALGO,
			env:          opts.ProviderEnv,
			unitDecimals: algoUnitDecimals,
			validate:     validateAlgoAddress,
		},
		client: client,
		url:    opts.AlgodURL,
	}, nil
}

func validateAlgoAddress(addr string) error {
	_, err := types.DecodeAddress(addr)
	return err
}

// BalanceOf returns the account balance in microAlgos.
func (h *AlgoHandle) BalanceOf(ctx context.Context, acct Account) (*big.Int, error) {
	info, err := h.client.AccountInformation(acct.Address).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return new(big.Int).SetUint64(info.Amount), nil
}

// Close is a no-op; algod is stateless HTTP.
func (h *AlgoHandle) Close() {}
