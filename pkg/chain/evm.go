package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sipeed/algoconnect/pkg/logger"
)

const weiUnitDecimals = 18

// EVMHandle is a Handle backed by an Ethereum JSON-RPC endpoint.
type EVMHandle struct {
	base
	client  *ethclient.Client
	chainID int64
}

// LoadEVM dials the RPC endpoint and verifies the chain ID when one is configured.
func LoadEVM(ctx context.Context, opts Options) (Handle, error) {
	if opts.EthRPC == "" {
		return nil, fmt.Errorf("eth rpc not configured")
	}

	client, err := ethclient.DialContext(ctx, opts.EthRPC)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", opts.ProviderEnv, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID for %s: %w", opts.ProviderEnv, err)
	}

	if opts.EthChainID != 0 && chainID.Int64() != opts.EthChainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", opts.EthChainID, chainID.Int64())
	}

	logger.InfoCF("chain", "Connected to chain", map[string]any{
		"chainId": chainID.Int64(),
		"rpc":     opts.EthRPC,
		"env":     opts.ProviderEnv,
	})

	return &EVMHandle{
		base: base{
			mode:         ModeETH,
			env:          opts.ProviderEnv,
			unitDecimals: weiUnitDecimals,
			validate:     validateEVMAddress,
		},
		client:  client,
		chainID: chainID.Int64(),
	}, nil
}

func validateEVMAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("not a hex address")
	}
	return nil
}

func (h *EVMHandle) ChainID() int64 { return h.chainID }

// BalanceOf returns the native balance in wei at the latest block.
func (h *EVMHandle) BalanceOf(ctx context.Context, acct Account) (*big.Int, error) {
	balance, err := h.client.BalanceAt(ctx, common.HexToAddress(acct.Address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (h *EVMHandle) Close() {
	h.client.Close()
	logger.InfoCF("chain", "Disconnected from chain", map[string]any{
		"chainId": h.chainID,
	})
}
