// Copyright 2025 Certen Protocol
//
// Package ethlookup resolves a witness transaction hash to its block time,
// so a caller can report when a revision's merkle root was actually anchored
// on-chain. No command in this repository imports it. Grounded on
// original_source/node-eth-lookup/src/providers/mod.rs, translated from
// ethers-rs to go-ethereum's ethclient, and on the teacher's
// pkg/ethereum/client.go Client-wrapping-ethclient.Client idiom.
package ethlookup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// networkRPCEnv maps a witness's declared network name to the environment
// variable naming its RPC endpoint, mirroring the original tool's
// per-chain-id Infura URL table but keyed on network name and left to the
// operator to point at any provider (Infura, Alchemy, or self-hosted).
var networkRPCEnv = map[string]string{
	"mainnet": "ETH_MAINNET_RPC_URL",
	"holesky": "ETH_HOLESKY_RPC_URL",
	"sepolia": "ETH_SEPOLIA_RPC_URL",
}

// Lookup connects to the RPC endpoint configured for network, fetches the
// transaction identified by txHash, and returns the timestamp of the block
// that included it.
func Lookup(ctx context.Context, network, txHash string) (time.Time, error) {
	envVar, ok := networkRPCEnv[network]
	if !ok {
		return time.Time{}, fmt.Errorf("ethlookup: unsupported network %q", network)
	}
	rpcURL := os.Getenv(envVar)
	if rpcURL == "" {
		return time.Time{}, fmt.Errorf("ethlookup: %s is required but not set", envVar)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("ethlookup: connect to %s: %w", network, err)
	}
	defer client.Close()

	hash := common.HexToHash(txHash)
	_, isPending, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		return time.Time{}, fmt.Errorf("ethlookup: get transaction %s: %w", txHash, err)
	}
	if isPending {
		return time.Time{}, fmt.Errorf("ethlookup: transaction %s is still pending", txHash)
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		return time.Time{}, fmt.Errorf("ethlookup: get receipt for %s: %w", txHash, err)
	}

	header, err := client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return time.Time{}, fmt.Errorf("ethlookup: get block %s: %w", receipt.BlockNumber, err)
	}

	return time.Unix(int64(header.Time), 0).UTC(), nil
}
