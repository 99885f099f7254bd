// Copyright 2025 Certen Protocol

package ethlookup

import (
	"context"
	"strings"
	"testing"
)

func TestLookupRejectsUnsupportedNetwork(t *testing.T) {
	_, err := Lookup(context.Background(), "klaytn", "0xdeadbeef")
	if err == nil || !strings.Contains(err.Error(), "unsupported network") {
		t.Fatalf("got %v, want unsupported-network error", err)
	}
}

func TestLookupRequiresConfiguredRPCURL(t *testing.T) {
	t.Setenv("ETH_SEPOLIA_RPC_URL", "")
	_, err := Lookup(context.Background(), "sepolia", "0xdeadbeef")
	if err == nil || !strings.Contains(err.Error(), "ETH_SEPOLIA_RPC_URL") {
		t.Fatalf("got %v, want missing RPC URL error", err)
	}
}
