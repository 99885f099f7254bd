// Copyright 2025 Certen Protocol
//
// gen-keys mints a fresh secp256k1 keypair and writes it out as the
// PRIVATE_KEY/PUBLIC_KEY/ADDRESS triple a guardian's environment needs.
// Grounded on original_source/guardian-common/src/bin/keygen.rs.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

func main() {
	priv, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		os.Exit(1)
	}

	privHex := fmt.Sprintf("0x%x", crypto.FromECDSA(priv))
	pubBytes := crypto.FromECDSAPub(&priv.PublicKey)
	pubHex := fmt.Sprintf("0x%x", pubBytes)

	addr, err := hashtypes.AddressFromPublicKey(pubBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive address: %v\n", err)
		os.Exit(1)
	}

	env := fmt.Sprintf("PRIVATE_KEY=%s\nPUBLIC_KEY=%s\nADDRESS=%s\n", privHex, pubHex, addr)
	if err := os.WriteFile(".env", []byte(env), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "write .env: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote .env with a new key for %s\n", addr)
}
