// Copyright 2025 Certen Protocol
//
// Package config loads the guardian's required environment variables into a
// typed Config, failing fast with every missing/malformed variable reported
// together rather than one at a time. Grounded on the teacher's
// pkg/config/config.go Load/Validate split.
package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// Config holds every setting spec.md §6 requires at start.
type Config struct {
	// PrivateKey is the guardian's secp256k1 signing key.
	PrivateKey *ecdsa.PrivateKey
	// PublicKey is the 65-byte uncompressed public key derived from PrivateKey.
	PublicKey []byte
	// Address is the guardian's own Ethereum-style address, derived from PublicKey.
	Address hashtypes.Address

	// PKCURL is the base URL of this node's local storage backend.
	PKCURL string
	// AdminUser is the Ethereum address of the user this node serves.
	AdminUser hashtypes.Address

	// Host/Port is the bind address for the mTLS RPC server.
	Host string
	Port uint16
}

// Load reads every required environment variable and parses it, aggregating
// every failure into one error instead of stopping at the first.
func Load() (*Config, error) {
	var errs []string

	privHex := getEnv("PRIVATE_KEY", "")
	pubHex := getEnv("PUBLIC_KEY", "")
	addrHex := getEnv("ADDRESS", "")
	pkcURL := getEnv("PKC_URL", "")
	adminUserHex := getEnv("ADMIN_USER", "")
	host := getEnv("HOST", "")
	portStr := getEnv("PORT", "")

	if privHex == "" {
		errs = append(errs, "PRIVATE_KEY is required but not set")
	}
	if pubHex == "" {
		errs = append(errs, "PUBLIC_KEY is required but not set")
	}
	if addrHex == "" {
		errs = append(errs, "ADDRESS is required but not set")
	}
	if pkcURL == "" {
		errs = append(errs, "PKC_URL is required but not set")
	}
	if adminUserHex == "" {
		errs = append(errs, "ADMIN_USER is required but not set")
	}
	if host == "" {
		errs = append(errs, "HOST is required but not set")
	}
	if portStr == "" {
		errs = append(errs, "PORT is required but not set")
	}

	var priv *ecdsa.PrivateKey
	if privHex != "" {
		p, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("PRIVATE_KEY is malformed: %v", err))
		} else {
			priv = p
		}
	}

	var pub []byte
	if pubHex != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(pubHex, "0x"))
		if err != nil || len(b) != 65 {
			errs = append(errs, "PUBLIC_KEY must be 65-byte uncompressed hex")
		} else {
			pub = b
		}
	}

	var addr hashtypes.Address
	if addrHex != "" {
		a, err := hashtypes.ParseAddress(addrHex)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ADDRESS is malformed: %v", err))
		} else {
			addr = a
		}
	}

	var adminUser hashtypes.Address
	if adminUserHex != "" {
		a, err := hashtypes.ParseAddress(adminUserHex)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ADMIN_USER is malformed: %v", err))
		} else {
			adminUser = a
		}
	}

	var port uint16
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PORT is malformed: %v", err))
		} else {
			port = uint16(p)
		}
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}

	if priv != nil && pub != nil {
		derived, err := hashtypes.AddressFromPublicKey(pub)
		if err == nil && derived != addr {
			return nil, fmt.Errorf("config: ADDRESS does not match PUBLIC_KEY (got %s, derived %s)", addr, derived)
		}
	}

	return &Config{
		PrivateKey: priv,
		PublicKey:  pub,
		Address:    addr,
		PKCURL:     pkcURL,
		AdminUser:  adminUser,
		Host:       host,
		Port:       port,
	}, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

