// Copyright 2025 Certen Protocol
//
// verifier-cli is the offline integrity checker: given a server URL it can
// recompute and print the flags for one revision, or walk every chain the
// server holds and write a logfile.json summary. Grounded on
// original_source/src/bin/verifier-cli.rs.
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/storage"
	"github.com/inblockio/guardian-node/internal/verifier"
)

func main() {
	server := flag.String("server", "http://localhost:9352", "base URL of the PKC to verify against")
	privateKeyHex := flag.String("private-key", "", "optional hex private key to log in with before verifying")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: verifier-cli [-server url] [-private-key hex] verify-revision <hash> | verify-all")
		os.Exit(2)
	}

	logger := log.New(log.Writer(), "[verifier-cli] ", log.LstdFlags)
	stor, err := storage.New(*server, logger)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	ctx := context.Background()
	if *privateKeyHex != "" {
		priv, err := crypto.HexToECDSA(strings.TrimPrefix(*privateKeyHex, "0x"))
		if err != nil {
			logger.Fatalf("private key: %v", err)
		}
		addr, err := hashtypes.AddressFromPublicKey(crypto.FromECDSAPub(&priv.PublicKey))
		if err != nil {
			logger.Fatalf("derive address: %v", err)
		}
		loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = stor.Login(loginCtx, addr, func(message string) ([]byte, error) {
			return signPersonalMessage(priv, message)
		})
		cancel()
		if err != nil {
			logger.Fatalf("login: %v", err)
		}
	}

	switch args[0] {
	case "verify-revision":
		if len(args) < 2 {
			logger.Fatalf("verify-revision requires a hash argument")
		}
		if err := verifyRevision(ctx, stor, args[1]); err != nil {
			logger.Fatalf("%v", err)
		}
	case "verify-all":
		if err := verifyAll(ctx, stor); err != nil {
			logger.Fatalf("%v", err)
		}
	default:
		logger.Fatalf("unknown command %q", args[0])
	}
}

func verifyRevision(ctx context.Context, stor *storage.Client, hashStr string) error {
	hash, err := hashtypes.ParseHash(hashStr)
	if err != nil {
		return fmt.Errorf("parse hash: %w", err)
	}

	rev, err := stor.GetRevision(ctx, hash)
	if err != nil {
		return fmt.Errorf("get_revision: %w", err)
	}

	var prev *revision.Revision
	if prevHash, ok := rev.PreviousHash(); ok {
		prev, err = stor.GetRevision(ctx, prevHash)
		if err != nil {
			return fmt.Errorf("get_revision (previous): %w", err)
		}
	}

	flags := verifier.Verify(rev, prev)
	fmt.Printf("flags: %s\n", flags)
	return nil
}

func verifyAll(ctx context.Context, stor *storage.Client) error {
	latests, err := stor.ListLatest(ctx)
	if err != nil {
		return fmt.Errorf("list_latest: %w", err)
	}

	summary := make(map[string]string, len(latests))

	for _, leaf := range latests {
		branch, err := stor.GetBranch(ctx, leaf)
		if err != nil {
			log.Printf("get_branch %s: %v", leaf, err)
			continue
		}

		var flags verifier.FlagSet
		for i, hash := range branch.Hashes {
			rev, err := stor.GetRevision(ctx, hash)
			if err != nil {
				log.Printf("get_revision %s: %v", hash, err)
				continue
			}
			var prev *hashtypes.Hash
			if i+1 < len(branch.Hashes) {
				prev = &branch.Hashes[i+1]
			}
			if prev == nil {
				flags |= verifier.Verify(rev, nil)
				continue
			}
			prevRev, err := stor.GetRevision(ctx, *prev)
			if err != nil {
				log.Printf("get_revision %s: %v", *prev, err)
				continue
			}
			flags |= verifier.Verify(rev, prevRev)
		}

		summary[leaf.String()] = flags.IgnoreAbsent().String()
		fmt.Printf("%s: %s\n", leaf, flags)
	}

	content, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile("logfile.json", content, 0o644); err != nil {
		return fmt.Errorf("write logfile.json: %w", err)
	}
	return nil
}

// signPersonalMessage signs message under the Ethereum personal_sign
// convention, matching cmd/guardian's login helper. Kept as a small
// duplicate here rather than a shared package since each of these CLI
// binaries is otherwise self-contained.
func signPersonalMessage(priv *ecdsa.PrivateKey, message string) ([]byte, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	digest := crypto.Keccak256([]byte(prefixed))
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("sign personal message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
