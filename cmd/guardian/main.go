// Copyright 2025 Certen Protocol
//
// guardian is the long-running node: it loads its identity and
// configuration, rebuilds its reachability graph from local storage,
// publishes its own identity/servitude declarations if missing, then serves
// the mTLS RPC surface while syncing with every known peer. Grounded on
// original_source/src/main.rs's startup sequence and the teacher's root
// main.go signal-driven graceful-shutdown idiom.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inblockio/guardian-node/internal/bootstrap"
	"github.com/inblockio/guardian-node/internal/config"
	"github.com/inblockio/guardian-node/internal/metrics"
	"github.com/inblockio/guardian-node/internal/peersync"
	"github.com/inblockio/guardian-node/internal/rpc"
	"github.com/inblockio/guardian-node/internal/state"
	"github.com/inblockio/guardian-node/internal/storage"
	"github.com/inblockio/guardian-node/internal/trustseed"
)

func main() {
	logger := log.New(log.Writer(), "[guardian] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	identity, err := bootstrap.LoadOrCreateIdentity("identity.pem", cfg.PrivateKey, cfg.Host, cfg.Port)
	if err != nil {
		logger.Fatalf("identity: %v", err)
	}

	stor, err := storage.New(cfg.PKCURL, log.New(log.Writer(), "[storage] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	loginCtx, loginCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = stor.Login(loginCtx, cfg.Address, func(message string) ([]byte, error) {
		return signPersonalMessage(cfg.PrivateKey, message)
	})
	loginCancel()
	if err != nil {
		logger.Fatalf("login: %v", err)
	}

	reg := metrics.New(prometheus.DefaultRegisterer)
	st := state.New(stor)

	if seedPath := os.Getenv("CLIENTS_FILE"); seedPath != "" {
		seedPeers, err := trustseed.Load(seedPath)
		if err != nil {
			logger.Fatalf("clients seed: %v", err)
		}
		for _, p := range seedPeers {
			logger.Printf("clients seed: known peer %s at %s", p.Address, p.URL)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger.Printf("sweeping local storage")
	if err := peersync.InitialSweep(ctx, st, stor, reg, logger); err != nil {
		logger.Printf("initial sweep: %v", err)
	}

	if err := bootstrap.PublishIdentity(ctx, st, stor, cfg.PrivateKey, cfg.Address, cfg.Host, cfg.Port, identity.Certificate[0]); err != nil {
		logger.Printf("publish identity: %v", err)
	}
	if err := bootstrap.PublishServitude(ctx, st, stor, cfg.PrivateKey, cfg.Address, cfg.AdminUser); err != nil {
		logger.Printf("publish servitude: %v", err)
	}
	if user, ok := st.GuardianServitudeFor(cfg.Address); ok && user != cfg.AdminUser {
		logger.Fatalf("servitude invalid: effective user %s does not match configured admin %s", user, cfg.AdminUser)
	}

	rpcServer := rpc.New(st, stor, cfg.AdminUser, reg, log.New(log.Writer(), "[rpc] ", log.LstdFlags))

	listenAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	tlsListener, err := tls.Listen("tcp", listenAddr, rpcServer.TLSConfig(identity))
	if err != nil {
		logger.Fatalf("listen %s: %v", listenAddr, err)
	}
	rpcHTTPServer := &http.Server{Handler: rpcServer}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: "127.0.0.1:9090", Handler: metricsMux}

	go func() {
		logger.Printf("rpc listening on %s", listenAddr)
		if err := rpcHTTPServer.Serve(tlsListener); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("rpc server: %v", err)
		}
	}()
	go func() {
		logger.Printf("metrics listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server: %v", err)
		}
	}()

	syncManager := peersync.New(st, stor, identity, cfg.Address, reg, log.New(log.Writer(), "[peersync] ", log.LstdFlags))
	go syncManager.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := rpcHTTPServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("rpc server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown: %v", err)
	}
}

// signPersonalMessage signs message under the Ethereum personal_sign
// convention ("\x19Ethereum Signed Message:\n" || len(message) || message),
// the scheme the PKC's SIWE login flow expects — distinct from the
// revision-specific prefix internal/verifier.Sign uses.
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
