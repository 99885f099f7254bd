// Copyright 2025 Certen Protocol

package rpc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

func mintSelfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "guardian-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

func TestClientPinsToExpectedPeerCertificate(t *testing.T) {
	serverIdentity := mintSelfSigned(t)
	clientIdentity := mintSelfSigned(t)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list":
			json.NewEncoder(w).Encode([]hashtypes.Hash{})
		}
	}))
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverIdentity},
		ClientAuth:   tls.RequireAnyClientCert,
	}
	srv.StartTLS()
	defer srv.Close()

	c, err := NewClient(srv.URL, clientIdentity, serverIdentity.Certificate[0])
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
}

func TestClientRejectsUnpinnedServerCertificate(t *testing.T) {
	serverIdentity := mintSelfSigned(t)
	otherIdentity := mintSelfSigned(t)
	clientIdentity := mintSelfSigned(t)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]hashtypes.Hash{})
	}))
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverIdentity},
		ClientAuth:   tls.RequireAnyClientCert,
	}
	srv.StartTLS()
	defer srv.Close()

	// Pin to otherIdentity's cert instead of the one the server actually
	// presents — the handshake must fail.
	c, err := NewClient(srv.URL, clientIdentity, otherIdentity.Certificate[0])
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected List to fail against an unpinned server certificate")
	}
}

func TestNewClientRejectsMalformedPeerCert(t *testing.T) {
	clientIdentity := mintSelfSigned(t)
	if _, err := NewClient("https://example.invalid", clientIdentity, []byte("not a cert")); err == nil {
		t.Fatal("expected error parsing malformed peer certificate")
	}
}
