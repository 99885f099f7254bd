// Copyright 2025 Certen Protocol
//
// Package bootstrap mints and publishes the two declarations a fresh
// guardian needs before it can serve anyone: a TlsIdentityClaim binding its
// mTLS certificate to its address, and a GuardianServitude declaring which
// user it intends to serve (awaiting that user's own signature to become
// effective). Grounded on original_source/src/certificate_generation.rs and
// original_source/src/contract_generation.rs, translated from rcgen/rustls
// to crypto/x509/crypto/tls.
package bootstrap

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/contract"
	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
	"github.com/inblockio/guardian-node/internal/state"
	"github.com/inblockio/guardian-node/internal/storage"
	"github.com/inblockio/guardian-node/internal/verifier"
)

// identityCertValidity is generously long: a guardian's certificate is
// revoked by superseding its TlsIdentityClaim, not by expiry.
const identityCertValidity = 10 * 365 * 24 * time.Hour

// LoadOrCreateIdentity reads path (a PEM file holding the certificate
// followed by its private key, mirroring identity.pem in the original tool)
// if it exists, or mints a fresh self-signed certificate for priv, host and
// port and writes it to path.
func LoadOrCreateIdentity(path string, priv *ecdsa.PrivateKey, host string, port uint16) (tls.Certificate, error) {
	if _, err := os.Stat(path); err == nil {
		return tls.LoadX509KeyPair(path, path)
	}

	der, err := selfSignedCertDER(priv, host, port)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("bootstrap: mint certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("bootstrap: marshal key: %w", err)
	}

	var out []byte
	out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	out = append(out, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("bootstrap: write %s: %w", path, err)
	}

	return tls.LoadX509KeyPair(path, path)
}

// selfSignedCertDER mints a self-signed certificate whose subject alternate
// names are the node's IP (for TLS hostname matching on dial) and its
// guardian address as a DNS name (for TlsIdentityClaim's
// cert.VerifyHostname(guardian) check).
func selfSignedCertDER(priv *ecdsa.PrivateKey, host string, port uint16) ([]byte, error) {
	guardian, err := hashtypes.AddressFromPublicKey(crypto.FromECDSAPub(&priv.PublicKey))
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: guardian.String()},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(identityCertValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{guardian.String()},
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = append(template.DNSNames, host)
	}

	return x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
}

// genesis builds the unsigned genesis revision instantiating content, keyed
// under domainID (the declaring guardian's own address, per the original
// tool's convention).
func genesis(content *revision.Content, domainID string, ts revision.Timestamp) revision.Revision {
	metadataHash := verifier.MetadataHash(domainID, ts, nil)
	verificationHash := verifier.VerificationHash(content.ContentHash, metadataHash, nil, nil)

	return revision.Revision{
		Content: *content,
		Metadata: revision.Metadata{
			DomainID:         domainID,
			Timestamp:        ts,
			VerificationHash: verificationHash,
		},
	}
}

// signed builds the revision following prev, signed by priv — the second
// half of every bootstrap declaration, since a contract with no signatures
// at all is never effective.
func signed(prev *revision.Revision, priv *ecdsa.PrivateKey, domainID string, ts revision.Timestamp) (revision.Revision, error) {
	sig, err := verifier.Sign(priv, prev.Metadata.VerificationHash)
	if err != nil {
		return revision.Revision{}, err
	}

	content := *prev.Content.Fields
	metadataHash := verifier.MetadataHash(domainID, ts, &prev.Metadata.VerificationHash)
	verificationHash := verifier.VerificationHash(prev.Content.ContentHash, metadataHash, &sig.SignatureHash, nil)
	prevHash := prev.Metadata.VerificationHash

	return revision.Revision{
		Content: revision.Content{Fields: &content, ContentHash: prev.Content.ContentHash},
		Metadata: revision.Metadata{
			DomainID:                 domainID,
			Timestamp:                ts,
			PreviousVerificationHash: &prevHash,
			MetadataHash:             metadataHash,
			VerificationHash:         verificationHash,
		},
		Signature: &sig,
	}, nil
}

// PublishIdentity mints and imports the genesis/signed pair declaring certDER
// as guardian's TlsIdentityClaim, unless one already live in st claims the
// exact same certificate.
func PublishIdentity(ctx context.Context, st *state.GuardianState, stor *storage.Client, priv *ecdsa.PrivateKey, guardian hashtypes.Address, host string, port uint16, certDER []byte) error {
	if existing, ok := st.GuardianIdentityFor(certDER); ok && existing == guardian {
		return nil
	}

	c := &contract.Contract{TlsIdentityClaim: &contract.TlsIdentityClaim{
		Cert:     certDER,
		Guardian: guardian,
		Host:     host,
		Port:     port,
	}}
	return publishContract(ctx, st, stor, priv, guardian, c)
}

// PublishServitude mints and imports the genesis/signed pair declaring
// guardian's intent to serve user, unless one is already live.
func PublishServitude(ctx context.Context, st *state.GuardianState, stor *storage.Client, priv *ecdsa.PrivateKey, guardian, user hashtypes.Address) error {
	if existing, ok := st.GuardianServitudeFor(guardian); ok && existing == user {
		return nil
	}

	c := &contract.Contract{GuardianServitude: &contract.GuardianServitude{
		Guardian: guardian,
		User:     user,
	}}
	return publishContract(ctx, st, stor, priv, guardian, c)
}

func publishContract(ctx context.Context, st *state.GuardianState, stor *storage.Client, priv *ecdsa.PrivateKey, domain hashtypes.Address, c *contract.Contract) error {
	now := revision.NewTimestamp(time.Now())

	g := genesis(c.MakeContent(), domain.String(), now)
	s, err := signed(&g, priv, domain.String(), now)
	if err != nil {
		return fmt.Errorf("bootstrap: sign declaration: %w", err)
	}

	branchCtx := storage.BranchContext{Namespace: 0, Title: domain.String()}
	for _, rev := range []revision.Revision{g, s} {
		rev := rev
		if _, err := st.Add(ctx, rev.Hash(), &rev); err != nil {
			return fmt.Errorf("bootstrap: add %s: %w", rev.Hash(), err)
		}
		if err := stor.Import(ctx, branchCtx, &rev, true); err != nil {
			return fmt.Errorf("bootstrap: import %s: %w", rev.Hash(), err)
		}
	}
	return nil
}
