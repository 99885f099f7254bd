// Copyright 2025 Certen Protocol

package contract

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// TlsIdentityClaim declares the mTLS certificate a guardian answers RPC
// requests under, and the host:port it is reachable on.
type TlsIdentityClaim struct {
	Cert     []byte
	Guardian hashtypes.Address
	Host     string
	Port     uint16
}

// TlsIdentityClaimEffect is the outcome of a fully-signed TlsIdentityClaim:
// there is only one, since a self-claimed identity needs no counterparty.
type TlsIdentityClaimEffect int

const TlsIdentityClaimed TlsIdentityClaimEffect = iota

var (
	ErrCertMissing         = errors.New("contract: tls identity claim: certificate missing")
	ErrCertNotBase64       = errors.New("contract: tls identity claim: certificate not base64")
	ErrCertMalformed       = errors.New("contract: tls identity claim: certificate malformed")
	ErrCertSubjectMismatch = errors.New("contract: tls identity claim: guardian is not a valid subject name for certificate")
	ErrHostMissing         = errors.New("contract: tls identity claim: host missing")
	ErrPortMissing         = errors.New("contract: tls identity claim: port missing")
	ErrPortMalformed       = errors.New("contract: tls identity claim: port malformed")
)

const (
	ticDeclaration uint8 = 0
	ticSignature   uint8 = 1
)

func parseTlsIdentityClaim(info *genericInfo) (*TlsIdentityClaim, error) {
	params := make(map[string]string, len(info.params))
	for k, v := range info.params {
		params[k] = v
	}

	guardianStr, ok := params["guardian"]
	if !ok {
		return nil, ErrGuardianMissing
	}
	delete(params, "guardian")
	guardian, err := hashtypes.ParseAddress(guardianStr)
	if err != nil {
		return nil, ErrGuardianMalformed
	}

	host, ok := params["host"]
	if !ok {
		return nil, ErrHostMissing
	}
	delete(params, "host")

	portStr, ok := params["port"]
	if !ok {
		return nil, ErrPortMissing
	}
	delete(params, "port")
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, ErrPortMalformed
	}

	fileStr, ok := params["file"]
	if !ok {
		return nil, ErrCertMissing
	}
	delete(params, "file")
	certDER, err := base64.StdEncoding.DecodeString(fileStr)
	if err != nil {
		return nil, ErrCertNotBase64
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, ErrCertMalformed
	}
	if cert.VerifyHostname(guardian.String()) != nil {
		return nil, ErrCertSubjectMismatch
	}

	if len(params) != 0 {
		return nil, ErrAdditionalKeys
	}

	return &TlsIdentityClaim{Cert: certDER, Guardian: guardian, Host: host, Port: uint16(port)}, nil
}

// SequenceNumber implements SequencedContract.
func (tic *TlsIdentityClaim) SequenceNumber(signer *hashtypes.Address) *uint8 {
	if signer == nil {
		v := ticDeclaration
		return &v
	}
	if *signer == tic.Guardian {
		v := ticSignature
		return &v
	}
	return nil
}

// IsEffective checks a newest-first sequence of per-revision sequence
// numbers against the pattern that makes this TlsIdentityClaim effective:
// exactly [signature, declaration], no more and no fewer.
func (tic *TlsIdentityClaim) IsEffective(seq []*uint8) *TlsIdentityClaimEffect {
	if len(seq) != 2 || seq[0] == nil || *seq[0] != ticSignature || seq[1] == nil || *seq[1] != ticDeclaration {
		return nil
	}
	e := TlsIdentityClaimed
	return &e
}
