// Copyright 2025 Certen Protocol

package verifier

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/inblockio/guardian-node/internal/revision"
)

func mustContent(t *testing.T, kv map[string]string, order []string) revision.Content {
	t.Helper()
	m := revision.NewOrderedMap()
	for _, k := range order {
		m.Set(k, kv[k])
	}
	return revision.Content{Fields: m, ContentHash: ContentHash(m)}
}

func genesisRevision(domainID string, ts revision.Timestamp, content revision.Content) *revision.Revision {
	metaHash := MetadataHash(domainID, ts, nil)
	vHash := VerificationHash(content.ContentHash, metaHash, nil, nil)
	return &revision.Revision{
		Content: content,
		Metadata: revision.Metadata{
			DomainID:         domainID,
			Timestamp:        ts,
			MetadataHash:     metaHash,
			VerificationHash: vHash,
		},
	}
}

func signedFollowup(t *testing.T, priv *ecdsa.PrivateKey, domainID string, ts revision.Timestamp, content revision.Content, prev *revision.Revision) *revision.Revision {
	t.Helper()
	prevHash := prev.Hash()
	metaHash := MetadataHash(domainID, ts, &prevHash)

	sig, err := Sign(priv, prevHash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	vHash := VerificationHash(content.ContentHash, metaHash, &sig.SignatureHash, nil)
	return &revision.Revision{
		Content: content,
		Metadata: revision.Metadata{
			DomainID:                 domainID,
			Timestamp:                ts,
			PreviousVerificationHash: &prevHash,
			MetadataHash:             metaHash,
			VerificationHash:         vHash,
		},
		Signature: &sig,
	}
}

func mustPrivKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return priv
}

func TestVerifyGenesisRevisionIsClean(t *testing.T) {
	ts := revision.NewTimestamp(time.Now())
	content := mustContent(t, map[string]string{"a": "hello"}, []string{"a"})
	genesis := genesisRevision("domain-1", ts, content)

	flags := Verify(genesis, nil)
	if !flags.IgnoreAbsent().IsEmpty() {
		t.Errorf("clean genesis revision reported flags: %s", flags)
	}
	if !flags.Has(NoSignature) {
		t.Error("unsigned genesis revision should report NoSignature")
	}
	if !flags.Has(NoWitness) {
		t.Error("un-witnessed genesis revision should report NoWitness")
	}
}

func TestVerifySignedFollowupIsClean(t *testing.T) {
	priv := mustPrivKey(t)
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))
	followup := signedFollowup(t, priv, "domain-1", ts, mustContent(t, map[string]string{"a": "2"}, []string{"a"}), genesis)

	flags := Verify(followup, genesis)
	if !flags.IgnoreAbsent().IsEmpty() {
		t.Errorf("clean signed revision reported flags: %s", flags)
	}
	if flags.Has(NoSignature) {
		t.Error("signed revision should not report NoSignature")
	}
}

func TestVerifyDetectsContentHashMismatch(t *testing.T) {
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))

	genesis.Content.Fields.Set("a", "tampered")

	flags := Verify(genesis, nil)
	if !flags.Has(ContentHashMismatch) {
		t.Errorf("expected ContentHashMismatch, got %s", flags)
	}
}

func TestVerifyDetectsMetadataHashMismatch(t *testing.T) {
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))

	genesis.Metadata.DomainID = "domain-2"

	flags := Verify(genesis, nil)
	if !flags.Has(MetadataHashMismatch) {
		t.Errorf("expected MetadataHashMismatch, got %s", flags)
	}
}

func TestVerifyDetectsPrevVerificationHashMismatch(t *testing.T) {
	priv := mustPrivKey(t)
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))
	otherGenesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "other"}, []string{"a"}))
	followup := signedFollowup(t, priv, "domain-1", ts, mustContent(t, map[string]string{"a": "2"}, []string{"a"}), genesis)

	flags := Verify(followup, otherGenesis)
	if !flags.Has(PrevVerificationHashMismatch) {
		t.Errorf("expected PrevVerificationHashMismatch, got %s", flags)
	}
}

func TestVerifyDetectsMissingPrevRevision(t *testing.T) {
	priv := mustPrivKey(t)
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))
	followup := signedFollowup(t, priv, "domain-1", ts, mustContent(t, map[string]string{"a": "2"}, []string{"a"}), genesis)

	flags := Verify(followup, nil)
	if !flags.Has(NoPrevRevision) {
		t.Errorf("expected NoPrevRevision, got %s", flags)
	}
}

func TestVerifyDetectsPublicKeyMismatch(t *testing.T) {
	signer := mustPrivKey(t)
	impostor := mustPrivKey(t)
	ts := revision.NewTimestamp(time.Now())
	genesis := genesisRevision("domain-1", ts, mustContent(t, map[string]string{"a": "1"}, []string{"a"}))
	followup := signedFollowup(t, signer, "domain-1", ts, mustContent(t, map[string]string{"a": "2"}, []string{"a"}), genesis)

	followup.Signature.PublicKey = [65]byte{}
	copy(followup.Signature.PublicKey[:], crypto.FromECDSAPub(&impostor.PublicKey))
	followup.Signature.SignatureHash = SignatureHash(followup.Signature.Sig, followup.Signature.PublicKey)
	followup.Metadata.VerificationHash = VerificationHash(followup.Content.ContentHash, followup.Metadata.MetadataHash, &followup.Signature.SignatureHash, nil)

	flags := Verify(followup, genesis)
	if !flags.Has(PublicKeyMismatch) {
		t.Errorf("expected PublicKeyMismatch, got %s", flags)
	}
}

func TestVerifyFileHash(t *testing.T) {
	ts := revision.NewTimestamp(time.Now())
	m := revision.NewOrderedMap()
	m.Set(revision.FileHashKey, wrongFileHash())
	content := revision.Content{Fields: m, ContentHash: ContentHash(m), File: []byte("file bytes")}
	genesis := genesisRevision("domain-1", ts, content)

	flags := Verify(genesis, nil)
	if !flags.Has(FileHashMismatch) {
		t.Errorf("expected FileHashMismatch, got %s", flags)
	}
}

func TestVerifyNoFileFlagWhenHashDeclaredButAbsent(t *testing.T) {
	ts := revision.NewTimestamp(time.Now())
	m := revision.NewOrderedMap()
	m.Set(revision.FileHashKey, wrongFileHash())
	content := revision.Content{Fields: m, ContentHash: ContentHash(m)}
	genesis := genesisRevision("domain-1", ts, content)

	flags := Verify(genesis, nil)
	if !flags.Has(NoFile) {
		t.Errorf("expected NoFile, got %s", flags)
	}
}

func wrongFileHash() string {
	h := newHasher().update("not the real file").finalize()
	return h.String()
}
