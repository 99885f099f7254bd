// Copyright 2025 Certen Protocol
//
// Package contract recognizes and interprets the three fixed contract
// templates a revision's content can instantiate: AccessAgreement,
// GuardianServitude, and TlsIdentityClaim. Grounded on
// original_source/contract-interpreter/src/lib.rs.
package contract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/inblockio/guardian-node/internal/hashtypes"
	"github.com/inblockio/guardian-node/internal/revision"
)

// Template hashes identify which contract a revision's content instantiates.
// These are verification hashes of fixed MediaWiki templates; changing a
// template means updating the hash recorded here.
const (
	AccessAgreementTemplateHash   = "725c2b99a955a690e50a1f22f356a64b02c144dd5adcbc09ac09f861fe2cc45a47185d7a9f5ecc60af86c0e60545aabe8c8c9c34feff92ea1da511ec0e2ef2ac"
	GuardianServitudeTemplateHash = "2c82d270181179987518d620c102a0fc9db1d5ed7238795cc87d9e1de70ed3b6f67236dd3152881d620f9270b7dcb7fea72bd7e9b859dc2478a3058b078f5204"
	TlsIdentityClaimTemplateHash  = "95ce4ec4bf2b92019feff4843ddd7b849db8c7c0bd2afe325566dee7c6d5bcc6d1870032d3fa5230bb2f184a689f9b758f8282a2a1984238178581fb7895df13"
)

var (
	ErrUnknownTemplateHash = errors.New("contract: unknown template hash")
	ErrNotAContract        = errors.New("contract: revision content is not a recognized contract")
	ErrAdditionalKeys      = errors.New("contract: unknown parameters specified")
)

// SequencedContract is implemented by every contract type: its effectiveness
// depends only on the order in which participants have signed.
type SequencedContract interface {
	// SequenceNumber identifies which position in the contract's signing
	// order rev occupies, given rev's own signer (nil for an unsigned
	// revision, e.g. the chain's declaration). nil means rev's signer is not
	// a party to this contract.
	SequenceNumber(signer *hashtypes.Address) *uint8
}

// Contract is the sum type of every recognized contract template.
type Contract struct {
	AccessAgreement   *AccessAgreement
	GuardianServitude *GuardianServitude
	TlsIdentityClaim  *TlsIdentityClaim
}

// TemplateHash returns the fixed template hash identifying c's contract type.
func (c *Contract) TemplateHash() string {
	switch {
	case c.AccessAgreement != nil:
		return AccessAgreementTemplateHash
	case c.GuardianServitude != nil:
		return GuardianServitudeTemplateHash
	case c.TlsIdentityClaim != nil:
		return TlsIdentityClaimTemplateHash
	default:
		return ""
	}
}

// Sequenced returns the SequencedContract interface implemented by whichever
// member of c is populated.
func (c *Contract) Sequenced() SequencedContract {
	switch {
	case c.AccessAgreement != nil:
		return c.AccessAgreement
	case c.GuardianServitude != nil:
		return c.GuardianServitude
	case c.TlsIdentityClaim != nil:
		return c.TlsIdentityClaim
	default:
		return nil
	}
}

// genericInfo is the template-agnostic view of a revision's content, pulled
// out of the MediaWiki-style "main" transclusion before any
// template-specific parsing happens.
type genericInfo struct {
	templateHash  string
	transclusions map[string]hashtypes.Hash
	params        map[string]string
	file          []byte
}

// transclusion mirrors the JSON array stored under the "transclusion-hashes"
// content field: one entry per page pulled into the rendered contract.
type transclusion struct {
	DBKey             string         `json:"dbkey"`
	NS                int            `json:"ns"`
	VerificationHash  hashtypes.Hash `json:"verification_hash"`
}

// escapeParam/unescapeParam replace/restore the three MediaWiki
// metacharacters a contract parameter value must not leak raw: "|", "{", "}".
func escapeParam(s string) string {
	r := strings.NewReplacer("|", "{{|}}", "{", "{{(}}", "}", "{{)}}")
	return r.Replace(s)
}

func unescapeParam(s string) string {
	r := strings.NewReplacer("{{|}}", "|", "{{(}}", "{", "{{)}}", "}")
	return r.Replace(s)
}

// parseGenericInfo extracts the template hash, transclusion lookup table,
// and escaped key=value parameters out of a revision's "main" content field.
func parseGenericInfo(rev *revision.Content) (*genericInfo, error) {
	mainField, ok := rev.Fields.Get("main")
	if !ok {
		return nil, ErrNotAContract
	}
	body, ok := strings.CutPrefix(mainField, "{{")
	if !ok {
		return nil, ErrNotAContract
	}
	body, ok = strings.CutSuffix(body, "\n}}")
	if !ok {
		return nil, ErrNotAContract
	}

	items := strings.Split(body, "\n|")
	if len(items) == 0 {
		return nil, ErrNotAContract
	}
	templateName := strings.ReplaceAll(items[0], " ", "_")
	items = items[1:]

	transJSON, ok := rev.Fields.Get("transclusion-hashes")
	if !ok {
		return nil, ErrNotAContract
	}
	var transList []transclusion
	if err := decodeJSON(transJSON, &transList); err != nil {
		return nil, fmt.Errorf("%w: transclusion-hashes: %v", ErrNotAContract, err)
	}
	transLookup := make(map[string]hashtypes.Hash, len(transList))
	for _, t := range transList {
		transLookup[t.DBKey] = t.VerificationHash
	}

	templateHashVal, ok := transLookup[templateName]
	if !ok {
		return nil, ErrNotAContract
	}

	params := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, ErrNotAContract
		}
		params[key] = unescapeParam(value)
	}

	return &genericInfo{
		templateHash:  templateHashVal.String(),
		transclusions: transLookup,
		params:        params,
		file:          rev.File,
	}, nil
}

// FromRevision recognizes rev's content as one of the known contract
// templates and parses it, or returns ErrUnknownTemplateHash /
// ErrNotAContract if it is not a contract at all.
func FromRevision(content *revision.Content) (*Contract, error) {
	info, err := parseGenericInfo(content)
	if err != nil {
		return nil, err
	}

	switch info.templateHash {
	case AccessAgreementTemplateHash:
		aa, err := parseAccessAgreement(info)
		if err != nil {
			return nil, fmt.Errorf("contract: access agreement: %w", err)
		}
		return &Contract{AccessAgreement: aa}, nil
	case GuardianServitudeTemplateHash:
		gs, err := parseGuardianServitude(info)
		if err != nil {
			return nil, fmt.Errorf("contract: guardian servitude: %w", err)
		}
		return &Contract{GuardianServitude: gs}, nil
	case TlsIdentityClaimTemplateHash:
		tic, err := parseTlsIdentityClaim(info)
		if err != nil {
			return nil, fmt.Errorf("contract: tls identity claim: %w", err)
		}
		return &Contract{TlsIdentityClaim: tic}, nil
	default:
		return nil, ErrUnknownTemplateHash
	}
}

// MakeContent renders c back into revision content suitable for pushing a
// new contract revision, the inverse of FromRevision.
func (c *Contract) MakeContent() *revision.Content {
	var name, main string
	var transclusions []transclusion

	switch {
	case c.AccessAgreement != nil:
		aa := c.AccessAgreement
		name = "AccessAgreement"
		main = fmt.Sprintf("{{%s\n|sender=%s\n|receiver=%s\n|", name, aa.Sender, aa.Receiver)
		transclusions = append(transclusions, transclusion{DBKey: name, NS: 10, VerificationHash: mustParseHash(AccessAgreementTemplateHash)})
		pageNames := make([]string, 0, len(aa.Pages))
		for _, p := range aa.Pages {
			pageNames = append(pageNames, p.Name)
			transclusions = append(transclusions, transclusion{DBKey: p.Name, NS: 0, VerificationHash: p.TranscludedHash})
		}
		main += fmt.Sprintf("pages=%s", strings.Join(pageNames, ", "))
		if aa.Terms != nil {
			main += fmt.Sprintf("\n|terms=%s", escapeParam(*aa.Terms))
		}
		main += "\n}}"

	case c.GuardianServitude != nil:
		gs := c.GuardianServitude
		name = "GuardianServitude"
		main = fmt.Sprintf("{{%s\n|guardian=%s\n|user=%s\n}}", name, gs.Guardian, gs.User)
		transclusions = append(transclusions, transclusion{DBKey: name, NS: 10, VerificationHash: mustParseHash(GuardianServitudeTemplateHash)})

	case c.TlsIdentityClaim != nil:
		tic := c.TlsIdentityClaim
		name = "TlsIdentityClaim"
		main = fmt.Sprintf("{{%s\n|guardian=%s\n|file=%s\n|host=%s\n|port=%d\n}}",
			name, tic.Guardian, base64.StdEncoding.EncodeToString(tic.Cert), tic.Host, tic.Port)
		transclusions = append(transclusions, transclusion{DBKey: name, NS: 10, VerificationHash: mustParseHash(TlsIdentityClaimTemplateHash)})

	default:
		return nil
	}

	fields := revision.NewOrderedMap()
	fields.Set("transclusion-hashes", encodeJSON(transclusions))
	fields.Set("main", main)

	return &revision.Content{
		Fields:      fields,
		ContentHash: contentHashOf(fields),
	}
}

func mustParseHash(s string) hashtypes.Hash {
	h, err := hashtypes.ParseHash(s)
	if err != nil {
		panic("contract: malformed template hash constant: " + err.Error())
	}
	return h
}
