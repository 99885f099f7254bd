// Copyright 2025 Certen Protocol

package contract

import (
	"errors"
	"strings"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// AccessAgreement shares one or more pages of an Aqua-chain from sender to
// receiver, optionally gated behind terms both parties must sign off on.
type AccessAgreement struct {
	Sender   hashtypes.Address
	Receiver hashtypes.Address
	Pages    []AccessAgreementPage
	Terms    *string
}

// AccessAgreementPage is one shared page: its display name and the
// verification hash it was transcluded under.
type AccessAgreementPage struct {
	Name            string
	TranscludedHash hashtypes.Hash
}

// AccessAgreementEffect is the outcome of an AccessAgreement whose signing
// sequence matches one of its acceptance patterns.
type AccessAgreementEffect int

const (
	// AccessAgreementGranted: no terms, sender has signed — share the file
	// to the receiver immediately.
	AccessAgreementGranted AccessAgreementEffect = iota
	// AccessAgreementOffered: terms present, only the sender has signed —
	// share the contract (not the file) to the receiver.
	AccessAgreementOffered
	// AccessAgreementAccepted: terms present, both sender and receiver have
	// signed — share the contract back to the sender and the file to the
	// receiver.
	AccessAgreementAccepted
)

var (
	ErrSenderMissing      = errors.New("contract: access agreement: sender missing")
	ErrSenderMalformed    = errors.New("contract: access agreement: sender malformed")
	ErrReceiverMissing    = errors.New("contract: access agreement: receiver missing")
	ErrReceiverMalformed  = errors.New("contract: access agreement: receiver malformed")
	ErrPagesMissing       = errors.New("contract: access agreement: pages missing")
	ErrPageNotTranscluded = errors.New("contract: access agreement: page not transcluded")
)

const (
	aaDeclaration       uint8 = 0
	aaSenderSignature   uint8 = 1
	aaReceiverSignature uint8 = 2
)

func parseAccessAgreement(info *genericInfo) (*AccessAgreement, error) {
	params := make(map[string]string, len(info.params))
	for k, v := range info.params {
		params[k] = v
	}

	senderStr, ok := params["sender"]
	if !ok {
		return nil, ErrSenderMissing
	}
	delete(params, "sender")
	sender, err := hashtypes.ParseAddress(senderStr)
	if err != nil {
		return nil, ErrSenderMalformed
	}

	receiverStr, ok := params["receiver"]
	if !ok {
		return nil, ErrReceiverMissing
	}
	delete(params, "receiver")
	receiver, err := hashtypes.ParseAddress(receiverStr)
	if err != nil {
		return nil, ErrReceiverMalformed
	}

	pagesStr, ok := params["pages"]
	if !ok {
		return nil, ErrPagesMissing
	}
	delete(params, "pages")

	var pages []AccessAgreementPage
	for _, name := range strings.Split(pagesStr, ", ") {
		lookupName := strings.ReplaceAll(strings.ReplaceAll(name, " ", "_"), "Media:", "File:")
		hash, ok := info.transclusions[lookupName]
		if !ok {
			return nil, ErrPageNotTranscluded
		}
		pages = append(pages, AccessAgreementPage{Name: lookupName, TranscludedHash: hash})
	}

	var terms *string
	if t, ok := params["terms"]; ok {
		terms = &t
		delete(params, "terms")
	}

	if len(params) != 0 {
		return nil, ErrAdditionalKeys
	}

	return &AccessAgreement{Sender: sender, Receiver: receiver, Pages: pages, Terms: terms}, nil
}

// SequenceNumber implements SequencedContract.
func (aa *AccessAgreement) SequenceNumber(signer *hashtypes.Address) *uint8 {
	if signer == nil {
		v := aaDeclaration
		return &v
	}
	if *signer == aa.Sender {
		v := aaSenderSignature
		return &v
	}
	if *signer == aa.Receiver {
		v := aaReceiverSignature
		return &v
	}
	return nil
}

// IsEffective checks a newest-first sequence of per-revision sequence
// numbers against the patterns that make this AccessAgreement effective. A
// pattern only matches a sequence of exactly its own length: trailing
// entries beyond what the pattern names are not ignored.
func (aa *AccessAgreement) IsEffective(seq []*uint8) *AccessAgreementEffect {
	at := func(i int) (uint8, bool) {
		if i >= len(seq) || seq[i] == nil {
			return 0, false
		}
		return *seq[i], true
	}
	s0, ok0 := at(0)
	s1, ok1 := at(1)
	s2, ok2 := at(2)

	if aa.Terms != nil && len(seq) == 3 && ok0 && s0 == aaReceiverSignature && ok1 && s1 == aaSenderSignature && ok2 && s2 == aaDeclaration {
		e := AccessAgreementAccepted
		return &e
	}
	if len(seq) == 2 && ok0 && s0 == aaSenderSignature && ok1 && s1 == aaDeclaration {
		var e AccessAgreementEffect
		if aa.Terms != nil {
			e = AccessAgreementOffered
		} else {
			e = AccessAgreementGranted
		}
		return &e
	}
	return nil
}
