// Copyright 2025 Certen Protocol

package contract

import (
	"errors"

	"github.com/inblockio/guardian-node/internal/hashtypes"
)

// GuardianServitude binds a guardian to serve a user's Aqua-chains.
type GuardianServitude struct {
	Guardian hashtypes.Address
	User     hashtypes.Address
}

// GuardianServitudeEffect is the outcome of a GuardianServitude whose signing
// sequence matches one of its acceptance patterns.
type GuardianServitudeEffect int

const (
	// GuardianServitudeSuggested: declared only, awaiting the guardian.
	GuardianServitudeSuggested GuardianServitudeEffect = iota
	// GuardianServitudeDeclared: signed by the guardian, awaiting the user.
	GuardianServitudeDeclared
	// GuardianServitudeAccepted: signed by both guardian and user — the
	// guardian now actually serves the user.
	GuardianServitudeAccepted
)

var (
	ErrGuardianMissing   = errors.New("contract: guardian servitude: guardian missing")
	ErrGuardianMalformed = errors.New("contract: guardian servitude: guardian malformed")
	ErrUserMissing       = errors.New("contract: guardian servitude: user missing")
	ErrUserMalformed     = errors.New("contract: guardian servitude: user malformed")
)

const (
	gsDeclaration       uint8 = 0
	gsGuardianSignature uint8 = 1
	gsUserSignature     uint8 = 2
)

func parseGuardianServitude(info *genericInfo) (*GuardianServitude, error) {
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

	userStr, ok := params["user"]
	if !ok {
		return nil, ErrUserMissing
	}
	delete(params, "user")
	user, err := hashtypes.ParseAddress(userStr)
	if err != nil {
		return nil, ErrUserMalformed
	}

	if len(params) != 0 {
		return nil, ErrAdditionalKeys
	}

	return &GuardianServitude{Guardian: guardian, User: user}, nil
}

// SequenceNumber implements SequencedContract.
func (gs *GuardianServitude) SequenceNumber(signer *hashtypes.Address) *uint8 {
	if signer == nil {
		v := gsDeclaration
		return &v
	}
	if *signer == gs.Guardian {
		v := gsGuardianSignature
		return &v
	}
	if *signer == gs.User {
		v := gsUserSignature
		return &v
	}
	return nil
}

// IsEffective checks a newest-first sequence of per-revision sequence
// numbers against the patterns that make this GuardianServitude effective.
// A pattern only matches a sequence of exactly its own length: trailing
// entries beyond what the pattern names are not ignored.
func (gs *GuardianServitude) IsEffective(seq []*uint8) *GuardianServitudeEffect {
	at := func(i int) (uint8, bool) {
		if i >= len(seq) || seq[i] == nil {
			return 0, false
		}
		return *seq[i], true
	}
	s0, ok0 := at(0)
	s1, ok1 := at(1)
	s2, ok2 := at(2)

	switch {
	case len(seq) == 3 && ok0 && s0 == gsUserSignature && ok1 && s1 == gsGuardianSignature && ok2 && s2 == gsDeclaration:
		e := GuardianServitudeAccepted
		return &e
	case len(seq) == 2 && ok0 && s0 == gsGuardianSignature && ok1 && s1 == gsDeclaration:
		e := GuardianServitudeDeclared
		return &e
	case len(seq) == 1 && ok0 && s0 == gsDeclaration:
		e := GuardianServitudeSuggested
		return &e
	default:
		return nil
	}
}
