// Copyright 2025 Certen Protocol

package state

import "errors"

var (
	ErrPrevNotInState = errors.New("state: previous revision not found in state")
	ErrVerification   = errors.New("state: revision failed integrity verification")
	ErrStorage        = errors.New("state: storage read failed")
	ErrDenied         = errors.New("state: access denied")
)
