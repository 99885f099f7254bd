// Copyright 2025 Certen Protocol
//
// Package verifier recomputes a revision's hash relations and merkle/
// signature proofs and reports which, if any, of a closed taxonomy of
// integrity flags apply. Grounded on
// original_source/verifier/src/v1_1/{verification,signature,witness}.rs.
package verifier

// Flag is one member of the closed integrity-flag taxonomy.
type Flag uint32

const (
	PrevVerificationHashMismatch Flag = 1 << iota
	ContentHashMismatch
	MetadataHashMismatch
	VerificationHashMismatch
	FileHashMismatch
	NoFile
	NoSignature
	PublicKeyMismatch
	SignatureHashMismatch
	SignatureError
	NoWitness
	DuplicateMerkleLeaf
	MerkleTreeIncomplete
	VerificationHashNotInMerkleTree
	WitnessHashMismatch
	NoPrevRevision
)

var flagNames = map[Flag]string{
	PrevVerificationHashMismatch:    "PrevVerificationHashMismatch",
	ContentHashMismatch:             "ContentHashMismatch",
	MetadataHashMismatch:            "MetadataHashMismatch",
	VerificationHashMismatch:        "VerificationHashMismatch",
	FileHashMismatch:                "FileHashMismatch",
	NoFile:                          "NoFile",
	NoSignature:                     "NoSignature",
	PublicKeyMismatch:               "PublicKeyMismatch",
	SignatureHashMismatch:           "SignatureHashMismatch",
	SignatureError:                  "SignatureError",
	NoWitness:                       "NoWitness",
	DuplicateMerkleLeaf:             "DuplicateMerkleLeaf",
	MerkleTreeIncomplete:            "MerkleTreeIncomplete",
	VerificationHashNotInMerkleTree: "VerificationHashNotInMerkleTree",
	WitnessHashMismatch:             "WitnessHashMismatch",
	NoPrevRevision:                  "NoPrevRevision",
}

// FlagSet is a set of Flags, the result of Verify.
type FlagSet uint32

// Has reports whether f is set.
func (fs FlagSet) Has(f Flag) bool {
	return fs&FlagSet(f) != 0
}

// Set returns fs with f added.
func (fs FlagSet) Set(f Flag) FlagSet {
	return fs | FlagSet(f)
}

// Without returns fs with f removed.
func (fs FlagSet) Without(f Flag) FlagSet {
	return fs &^ FlagSet(f)
}

// IsEmpty reports whether no flags are set.
func (fs FlagSet) IsEmpty() bool {
	return fs == 0
}

// IgnoreAbsent strips NoSignature and NoWitness: a revision that simply
// hasn't been signed or witnessed yet is not a failure on its own.
func (fs FlagSet) IgnoreAbsent() FlagSet {
	return fs.Without(NoSignature).Without(NoWitness)
}

// String renders the set as a bracketed, comma-separated list of flag names,
// for logging.
func (fs FlagSet) String() string {
	if fs == 0 {
		return "[]"
	}
	out := "["
	first := true
	for f := Flag(1); f != 0; f <<= 1 {
		if fs.Has(f) {
			if !first {
				out += ", "
			}
			out += flagNames[f]
			first = false
		}
	}
	return out + "]"
}
