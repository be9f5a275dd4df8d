package cose

import "strconv"

// AlgorithmID is an IANA COSE Algorithms identifier (RFC 9053 §2 and the
// registry it maintains). Negative values are the common case for
// signature algorithms.
type AlgorithmID int64

// Classical algorithms named by the core (§6).
const (
	AlgES256 AlgorithmID = -7
	AlgES384 AlgorithmID = -35
	AlgES512 AlgorithmID = -36
	AlgEdDSA AlgorithmID = -8
	AlgPS256 AlgorithmID = -37
	AlgPS384 AlgorithmID = -38
	AlgPS512 AlgorithmID = -39

	// AlgShortCircuit is the reserved test-only algorithm ID (§4.3).
	// It is not in the IANA registry; -65536 falls inside COSE's
	// private-use range and is only ever honored by the short-circuit
	// adapter, which is itself feature-gated behind the cosetest build tag.
	AlgShortCircuit AlgorithmID = -65536
)

// PQC algorithm extension (domain stack, §3): draft-ietf-cose-dilithium
// assigns ML-DSA identifiers; SLH-DSA has no assigned codepoint yet, so
// private-use range values are used, matching the reference repo's
// internal/cose/algorithm.go table.
const (
	AlgMLDSA44 AlgorithmID = -48
	AlgMLDSA65 AlgorithmID = -49
	AlgMLDSA87 AlgorithmID = -50

	AlgSLHDSASHA2128s  AlgorithmID = -70020
	AlgSLHDSASHA2128f  AlgorithmID = -70021
	AlgSLHDSASHA2192s  AlgorithmID = -70022
	AlgSLHDSASHA2192f  AlgorithmID = -70023
	AlgSLHDSASHAKE128s AlgorithmID = -70024
	AlgSLHDSASHAKE128f AlgorithmID = -70025
	AlgSLHDSASHAKE192s AlgorithmID = -70026
	AlgSLHDSASHAKE192f AlgorithmID = -70027
)

var algorithmNames = map[AlgorithmID]string{
	AlgES256:           "ES256",
	AlgES384:           "ES384",
	AlgES512:           "ES512",
	AlgEdDSA:           "EdDSA",
	AlgPS256:           "PS256",
	AlgPS384:           "PS384",
	AlgPS512:           "PS512",
	AlgShortCircuit:    "SHORT-CIRCUIT",
	AlgMLDSA44:         "ML-DSA-44",
	AlgMLDSA65:         "ML-DSA-65",
	AlgMLDSA87:         "ML-DSA-87",
	AlgSLHDSASHA2128s:  "SLH-DSA-SHA2-128s",
	AlgSLHDSASHA2128f:  "SLH-DSA-SHA2-128f",
	AlgSLHDSASHA2192s:  "SLH-DSA-SHA2-192s",
	AlgSLHDSASHA2192f:  "SLH-DSA-SHA2-192f",
	AlgSLHDSASHAKE128s: "SLH-DSA-SHAKE-128s",
	AlgSLHDSASHAKE128f: "SLH-DSA-SHAKE-128f",
	AlgSLHDSASHAKE192s: "SLH-DSA-SHAKE-192s",
	AlgSLHDSASHAKE192f: "SLH-DSA-SHAKE-192f",
}

// AlgorithmName returns the IANA name for alg, or a numeric fallback.
func AlgorithmName(alg AlgorithmID) string {
	if name, ok := algorithmNames[alg]; ok {
		return name
	}
	return "unknown(" + strconv.FormatInt(int64(alg), 10) + ")"
}

// IsHashLess reports whether alg signs the TBS bytes directly instead of
// a digest (§4.2) — true for EdDSA and for the PQC signature schemes,
// which all take the message directly rather than a pre-hashed digest.
func IsHashLess(alg AlgorithmID) bool {
	switch alg {
	case AlgEdDSA, AlgMLDSA44, AlgMLDSA65, AlgMLDSA87,
		AlgSLHDSASHA2128s, AlgSLHDSASHA2128f, AlgSLHDSASHA2192s, AlgSLHDSASHA2192f,
		AlgSLHDSASHAKE128s, AlgSLHDSASHAKE128f, AlgSLHDSASHAKE192s, AlgSLHDSASHAKE192f:
		return true
	default:
		return false
	}
}

// IsPQC reports whether alg is one of the post-quantum extension IDs.
func IsPQC(alg AlgorithmID) bool {
	switch alg {
	case AlgMLDSA44, AlgMLDSA65, AlgMLDSA87,
		AlgSLHDSASHA2128s, AlgSLHDSASHA2128f, AlgSLHDSASHA2192s, AlgSLHDSASHA2192f,
		AlgSLHDSASHAKE128s, AlgSLHDSASHAKE128f, AlgSLHDSASHAKE192s, AlgSLHDSASHAKE192f:
		return true
	default:
		return false
	}
}
