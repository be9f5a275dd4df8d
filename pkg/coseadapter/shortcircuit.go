//go:build cosetest

package coseadapter

import (
	"bytes"
	"crypto/sha256"

	"github.com/qcose/qcose/pkg/cose"
)

// ShortCircuitSigner implements cose.Signer for AlgShortCircuit
// (SPEC_FULL.md §4.3/§9 S1): sign returns SHA-256(TBS) in place of a
// real signature. Built only under the cosetest tag so it can never
// ship in a release binary. Grounded on t_cose's
// t_cose_signature_verify_short.c short-circuit mode.
type ShortCircuitSigner struct {
	kid []byte
}

// NewShortCircuitSigner builds a short-circuit test signer. kid may
// be nil; the short-circuit verifier's own kid check (if any) is the
// caller's responsibility, per SPEC_FULL.md §4.6's decision to keep
// kid lookup pluggable rather than hard-coded into the engine.
func NewShortCircuitSigner(kid []byte) *ShortCircuitSigner {
	return &ShortCircuitSigner{kid: kid}
}

func (s *ShortCircuitSigner) Algorithm() cose.AlgorithmID { return cose.AlgShortCircuit }

func (s *ShortCircuitSigner) HeaderCallback() *cose.ParameterList {
	p := cose.NewParameterList()
	p.MustAdd(cose.IntLabel(cose.LabelAlg), int64(cose.AlgShortCircuit), cose.Protected)
	if len(s.kid) > 0 {
		p.MustAdd(cose.IntLabel(cose.LabelKID), s.kid, cose.Unprotected)
	}
	return p
}

func (s *ShortCircuitSigner) SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error) {
	context := "Signature1"
	if signProtected != nil {
		context = "Signature"
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(tbs)
	return sum[:], nil
}

// ShortCircuitVerifier implements cose.Verifier for AlgShortCircuit:
// verify recomputes SHA-256(TBS) and compares it bytewise against the
// signature field.
type ShortCircuitVerifier struct {
	kid []byte
}

// NewShortCircuitVerifier builds a short-circuit test verifier. kid,
// if non-nil, restricts Accepts to messages carrying exactly that kid.
func NewShortCircuitVerifier(kid []byte) *ShortCircuitVerifier {
	return &ShortCircuitVerifier{kid: kid}
}

func (v *ShortCircuitVerifier) Accepts(alg cose.AlgorithmID, kid []byte) bool {
	if alg != cose.AlgShortCircuit {
		return false
	}
	if len(v.kid) == 0 {
		return true
	}
	return bytes.Equal(kid, v.kid)
}

// MatchesAlgorithm reports whether this verifier was built for alg,
// regardless of its own fixed kid — see cose.AlgorithmMatcher.
func (v *ShortCircuitVerifier) MatchesAlgorithm(alg cose.AlgorithmID) bool {
	return alg == cose.AlgShortCircuit
}

func (v *ShortCircuitVerifier) Verify1(bodyProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature1", bodyProtected, nil, aad, payload, signature, decodeOnly)
}

func (v *ShortCircuitVerifier) VerifySignature(bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature", bodyProtected, signProtected, aad, payload, signature, decodeOnly)
}

func (v *ShortCircuitVerifier) verify(context string, bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	if decodeOnly {
		return nil
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(tbs)
	if !bytes.Equal(sum[:], signature) {
		return cose.ErrSigVerifyFail
	}
	return nil
}
