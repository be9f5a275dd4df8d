package cose

import (
	"bytes"
	"errors"
	"testing"
)

// Testable property #3: AAD binding. Signing with one ExternalAAD and
// verifying with a different (or absent) one must fail, since AAD is
// folded into the TBS structure (§4.2).
func TestSign1_ExternalAADBinding(t *testing.T) {
	key := generateECDSAKeyForTest(t)
	signer := &ecdsaSigner{alg: AlgES256, key: key}
	verifier := &ecdsaVerifier{alg: AlgES256, pub: &key.PublicKey}

	payload := []byte("bound payload")
	aad := []byte("context-a")

	out, err := Sign1(payload, nil, signer, Options{ExternalAAD: aad})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}

	if _, err := Verify1(out, []Verifier{verifier}, nil, Options{}); err == nil {
		t.Fatal("expected Verify1 to fail when AAD is omitted at verify time")
	}
	if _, err := Verify1(out, []Verifier{verifier}, nil, Options{ExternalAAD: []byte("context-b")}); err == nil {
		t.Fatal("expected Verify1 to fail with a different AAD")
	}
	if _, err := Verify1(out, []Verifier{verifier}, nil, Options{ExternalAAD: aad}); err != nil {
		t.Fatalf("expected Verify1 to succeed with the matching AAD, got %v", err)
	}
}

// Testable property #6: Determinism. CanonicalEncoding must produce
// byte-identical output across repeated calls over the same inputs.
func TestSign1_CanonicalEncodingIsDeterministic(t *testing.T) {
	signer := &fixedSigSigner{alg: AlgShortCircuit, sig: bytes.Repeat([]byte{0x42}, 8)}

	body := NewParameterList()
	body.MustAdd(IntLabel(200), "z-value", Unprotected)
	body.MustAdd(IntLabel(3), "text/plain", Unprotected)

	payload := []byte("deterministic payload")
	opts := Options{CanonicalEncoding: true}

	out1, err := Sign1(payload, body.Clone(), signer, opts)
	if err != nil {
		t.Fatalf("Sign1 (first): %v", err)
	}
	out2, err := Sign1(payload, body.Clone(), signer, opts)
	if err != nil {
		t.Fatalf("Sign1 (second): %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("canonical encoding produced different output across runs:\n%x\n%x", out1, out2)
	}
}

// Testable property #7: Criticality. An unrecognized label in crit that
// no CriticalLabelReader accepts must fail verification.
func TestVerify1_UnknownCriticalParameterRejected(t *testing.T) {
	key := generateECDSAKeyForTest(t)
	signer := &ecdsaSigner{alg: AlgES256, key: key}
	verifier := &ecdsaVerifier{alg: AlgES256, pub: &key.PublicKey}

	const customLabel = int64(100)
	body := NewParameterList()
	body.MustAdd(IntLabel(customLabel), "custom-value", Protected)
	body.MustAdd(IntLabel(LabelCrit), []Label{IntLabel(customLabel)}, Protected)

	payload := []byte("critical payload")
	out, err := Sign1(payload, body, signer, Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}

	if _, err := Verify1(out, []Verifier{verifier}, nil, Options{}); !errors.Is(err, ErrUnknownCriticalParameter) {
		t.Fatalf("expected ErrUnknownCriticalParameter with no reader, got %v", err)
	}

	reader := func(label Label) bool { return !label.IsText && label.Int == customLabel }
	if _, err := Verify1(out, []Verifier{verifier}, nil, Options{CriticalLabelReader: reader}); err != nil {
		t.Fatalf("expected verification to succeed once the reader accepts label %d, got %v", customLabel, err)
	}
}

// fixedSigSigner always returns the same signature bytes, so two
// Sign1 calls over identical inputs can be compared byte-for-byte
// without needing a real non-deterministic signature scheme.
type fixedSigSigner struct {
	alg AlgorithmID
	sig []byte
}

func (s *fixedSigSigner) Algorithm() AlgorithmID { return s.alg }
func (s *fixedSigSigner) HeaderCallback() *ParameterList {
	return NewParameterList().MustAdd(IntLabel(LabelAlg), int64(s.alg), Protected)
}
func (s *fixedSigSigner) SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error) {
	return s.sig, nil
}
