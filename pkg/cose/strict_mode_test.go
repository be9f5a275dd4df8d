package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// buildSign1WithEmptyProtectedMap hand-encodes a COSE_Sign1 array whose
// protected bucket is the non-canonical explicit empty map (0xa0 inside
// the byte string) rather than the zero-length byte string §4.1 calls
// for, so the decode-path strict-mode/warning behavior can be exercised
// without going through Sign1's own collapseEmptyMap canonicalization.
func buildSign1WithEmptyProtectedMap(t *testing.T, payload, sig []byte) []byte {
	t.Helper()
	emptyMap, err := cbor.Marshal(map[any]any{})
	if err != nil {
		t.Fatalf("marshal empty map: %v", err)
	}
	// alg travels in the unprotected bucket here purely so Verify1 has
	// something to dispatch on; the protected bucket under test carries
	// no parameters at all.
	unprotected := map[any]any{LabelAlg: int64(AlgES256)}
	arr := []any{emptyMap, unprotected, payload, sig}
	out, err := cbor.Marshal(cbor.Tag{Number: CBORTagSign1, Content: arr})
	if err != nil {
		t.Fatalf("marshal COSE_Sign1 array: %v", err)
	}
	return out
}

func TestVerify1_EmptyProtectedMapWarnsByDefault(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := &ecdsaVerifier{alg: AlgES256, pub: &key.PublicKey}

	data := buildSign1WithEmptyProtectedMap(t, []byte("payload"), []byte("sig"))

	msg, err := Verify1(data, []Verifier{verifier}, nil, Options{DecodeOnly: true})
	if err != nil {
		t.Fatalf("Verify1: %v", err)
	}
	if len(msg.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one warning", msg.Warnings)
	}
}

func TestVerify1_EmptyProtectedMapRejectedInStrictMode(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := &ecdsaVerifier{alg: AlgES256, pub: &key.PublicKey}

	data := buildSign1WithEmptyProtectedMap(t, []byte("payload"), []byte("sig"))

	_, err = Verify1(data, []Verifier{verifier}, nil, Options{DecodeOnly: true, StrictMode: true})
	if err == nil {
		t.Fatal("expected Verify1 to reject an explicit empty protected map in strict mode")
	}
}

func TestVerify1_ZeroLengthProtectedBucketNeverWarns(t *testing.T) {
	key := generateECDSAKeyForTest(t)
	signer := &ecdsaSigner{alg: AlgES256, key: key}
	verifier := &ecdsaVerifier{alg: AlgES256, pub: &key.PublicKey}

	out, err := Sign1([]byte("hello"), nil, signer, Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	msg, err := Verify1(out, []Verifier{verifier}, nil, Options{})
	if err != nil {
		t.Fatalf("Verify1: %v", err)
	}
	if len(msg.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none for the canonical zero-length encoding", msg.Warnings)
	}
}
