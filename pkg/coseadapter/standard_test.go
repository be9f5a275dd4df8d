package coseadapter

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/qcose/qcose/pkg/cose"
)

func generateECDSAKey(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("generate ECDSA key: %v", err)
	}
	return key
}

func TestStandardSigner_ES256RoundTrip(t *testing.T) {
	key := generateECDSAKey(t, elliptic.P256())
	signer, err := NewStandardSigner(cose.AlgES256, key, []byte("kid-1"))
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}
	verifier, err := NewStandardVerifier(cose.AlgES256, &key.PublicKey, []byte("kid-1"))
	if err != nil {
		t.Fatalf("NewStandardVerifier: %v", err)
	}

	payload := []byte("standard adapter round trip")
	out, err := cose.Sign1(payload, nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	msg, err := cose.Verify1(out, []cose.Verifier{verifier}, nil, cose.Options{})
	if err != nil {
		t.Fatalf("Verify1: %v", err)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestStandardSigner_WrongKeyTypeRejected(t *testing.T) {
	key := generateECDSAKey(t, elliptic.P256())
	if _, err := NewStandardSigner(cose.AlgEdDSA, key, nil); err != ErrUnsupportedKeyType {
		t.Fatalf("expected ErrUnsupportedKeyType, got %v", err)
	}
}

func TestStandardSigner_EdDSARoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate Ed25519 key: %v", err)
	}
	signer, err := NewStandardSigner(cose.AlgEdDSA, priv, nil)
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}
	verifier, err := NewStandardVerifier(cose.AlgEdDSA, pub, nil)
	if err != nil {
		t.Fatalf("NewStandardVerifier: %v", err)
	}

	out, err := cose.Sign1([]byte("eddsa via standard adapter"), nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	if _, err := cose.Verify1(out, []cose.Verifier{verifier}, nil, cose.Options{}); err != nil {
		t.Fatalf("Verify1: %v", err)
	}
}

func TestStandardSigner_PS256RequiresRSAKey(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	signer, err := NewStandardSigner(cose.AlgPS256, rsaKey, nil)
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}
	verifier, err := NewStandardVerifier(cose.AlgPS256, &rsaKey.PublicKey, nil)
	if err != nil {
		t.Fatalf("NewStandardVerifier: %v", err)
	}

	out, err := cose.Sign1([]byte("ps256 payload"), nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	if _, err := cose.Verify1(out, []cose.Verifier{verifier}, nil, cose.Options{}); err != nil {
		t.Fatalf("Verify1: %v", err)
	}
}

func TestStandardVerifier_KIDMismatchReturnsErrKIDUnmatched(t *testing.T) {
	keyA := generateECDSAKey(t, elliptic.P256())
	keyB := generateECDSAKey(t, elliptic.P256())
	signerA, _ := NewStandardSigner(cose.AlgES256, keyA, []byte("a"))
	verifierB, _ := NewStandardVerifier(cose.AlgES256, &keyB.PublicKey, []byte("b"))

	out, err := cose.Sign1([]byte("kid mismatch"), nil, signerA, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	if _, err := cose.Verify1(out, []cose.Verifier{verifierB}, nil, cose.Options{}); !errors.Is(err, cose.ErrKIDUnmatched) {
		t.Fatalf("expected ErrKIDUnmatched, got %v", err)
	}
}

// Testable property #5: size-mode equality. Sign1Size must predict the
// exact length a real Sign1 call over the same inputs produces (§4.5
// "Two-pass emission"), with StandardAdapter standing in for C3.
func TestSign1Size_MatchesActualSignedLength(t *testing.T) {
	key := generateECDSAKey(t, elliptic.P256())
	signer, err := NewStandardSigner(cose.AlgES256, key, []byte("kid-1"))
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}

	payload := []byte("size mode payload")
	predicted, err := cose.Sign1Size(payload, nil, signer, StandardAdapter{}, key, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1Size: %v", err)
	}
	actual, err := cose.Sign1(payload, nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	if predicted != len(actual) {
		t.Fatalf("Sign1Size predicted %d, actual output was %d bytes", predicted, len(actual))
	}
}

func TestSignMultiSize_MatchesActualSignedLength(t *testing.T) {
	keyA := generateECDSAKey(t, elliptic.P256())
	keyB := generateECDSAKey(t, elliptic.P256())
	signerA, err := NewStandardSigner(cose.AlgES256, keyA, []byte("a"))
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}
	signerB, err := NewStandardSigner(cose.AlgES256, keyB, []byte("b"))
	if err != nil {
		t.Fatalf("NewStandardSigner: %v", err)
	}

	payload := []byte("multi size mode payload")
	signers := []cose.Signer{signerA, signerB}
	predicted, err := cose.SignMultiSize(payload, nil, signers, StandardAdapter{}, []any{keyA, keyB}, cose.Options{})
	if err != nil {
		t.Fatalf("SignMultiSize: %v", err)
	}
	actual, err := cose.SignMulti(payload, nil, signers, cose.Options{})
	if err != nil {
		t.Fatalf("SignMulti: %v", err)
	}
	if predicted != len(actual) {
		t.Fatalf("SignMultiSize predicted %d, actual output was %d bytes", predicted, len(actual))
	}
}

func TestStandardAdapter_SigSizeByAlgorithm(t *testing.T) {
	ecKey := generateECDSAKey(t, elliptic.P256())
	if size, err := (StandardAdapter{}).SigSize(cose.AlgES256, ecKey); err != nil || size != 64 {
		t.Fatalf("SigSize(ES256) = %d, %v; want 64, nil", size, err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate Ed25519 key: %v", err)
	}
	if size, err := (StandardAdapter{}).SigSize(cose.AlgEdDSA, priv); err != nil || size != ed25519.SignatureSize {
		t.Fatalf("SigSize(EdDSA) = %d, %v; want %d, nil", size, err, ed25519.SignatureSize)
	}

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	if size, err := (StandardAdapter{}).SigSize(cose.AlgPS256, rsaKey); err != nil || size != 256 {
		t.Fatalf("SigSize(PS256) = %d, %v; want 256, nil", size, err)
	}
}

func TestStandardVerifier_TamperedSignatureFails(t *testing.T) {
	key := generateECDSAKey(t, elliptic.P256())
	signer, _ := NewStandardSigner(cose.AlgES256, key, nil)
	verifier, _ := NewStandardVerifier(cose.AlgES256, &key.PublicKey, nil)

	out, err := cose.Sign1([]byte("tamper me"), nil, signer, cose.Options{})
	if err != nil {
		t.Fatalf("Sign1: %v", err)
	}
	out[len(out)-1] ^= 0xFF

	if _, err := cose.Verify1(out, []cose.Verifier{verifier}, nil, cose.Options{}); err == nil {
		t.Fatal("expected tampered signature to fail verification")
	}
}
