// Package coseadapter provides concrete crypto-adapter implementations
// of the core engine's narrow Signer/Verifier contract (SPEC_FULL.md
// §4.3/§4.4). The core never imports this package; callers wire one or
// more of these into a cose.Sign1/SignMulti/Verify1/VerifyMulti call.
package coseadapter

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/qcose/qcose/pkg/cose"
)

// ErrUnsupportedKeyType is returned when a key's concrete type does not
// match the requested algorithm.
var ErrUnsupportedKeyType = errors.New("coseadapter: unsupported key type for algorithm")

// StandardSigner wraps a crypto.Signer to implement cose.Signer for the
// classical algorithms named in SPEC_FULL.md §6: ES256/384/512, EdDSA,
// PS256/384/512. Grounded on the reference repository's
// pkg/cose/signer.go ECDSA DER<->raw conversion and RSA-PSS options,
// adapted to the core's narrow sign callback instead of go-cose.
type StandardSigner struct {
	alg    cose.AlgorithmID
	key    crypto.Signer
	kid    []byte
}

// NewStandardSigner builds a signer for alg using key. kid may be nil.
func NewStandardSigner(alg cose.AlgorithmID, key crypto.Signer, kid []byte) (*StandardSigner, error) {
	if err := checkKeyMatchesAlg(alg, key.Public()); err != nil {
		return nil, err
	}
	return &StandardSigner{alg: alg, key: key, kid: kid}, nil
}

func (s *StandardSigner) Algorithm() cose.AlgorithmID { return s.alg }

func (s *StandardSigner) HeaderCallback() *cose.ParameterList {
	p := cose.NewParameterList()
	p.MustAdd(cose.IntLabel(cose.LabelAlg), int64(s.alg), cose.Protected)
	if len(s.kid) > 0 {
		p.MustAdd(cose.IntLabel(cose.LabelKID), s.kid, cose.Unprotected)
	}
	return p
}

func (s *StandardSigner) SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error) {
	context := "Signature1"
	if signProtected != nil {
		context = "Signature"
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return nil, err
	}
	return StandardAdapter{}.Sign(s.alg, s.key, tbsOrHash(s.alg, tbs))
}

// StandardVerifier wraps a crypto.PublicKey to implement cose.Verifier
// for the same algorithm set as StandardSigner.
type StandardVerifier struct {
	alg cose.AlgorithmID
	pub crypto.PublicKey
	kid []byte
}

// NewStandardVerifier builds a verifier for alg using pub. kid, if
// non-nil, restricts Accepts to signatures carrying exactly that kid.
func NewStandardVerifier(alg cose.AlgorithmID, pub crypto.PublicKey, kid []byte) (*StandardVerifier, error) {
	if err := checkKeyMatchesAlg(alg, pub); err != nil {
		return nil, err
	}
	return &StandardVerifier{alg: alg, pub: pub, kid: kid}, nil
}

func (v *StandardVerifier) Accepts(alg cose.AlgorithmID, kid []byte) bool {
	if alg != v.alg {
		return false
	}
	if len(v.kid) == 0 {
		return true
	}
	return string(kid) == string(v.kid)
}

// MatchesAlgorithm reports whether this verifier was built for alg,
// regardless of its own configured kid — see cose.AlgorithmMatcher.
func (v *StandardVerifier) MatchesAlgorithm(alg cose.AlgorithmID) bool {
	return alg == v.alg
}

func (v *StandardVerifier) Verify1(bodyProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature1", bodyProtected, nil, aad, payload, signature, decodeOnly)
}

func (v *StandardVerifier) VerifySignature(bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature", bodyProtected, signProtected, aad, payload, signature, decodeOnly)
}

func (v *StandardVerifier) verify(context string, bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	if decodeOnly {
		return nil
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return err
	}
	return StandardAdapter{}.Verify(v.alg, v.pub, v.kid, tbsOrHash(v.alg, tbs), signature)
}

// tbsOrHash returns tbs unchanged for a hash-less algorithm, or its
// digest otherwise — the form CryptoAdapter.Sign/Verify expect.
func tbsOrHash(alg cose.AlgorithmID, tbs []byte) []byte {
	if cose.IsHashLess(alg) {
		return tbs
	}
	return cose.DigestTBS(alg, tbs)
}

// StandardAdapter is the C3 CryptoAdapter (SPEC_FULL.md §4.3)
// implementation for the classical algorithms: ES256/384/512, EdDSA,
// PS256/384/512. StandardSigner and StandardVerifier delegate their
// actual cryptographic calls to it, so C4 is a thin wrapper over C3 as
// §4.3/§4.4 describe rather than a parallel duplicate of it. key is a
// crypto.Signer for Sign, a crypto.PublicKey (or a crypto.Signer, for
// SigSize) for Verify/SigSize.
type StandardAdapter struct{}

var _ cose.CryptoAdapter = StandardAdapter{}

func (StandardAdapter) Sign(alg cose.AlgorithmID, key any, tbsOrHash []byte) ([]byte, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKeyType
	}
	if err := checkKeyMatchesAlg(alg, signer.Public()); err != nil {
		return nil, err
	}

	if cose.IsHashLess(alg) {
		sig, err := signer.Sign(rand.Reader, tbsOrHash, crypto.Hash(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cose.ErrHashGeneralFail, err)
		}
		return sig, nil
	}

	switch alg {
	case cose.AlgES256, cose.AlgES384, cose.AlgES512:
		derSig, err := signer.Sign(rand.Reader, tbsOrHash, hashForAlg(alg))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cose.ErrHashGeneralFail, err)
		}
		pub, ok := signer.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, ErrUnsupportedKeyType
		}
		return ecdsaDERToRaw(derSig, pub.Curve)
	case cose.AlgPS256, cose.AlgPS384, cose.AlgPS512:
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hashForAlg(alg)}
		sig, err := signer.Sign(rand.Reader, tbsOrHash, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cose.ErrHashGeneralFail, err)
		}
		return sig, nil
	default:
		return nil, cose.ErrUnsupportedSigningAlg
	}
}

func (StandardAdapter) Verify(alg cose.AlgorithmID, key any, kid []byte, tbsOrHash []byte, sig []byte) error {
	pub := publicKeyOf(key)
	if err := checkKeyMatchesAlg(alg, pub); err != nil {
		return err
	}

	if cose.IsHashLess(alg) {
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return ErrUnsupportedKeyType
		}
		if !ed25519.Verify(edPub, tbsOrHash, sig) {
			return cose.ErrSigVerifyFail
		}
		return nil
	}

	switch alg {
	case cose.AlgES256, cose.AlgES384, cose.AlgES512:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return ErrUnsupportedKeyType
		}
		r, s, err := ecdsaRawToRS(sig, ecPub.Curve)
		if err != nil {
			return err
		}
		if !ecdsa.Verify(ecPub, tbsOrHash, r, s) {
			return cose.ErrSigVerifyFail
		}
		return nil
	case cose.AlgPS256, cose.AlgPS384, cose.AlgPS512:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return ErrUnsupportedKeyType
		}
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hashForAlg(alg)}
		if err := rsa.VerifyPSS(rsaPub, hashForAlg(alg), tbsOrHash, sig, opts); err != nil {
			return cose.ErrSigVerifyFail
		}
		return nil
	default:
		return cose.ErrUnsupportedSigningAlg
	}
}

// SigSize returns the fixed-width signature length alg/key would
// produce, without signing — used by the Sign Engine's two-pass
// size-only mode (Sign1Size/SignMultiSize, §4.5 "Two-pass emission").
func (StandardAdapter) SigSize(alg cose.AlgorithmID, key any) (int, error) {
	pub := publicKeyOf(key)
	switch alg {
	case cose.AlgES256, cose.AlgES384, cose.AlgES512:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return 0, ErrUnsupportedKeyType
		}
		size := (ecPub.Curve.Params().BitSize + 7) / 8
		return 2 * size, nil
	case cose.AlgEdDSA:
		if _, ok := pub.(ed25519.PublicKey); !ok {
			return 0, ErrUnsupportedKeyType
		}
		return ed25519.SignatureSize, nil
	case cose.AlgPS256, cose.AlgPS384, cose.AlgPS512:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return 0, ErrUnsupportedKeyType
		}
		return rsaPub.Size(), nil
	default:
		return 0, cose.ErrUnsupportedSigningAlg
	}
}

// publicKeyOf extracts a crypto.PublicKey from key, which may already
// be one or may be the crypto.Signer that produces it.
func publicKeyOf(key any) crypto.PublicKey {
	if signer, ok := key.(crypto.Signer); ok {
		return signer.Public()
	}
	return key
}

func hashForAlg(alg cose.AlgorithmID) crypto.Hash {
	switch alg {
	case cose.AlgES256, cose.AlgPS256:
		return crypto.SHA256
	case cose.AlgES384, cose.AlgPS384:
		return crypto.SHA384
	case cose.AlgES512, cose.AlgPS512:
		return crypto.SHA512
	default:
		return 0
	}
}

func checkKeyMatchesAlg(alg cose.AlgorithmID, pub crypto.PublicKey) error {
	switch alg {
	case cose.AlgES256, cose.AlgES384, cose.AlgES512:
		if _, ok := pub.(*ecdsa.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgEdDSA:
		if _, ok := pub.(ed25519.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgPS256, cose.AlgPS384, cose.AlgPS512:
		if _, ok := pub.(*rsa.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	default:
		return cose.ErrUnsupportedSigningAlg
	}
	return nil
}

// ecdsaDERToRaw converts an ASN.1 DER ECDSA signature to the fixed-width
// R||S encoding RFC 9053 §2.1 requires for COSE.
func ecdsaDERToRaw(der []byte, curve elliptic.Curve) ([]byte, error) {
	var sig struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("%w: %v", cose.ErrHashGeneralFail, err)
	}
	size := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*size)
	sig.R.FillBytes(out[:size])
	sig.S.FillBytes(out[size:])
	return out, nil
}

// ecdsaRawToRS splits a fixed-width R||S COSE signature back into the
// two big.Int components ecdsa.Verify needs.
func ecdsaRawToRS(raw []byte, curve elliptic.Curve) (*big.Int, *big.Int, error) {
	size := (curve.Params().BitSize + 7) / 8
	if len(raw) != 2*size {
		return nil, nil, cose.ErrSigVerifyFail
	}
	r := new(big.Int).SetBytes(raw[:size])
	s := new(big.Int).SetBytes(raw[size:])
	return r, s, nil
}
