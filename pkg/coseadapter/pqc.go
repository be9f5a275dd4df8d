package coseadapter

import (
	"crypto"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/cloudflare/circl/sign/slhdsa"

	"github.com/qcose/qcose/pkg/cose"
)

// PQCSigner implements cose.Signer for the post-quantum extension
// algorithms (SPEC_FULL.md §3/§4.3): ML-DSA-44/65/87 and the SLH-DSA
// family, via cloudflare/circl. Grounded on the reference repository's
// internal/crypto/software.go Sign/VerifyWithOpts switch over these
// same circl key types, adapted to the core's hashless SignCallback
// path (IsHashLess reports true for every algorithm this signer
// handles, so the TBS bytes — not a digest — are what gets signed).
type PQCSigner struct {
	alg cose.AlgorithmID
	priv any
	kid  []byte
}

// NewPQCSigner builds a signer for alg using priv, one of
// *mldsa44.PrivateKey, *mldsa65.PrivateKey, *mldsa87.PrivateKey, or
// *slhdsa.PrivateKey.
func NewPQCSigner(alg cose.AlgorithmID, priv any, kid []byte) (*PQCSigner, error) {
	if err := checkPQCKeyMatchesAlg(alg, priv); err != nil {
		return nil, err
	}
	return &PQCSigner{alg: alg, priv: priv, kid: kid}, nil
}

func (s *PQCSigner) Algorithm() cose.AlgorithmID { return s.alg }

func (s *PQCSigner) HeaderCallback() *cose.ParameterList {
	p := cose.NewParameterList()
	p.MustAdd(cose.IntLabel(cose.LabelAlg), int64(s.alg), cose.Protected)
	if len(s.kid) > 0 {
		p.MustAdd(cose.IntLabel(cose.LabelKID), s.kid, cose.Unprotected)
	}
	return p
}

func (s *PQCSigner) SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error) {
	context := "Signature1"
	if signProtected != nil {
		context = "Signature"
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return nil, err
	}

	switch priv := s.priv.(type) {
	case *mldsa44.PrivateKey:
		return priv.Sign(rand.Reader, tbs, crypto.Hash(0))
	case *mldsa65.PrivateKey:
		return priv.Sign(rand.Reader, tbs, crypto.Hash(0))
	case *mldsa87.PrivateKey:
		return priv.Sign(rand.Reader, tbs, crypto.Hash(0))
	case *slhdsa.PrivateKey:
		return priv.Sign(rand.Reader, tbs, nil)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, s.priv)
	}
}

// PQCVerifier implements cose.Verifier for the same algorithm set as
// PQCSigner.
type PQCVerifier struct {
	alg cose.AlgorithmID
	pub any
	kid []byte
}

// NewPQCVerifier builds a verifier for alg using pub, the matching
// public-key type for one of NewPQCSigner's accepted private keys.
func NewPQCVerifier(alg cose.AlgorithmID, pub any, kid []byte) (*PQCVerifier, error) {
	if err := checkPQCPubKeyMatchesAlg(alg, pub); err != nil {
		return nil, err
	}
	return &PQCVerifier{alg: alg, pub: pub, kid: kid}, nil
}

func (v *PQCVerifier) Accepts(alg cose.AlgorithmID, kid []byte) bool {
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
func (v *PQCVerifier) MatchesAlgorithm(alg cose.AlgorithmID) bool {
	return alg == v.alg
}

func (v *PQCVerifier) Verify1(bodyProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature1", bodyProtected, nil, aad, payload, signature, decodeOnly)
}

func (v *PQCVerifier) VerifySignature(bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	return v.verify("Signature", bodyProtected, signProtected, aad, payload, signature, decodeOnly)
}

func (v *PQCVerifier) verify(context string, bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error {
	if decodeOnly {
		return nil
	}
	tbs, err := cose.BuildTBS(context, bodyProtected, signProtected, aad, payload)
	if err != nil {
		return err
	}

	var ok bool
	switch pub := v.pub.(type) {
	case *mldsa44.PublicKey:
		ok = mldsa44.Verify(pub, tbs, nil, signature)
	case *mldsa65.PublicKey:
		ok = mldsa65.Verify(pub, tbs, nil, signature)
	case *mldsa87.PublicKey:
		ok = mldsa87.Verify(pub, tbs, nil, signature)
	case *slhdsa.PublicKey:
		ok = slhdsa.Verify(pub, slhdsa.NewMessage(tbs), signature, nil)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedKeyType, v.pub)
	}
	if !ok {
		return cose.ErrSigVerifyFail
	}
	return nil
}

func checkPQCKeyMatchesAlg(alg cose.AlgorithmID, priv any) error {
	switch alg {
	case cose.AlgMLDSA44:
		if _, ok := priv.(*mldsa44.PrivateKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgMLDSA65:
		if _, ok := priv.(*mldsa65.PrivateKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgMLDSA87:
		if _, ok := priv.(*mldsa87.PrivateKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgSLHDSASHA2128s, cose.AlgSLHDSASHA2128f, cose.AlgSLHDSASHA2192s, cose.AlgSLHDSASHA2192f,
		cose.AlgSLHDSASHAKE128s, cose.AlgSLHDSASHAKE128f, cose.AlgSLHDSASHAKE192s, cose.AlgSLHDSASHAKE192f:
		if _, ok := priv.(*slhdsa.PrivateKey); !ok {
			return ErrUnsupportedKeyType
		}
	default:
		return cose.ErrUnsupportedSigningAlg
	}
	return nil
}

func checkPQCPubKeyMatchesAlg(alg cose.AlgorithmID, pub any) error {
	switch alg {
	case cose.AlgMLDSA44:
		if _, ok := pub.(*mldsa44.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgMLDSA65:
		if _, ok := pub.(*mldsa65.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgMLDSA87:
		if _, ok := pub.(*mldsa87.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	case cose.AlgSLHDSASHA2128s, cose.AlgSLHDSASHA2128f, cose.AlgSLHDSASHA2192s, cose.AlgSLHDSASHA2192f,
		cose.AlgSLHDSASHAKE128s, cose.AlgSLHDSASHAKE128f, cose.AlgSLHDSASHAKE192s, cose.AlgSLHDSASHAKE192f:
		if _, ok := pub.(*slhdsa.PublicKey); !ok {
			return ErrUnsupportedKeyType
		}
	default:
		return cose.ErrUnsupportedSigningAlg
	}
	return nil
}

// slhdsaPEMTypes maps the PEM block type circl's key material uses to
// the SLH-DSA parameter set ID and the matching COSE algorithm,
// grounded on the reference repository's parseSLHDSAPEMType.
var slhdsaPEMTypes = map[string]struct {
	id  slhdsa.ID
	alg cose.AlgorithmID
}{
	"SLH-DSA-SHA2-128s PRIVATE KEY":  {slhdsa.SHA2_128s, cose.AlgSLHDSASHA2128s},
	"SLH-DSA-SHA2-128f PRIVATE KEY":  {slhdsa.SHA2_128f, cose.AlgSLHDSASHA2128f},
	"SLH-DSA-SHA2-192s PRIVATE KEY":  {slhdsa.SHA2_192s, cose.AlgSLHDSASHA2192s},
	"SLH-DSA-SHA2-192f PRIVATE KEY":  {slhdsa.SHA2_192f, cose.AlgSLHDSASHA2192f},
	"SLH-DSA-SHAKE-128s PRIVATE KEY": {slhdsa.SHAKE_128s, cose.AlgSLHDSASHAKE128s},
	"SLH-DSA-SHAKE-128f PRIVATE KEY": {slhdsa.SHAKE_128f, cose.AlgSLHDSASHAKE128f},
	"SLH-DSA-SHAKE-192s PRIVATE KEY": {slhdsa.SHAKE_192s, cose.AlgSLHDSASHAKE192s},
	"SLH-DSA-SHAKE-192f PRIVATE KEY": {slhdsa.SHAKE_192f, cose.AlgSLHDSASHAKE192f},
}

// LoadPQCPrivateKeyFile reads a PEM-encoded ML-DSA or SLH-DSA private
// key, identified by its PEM block type rather than the PKCS#8/SEC1
// wrapper classical keys use — circl marshals these key families with
// its own compact binary encoding, not ASN.1.
func LoadPQCPrivateKeyFile(path string) (any, cose.AlgorithmID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("coseadapter: read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, 0, fmt.Errorf("coseadapter: no PEM block found in %s", path)
	}

	switch block.Type {
	case "ML-DSA-44 PRIVATE KEY":
		var priv mldsa44.PrivateKey
		if err := priv.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-44 key: %w", err)
		}
		return &priv, cose.AlgMLDSA44, nil
	case "ML-DSA-65 PRIVATE KEY":
		var priv mldsa65.PrivateKey
		if err := priv.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-65 key: %w", err)
		}
		return &priv, cose.AlgMLDSA65, nil
	case "ML-DSA-87 PRIVATE KEY":
		var priv mldsa87.PrivateKey
		if err := priv.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-87 key: %w", err)
		}
		return &priv, cose.AlgMLDSA87, nil
	default:
		if info, ok := slhdsaPEMTypes[block.Type]; ok {
			priv := slhdsa.PrivateKey{ID: info.id}
			if err := priv.UnmarshalBinary(block.Bytes); err != nil {
				return nil, 0, fmt.Errorf("coseadapter: parse %s key: %w", block.Type, err)
			}
			return &priv, info.alg, nil
		}
		return nil, 0, fmt.Errorf("coseadapter: unsupported PQC PEM block type %q in %s", block.Type, path)
	}
}

// LoadPQCPublicKeyFile reads a PEM-encoded ML-DSA or SLH-DSA public
// key and returns it together with its algorithm. Like
// LoadPQCPrivateKeyFile, these keys use circl's own PEM block types
// ("ML-DSA-44 PUBLIC KEY", "SLH-DSA-SHA2-128s PUBLIC KEY", ...)
// rather than a standard SubjectPublicKeyInfo/x509 wrapper.
func LoadPQCPublicKeyFile(path string) (any, cose.AlgorithmID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("coseadapter: read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, 0, fmt.Errorf("coseadapter: no PEM block found in %s", path)
	}

	switch block.Type {
	case "ML-DSA-44 PUBLIC KEY":
		var pub mldsa44.PublicKey
		if err := pub.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-44 public key: %w", err)
		}
		return &pub, cose.AlgMLDSA44, nil
	case "ML-DSA-65 PUBLIC KEY":
		var pub mldsa65.PublicKey
		if err := pub.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-65 public key: %w", err)
		}
		return &pub, cose.AlgMLDSA65, nil
	case "ML-DSA-87 PUBLIC KEY":
		var pub mldsa87.PublicKey
		if err := pub.UnmarshalBinary(block.Bytes); err != nil {
			return nil, 0, fmt.Errorf("coseadapter: parse ML-DSA-87 public key: %w", err)
		}
		return &pub, cose.AlgMLDSA87, nil
	default:
		if !strings.HasSuffix(block.Type, " PUBLIC KEY") {
			return nil, 0, fmt.Errorf("coseadapter: unsupported PQC PEM block type %q in %s", block.Type, path)
		}
		pemType := strings.TrimSuffix(block.Type, " PUBLIC KEY") + " PRIVATE KEY"
		if info, ok := slhdsaPEMTypes[pemType]; ok {
			pub := slhdsa.PublicKey{ID: info.id}
			if err := pub.UnmarshalBinary(block.Bytes); err != nil {
				return nil, 0, fmt.Errorf("coseadapter: parse %s: %w", block.Type, err)
			}
			return &pub, info.alg, nil
		}
		return nil, 0, fmt.Errorf("coseadapter: unsupported PQC PEM block type %q in %s", block.Type, path)
	}
}
