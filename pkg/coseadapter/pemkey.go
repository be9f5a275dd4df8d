package coseadapter

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/qcose/qcose/pkg/cose"
)

// LoadPrivateKeyFile reads a PEM-encoded PKCS#8 or SEC1/PKCS#1 private
// key from path, grounded on the reference CLI's loadCertificate/
// loadSigningKey pattern of PEM-decode-then-parse.
func LoadPrivateKeyFile(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coseadapter: read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("coseadapter: no PEM block found in %s", path)
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coseadapter: parse PKCS8 key: %w", err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("coseadapter: key in %s is not a signer", path)
		}
		return signer, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coseadapter: parse EC key: %w", err)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coseadapter: parse RSA key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("coseadapter: unsupported PEM block type %q in %s", block.Type, path)
	}
}

// LoadPublicKeyFile reads a PEM-encoded public key or certificate from
// path and returns its public key.
func LoadPublicKeyFile(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coseadapter: read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("coseadapter: no PEM block found in %s", path)
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coseadapter: parse certificate: %w", err)
		}
		return cert.PublicKey, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("coseadapter: parse public key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("coseadapter: unsupported PEM block type %q in %s", block.Type, path)
	}
}

// AlgorithmForKey returns the single COSE algorithm that fits key's
// type when there is exactly one reasonable default: ES256/384/512 by
// curve for ECDSA, EdDSA for Ed25519. RSA keys support several PS*
// algorithms and must be given explicitly by the caller.
func AlgorithmForKey(pub crypto.PublicKey) (cose.AlgorithmID, error) {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return cose.AlgES256, nil
		case 384:
			return cose.AlgES384, nil
		case 521:
			return cose.AlgES512, nil
		default:
			return 0, fmt.Errorf("coseadapter: unsupported ECDSA curve bit size %d", k.Curve.Params().BitSize)
		}
	case ed25519.PublicKey:
		return cose.AlgEdDSA, nil
	case *rsa.PublicKey:
		return 0, fmt.Errorf("coseadapter: RSA keys require an explicit algorithm (PS256/PS384/PS512)")
	default:
		return 0, fmt.Errorf("coseadapter: unrecognized key type %T", pub)
	}
}

// ParseAlgorithmName maps an IANA COSE algorithm name to its identifier,
// covering the classical set named in SPEC_FULL.md §6.
func ParseAlgorithmName(name string) (cose.AlgorithmID, error) {
	switch name {
	case "ES256":
		return cose.AlgES256, nil
	case "ES384":
		return cose.AlgES384, nil
	case "ES512":
		return cose.AlgES512, nil
	case "EdDSA":
		return cose.AlgEdDSA, nil
	case "PS256":
		return cose.AlgPS256, nil
	case "PS384":
		return cose.AlgPS384, nil
	case "PS512":
		return cose.AlgPS512, nil
	default:
		return 0, fmt.Errorf("coseadapter: unknown algorithm name %q", name)
	}
}
