package coseadapter

import "github.com/qcose/qcose/pkg/cose"

// LoadSignerFile loads a private key from path, classical (PEM
// PKCS8/SEC1/PKCS1) or post-quantum (circl's own PEM block types),
// and builds the matching cose.Signer. algName selects among an RSA
// key's several PS* algorithms; it is ignored for PQC and EC/Ed25519
// keys, whose algorithm the key material determines uniquely.
func LoadSignerFile(path, algName string, kid []byte) (cose.Signer, cose.AlgorithmID, error) {
	if priv, alg, err := LoadPQCPrivateKeyFile(path); err == nil {
		signer, err := NewPQCSigner(alg, priv, kid)
		if err != nil {
			return nil, 0, err
		}
		return signer, alg, nil
	}

	key, err := LoadPrivateKeyFile(path)
	if err != nil {
		return nil, 0, err
	}
	alg, err := resolveKeyAlgorithm(algName, key.Public())
	if err != nil {
		return nil, 0, err
	}
	signer, err := NewStandardSigner(alg, key, kid)
	if err != nil {
		return nil, 0, err
	}
	return signer, alg, nil
}

// LoadVerifierFile loads a public key from path, classical or
// post-quantum, and builds the matching cose.Verifier.
func LoadVerifierFile(path, algName string, kid []byte) (cose.Verifier, cose.AlgorithmID, error) {
	if pub, alg, err := LoadPQCPublicKeyFile(path); err == nil {
		verifier, err := NewPQCVerifier(alg, pub, kid)
		if err != nil {
			return nil, 0, err
		}
		return verifier, alg, nil
	}

	pub, err := LoadPublicKeyFile(path)
	if err != nil {
		return nil, 0, err
	}
	alg, err := resolveKeyAlgorithm(algName, pub)
	if err != nil {
		return nil, 0, err
	}
	verifier, err := NewStandardVerifier(alg, pub, kid)
	if err != nil {
		return nil, 0, err
	}
	return verifier, alg, nil
}

func resolveKeyAlgorithm(algName string, pub any) (cose.AlgorithmID, error) {
	if algName != "" {
		return ParseAlgorithmName(algName)
	}
	return AlgorithmForKey(pub)
}
