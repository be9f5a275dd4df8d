package cose

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// contextSign1 and contextSign are the first element of Sig_structure
// (§4.2).
const (
	contextSign1 = "Signature1"
	contextSign  = "Signature"
)

// BuildTBS serializes the Sig_structure (§4.2). signProtected is empty
// for COSE_Sign1 and the per-signer protected bytes for COSE_Sign.
func BuildTBS(context string, bodyProtected, signProtected, externalAAD, payload []byte) ([]byte, error) {
	if externalAAD == nil {
		externalAAD = []byte{}
	}
	var arr []any
	if context == contextSign && signProtected != nil {
		arr = []any{context, bodyProtected, signProtected, externalAAD, payload}
	} else {
		arr = []any{context, bodyProtected, externalAAD, payload}
	}
	out, err := ctapEncMode.Marshal(arr)
	if err != nil {
		return nil, wrapErr("BuildTBS", err)
	}
	return out, nil
}

// HashAlgFor returns the hash constructor for alg's TBS digest, and
// false if alg signs the TBS bytes directly (§4.2 hash-less path).
func HashAlgFor(alg AlgorithmID) (func() hash.Hash, bool) {
	switch alg {
	case AlgES256, AlgPS256:
		return sha256.New, true
	case AlgES384, AlgPS384:
		return sha512.New384, true
	case AlgES512, AlgPS512:
		return sha512.New, true
	case AlgShortCircuit:
		return sha256.New, true
	default:
		return nil, false
	}
}

// DigestTBS feeds tbs through alg's hash algorithm and returns the
// digest. For hash-less algorithms it returns tbs unchanged — callers
// (signers) are expected to check IsHashLess themselves, but this
// helper is convenient for adapters that don't want to branch.
func DigestTBS(alg AlgorithmID, tbs []byte) []byte {
	newHash, ok := HashAlgFor(alg)
	if !ok {
		return tbs
	}
	h := newHash()
	_, _ = h.Write(tbs)
	return h.Sum(nil)
}
