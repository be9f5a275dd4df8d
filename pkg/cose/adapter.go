package cose

// CryptoAdapter is the narrow façade the core needs from the
// underlying cryptographic primitives (§4.3). Package coseadapter's
// StandardAdapter is the production implementation; Signer/Verifier
// pairs such as StandardSigner/StandardVerifier delegate their actual
// crypto calls to it rather than duplicating the algorithm switch, so
// C4 is a thin wrapper over C3 as this section describes. The core
// never constructs a CryptoAdapter; it calls one the caller supplies
// only in Options.Adapter's kid-resolver fallback (§4.7) and the
// Sign1Size / SignMultiSize two-pass size calculation.
type CryptoAdapter interface {
	// Sign produces a signature over tbsOrHash (a digest for hash-based
	// algorithms, the raw TBS bytes for hash-less ones) using key.
	Sign(alg AlgorithmID, key any, tbsOrHash []byte) ([]byte, error)

	// Verify checks sig against tbsOrHash using key. kid is advisory —
	// adapters that select keys by kid rather than receiving one
	// directly may use it; most ignore it.
	Verify(alg AlgorithmID, key any, kid []byte, tbsOrHash []byte, sig []byte) error

	// SigSize returns the signature length alg/key would produce,
	// without signing — used during the Sign Engine's size-only pass.
	SigSize(alg AlgorithmID, key any) (int, error)
}

// Signer is the polymorphic signer contract of §4.4, translated from
// the reference implementation's vtable-in-struct-head idiom into a Go
// interface. A concrete Signer is immutable after construction and may
// be reused across sign calls and engines.
type Signer interface {
	// Algorithm returns the COSE algorithm ID this signer produces.
	Algorithm() AlgorithmID

	// HeaderCallback returns this signer's body-header contribution
	// (alg, and kid if set) for COSE_Sign1 merging (§4.1). Called once
	// per sign operation, before SignCallback.
	HeaderCallback() *ParameterList

	// SignCallback computes the signature over the message described
	// by bodyProtected/aad/payload and returns the raw signature bytes
	// to embed in the COSE structure. For COSE_Sign, the caller
	// additionally supplies this signer's own protected-header bytes
	// via signProtected (empty for COSE_Sign1).
	SignCallback(bodyProtected, signProtected, aad, payload []byte) ([]byte, error)
}

// Verifier is the polymorphic verifier contract of §4.4.
type Verifier interface {
	// Accepts reports whether this verifier is willing to handle alg
	// and the given kid (which may be nil). Dispatch (§4.4) tries
	// verifiers in chain order and uses the first one that accepts.
	Accepts(alg AlgorithmID, kid []byte) bool

	// Verify1 checks a COSE_Sign1 signature. decodeOnly, when true,
	// means headers/structure have already been validated and the
	// actual cryptographic check should be skipped (§4.6 step 9).
	Verify1(bodyProtected, aad, payload, signature []byte, decodeOnly bool) error

	// VerifySignature checks one COSE_Signature element of a COSE_Sign
	// message.
	VerifySignature(bodyProtected, signProtected, aad, payload, signature []byte, decodeOnly bool) error
}

// AlgorithmMatcher is an optional interface a Verifier may implement to
// report which algorithm it was built for, independent of whether a
// given kid matches. selectVerifier (§4.6) uses it to tell "no
// verifier handles this algorithm at all" (ErrNoVerifierForAlg) apart
// from "a verifier handles this algorithm but its configured kid
// didn't match" (ErrKIDUnmatched, §4.7) — a distinction Accepts alone,
// returning a single bool, cannot make.
type AlgorithmMatcher interface {
	MatchesAlgorithm(alg AlgorithmID) bool
}
