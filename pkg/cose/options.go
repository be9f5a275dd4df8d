package cose

// Options is the caller-surface option-flag word (§6). The zero value
// is the default: tagged output, attached payload, non-canonical
// encoding, tag policy OPTIONAL, at-least-one-signature policy for
// COSE_Sign verification.
type Options struct {
	// OmitCBORTag suppresses the leading tag (18 or 98) on sign.
	OmitCBORTag bool

	// DetachedPayload signs/expects a detached payload: the in-message
	// payload slot is CBOR nil, and the real bytes travel out of band.
	DetachedPayload bool

	// TagPolicy controls what the Verify Engine accepts (§4.6 step 1).
	// Zero value is TagOptional.
	TagPolicy TagPolicy

	// DecodeOnly skips the cryptographic verification step once
	// structure/headers have been validated (§4.6 step 9).
	DecodeOnly bool

	// RequireAllSignaturesValid switches COSE_Sign verification policy
	// from "at least one validates" to "all must validate" (§4.6
	// "Policy").
	RequireAllSignaturesValid bool

	// CanonicalEncoding forces RFC 8949 §4.2 core deterministic
	// encoding rules (§9 open question, resolved).
	CanonicalEncoding bool

	// ExternalAAD is the caller-supplied additional authenticated data
	// (§4.2); empty/nil means no AAD.
	ExternalAAD []byte

	// KeyIDResolvers, in try-order, used to resolve kid during verify
	// dispatch when no configured Verifier accepts the message's
	// (alg, kid) pair. A resolver that returns a key is wrapped around
	// Adapter and handed the cryptographic check (§4.7). Ignored when
	// Adapter is nil.
	KeyIDResolvers []KeyIDResolver

	// Adapter backs the KeyIDResolvers fallback path: a key a resolver
	// returns is verified through Adapter.Verify rather than through a
	// pre-built Verifier. Typically coseadapter.StandardAdapter{}.
	Adapter CryptoAdapter

	// CriticalLabelReader is offered unknown critical labels before
	// the engine fails the message (§4.1 "Criticality").
	CriticalLabelReader KnownLabelReader

	// StrictMode rejects a protected bucket encoded as an explicit empty
	// map (0xa0 inside the bstr) instead of the canonical zero-length
	// byte string (§4.1 "Decoding"). When false (the default) such a
	// bucket decodes normally and is reported back via the message's
	// Warnings field.
	StrictMode bool
}

// TagPolicy controls tag acceptance on verify (§4.6 step 1). Exactly
// one of the three states is active at a time; the zero value is
// TagOptional.
type TagPolicy int

const (
	TagOptional TagPolicy = iota
	TagRequired
	TagProhibited
)
