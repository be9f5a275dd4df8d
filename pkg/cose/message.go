package cose

// CBOR tags for the two message types this core produces/consumes (§6).
const (
	CBORTagSign1 uint64 = 18
	CBORTagSign  uint64 = 98
)

// Sign1Message is the in-memory form of a COSE_Sign1 structure (§3).
// Headers holds both buckets; Headers.Bucket(Protected) and
// Headers.Bucket(Unprotected) recover the split.
type Sign1Message struct {
	Headers *ParameterList
	// Payload holds the message payload. For a detached payload
	// (serialized as CBOR nil) it holds the bytes supplied to Verify1,
	// and Detached is true.
	Payload   []byte
	Detached  bool
	Signature []byte

	// Warnings lists non-fatal decode-path deviations found while
	// parsing the message, e.g. a protected bucket encoded as an
	// explicit empty map rather than a zero-length byte string.
	Warnings []string
}

// Signature is one element of a COSE_Sign message's signatures array.
type Signature struct {
	Headers   *ParameterList
	Signature []byte
}

// SignMessage is the in-memory form of a COSE_Sign structure (§3).
type SignMessage struct {
	Headers    *ParameterList
	Payload    []byte
	Detached   bool
	Signatures []Signature

	// Warnings lists non-fatal decode-path deviations found while
	// parsing the message; see Sign1Message.Warnings.
	Warnings []string
}
