package dto

// COSESignRequest represents a COSE signing request.
type COSESignRequest struct {
	// Payload is the data to sign.
	Payload BinaryData `json:"payload"`

	// Detached creates a detached signature: the payload travels
	// out-of-band and the returned structure omits it.
	Detached bool `json:"detached,omitempty"`

	// Protected are caller-supplied protected header parameters, keyed
	// by IANA integer label as a string (e.g. "3" for content type).
	Protected map[string]interface{} `json:"protected,omitempty"`

	// Unprotected are caller-supplied unprotected header parameters.
	Unprotected map[string]interface{} `json:"unprotected,omitempty"`

	// KeyPath is the PEM-encoded private key file to sign with.
	KeyPath string `json:"key_path"`

	// KeyID is the optional kid to place in the unprotected bucket,
	// hex-encoded.
	KeyID string `json:"kid,omitempty"`

	// Algorithm is the COSE algorithm name to sign with (e.g. "ES256").
	// Required for keys that support more than one algorithm (RSA).
	Algorithm string `json:"algorithm,omitempty"`

	// MultiSign creates COSE_Sign (multiple signers) instead of
	// COSE_Sign1. When set, KeyPaths is used instead of KeyPath.
	MultiSign bool `json:"multi_sign,omitempty"`

	// KeyPaths lists signer keys for MultiSign, in chain order.
	KeyPaths []string `json:"key_paths,omitempty"`
}

// COSESignResponse represents the result of COSE signing.
type COSESignResponse struct {
	// Message is the COSE_Sign1 or COSE_Sign structure.
	Message BinaryData `json:"message"`

	// Algorithm is the signature algorithm used.
	Algorithm AlgorithmInfo `json:"algorithm"`

	// Type is "COSE_Sign1" or "COSE_Sign".
	Type string `json:"type"`
}

// COSEVerifyRequest represents a COSE verification request.
type COSEVerifyRequest struct {
	// Message is the COSE structure to verify.
	Message BinaryData `json:"message"`

	// Payload is the detached payload, required when Message carries a
	// nil payload slot.
	Payload *BinaryData `json:"payload,omitempty"`

	// KeyPaths list PEM-encoded public keys or certificates to verify
	// against. Each signature is checked against the first key whose
	// algorithm matches its "alg" header. The "kid" header is not
	// consulted, and no further key of the same algorithm is tried.
	KeyPaths []string `json:"key_paths"`

	// RequireAllSignatures switches a COSE_Sign verification from "at
	// least one signature validates" to "every signature must validate".
	RequireAllSignatures bool `json:"require_all_signatures,omitempty"`

	// StrictMode rejects a protected bucket encoded as an explicit empty
	// map instead of accepting it with a warning.
	StrictMode bool `json:"strict_mode,omitempty"`
}

// COSEVerifyResponse represents the result of COSE verification.
type COSEVerifyResponse struct {
	// Valid indicates if the signature is valid.
	Valid bool `json:"valid"`

	// Error describes why verification failed, if Valid is false.
	Error string `json:"error,omitempty"`

	// Payload is the verified payload.
	Payload *BinaryData `json:"payload,omitempty"`

	// Type is "COSE_Sign1" or "COSE_Sign".
	Type string `json:"type,omitempty"`

	// Signers contains per-signature details (one entry for COSE_Sign1).
	Signers []COSESignerInfo `json:"signers,omitempty"`

	// Warnings lists non-fatal decode-path deviations, e.g. a protected
	// bucket encoded as an explicit empty map.
	Warnings []string `json:"warnings,omitempty"`
}

// COSESignerInfo contains COSE signer information.
type COSESignerInfo struct {
	// Algorithm is the COSE algorithm ID.
	Algorithm int64 `json:"algorithm"`

	// AlgorithmName is the algorithm name.
	AlgorithmName string `json:"algorithm_name"`

	// KeyID is the hex-encoded key identifier, if present.
	KeyID string `json:"kid,omitempty"`
}

// COSEInfoRequest represents a COSE info request.
type COSEInfoRequest struct {
	// Data is the COSE structure to analyze.
	Data BinaryData `json:"data"`
}

// COSEInfoResponse represents COSE structure information.
type COSEInfoResponse struct {
	// Type is the COSE message type.
	Type string `json:"type"`

	// Protected are protected headers, keyed by label.
	Protected map[string]interface{} `json:"protected,omitempty"`

	// Unprotected are unprotected headers, keyed by label.
	Unprotected map[string]interface{} `json:"unprotected,omitempty"`

	// PayloadSize is the payload size in bytes.
	PayloadSize int `json:"payload_size,omitempty"`

	// HasPayload indicates if payload is embedded (false for detached).
	HasPayload bool `json:"has_payload"`

	// Signers lists signer information, one entry per COSE_Signature.
	Signers []COSESignerInfo `json:"signers,omitempty"`
}
