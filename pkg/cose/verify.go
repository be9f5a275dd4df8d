package cose

import (
	"github.com/fxamacker/cbor/v2"
)

// Verify1 runs the COSE_Verify1 pipeline (§4.6 "Pipeline for
// COSE_Sign1"). detachedPayload, if non-nil, supplies the payload when
// the message's own payload slot was nil.
func Verify1(data []byte, verifiers []Verifier, detachedPayload []byte, opts Options) (*Sign1Message, error) {
	arr, tagged, err := decodeTaggedArray(data, CBORTagSign1)
	if err != nil {
		return nil, wrapErr("Verify1", err)
	}
	if err := checkTagPolicy(tagged, opts.TagPolicy); err != nil {
		return nil, wrapErr("Verify1", err)
	}
	if len(arr) != 4 {
		return nil, wrapErr("Verify1", ErrSign1Format)
	}

	bodyProtectedBytes, ok := arr[0].([]byte)
	if !ok {
		return nil, wrapErr("Verify1", ErrSign1Format)
	}
	unprotectedRaw, err := cbor.Marshal(arr[1])
	if err != nil {
		return nil, wrapErr("Verify1", ErrSign1Format)
	}

	headers := NewParameterList()
	protectedEmptyMap, err := decodeHeaderMap(bodyProtectedBytes, Protected, headers, opts.StrictMode)
	if err != nil {
		return nil, wrapErr("Verify1", err)
	}
	if _, err := decodeHeaderMap(unprotectedRaw, Unprotected, headers, opts.StrictMode); err != nil {
		return nil, wrapErr("Verify1", err)
	}
	if err := headers.CheckCriticality(opts.CriticalLabelReader); err != nil {
		return nil, wrapErr("Verify1", err)
	}

	payload, detached, err := decodePayloadSlot(arr[2], detachedPayload)
	if err != nil {
		return nil, wrapErr("Verify1", err)
	}

	sig, ok := arr[3].([]byte)
	if !ok {
		return nil, wrapErr("Verify1", ErrSign1Format)
	}

	alg, ok := headers.Alg()
	if !ok {
		return nil, wrapErr("Verify1", ErrUnsupportedSigningAlg)
	}
	kidParam, _ := headers.Get(IntLabel(LabelKID))
	kid, _ := kidParam.Value.([]byte)

	verifier, err := selectVerifier(verifiers, alg, kid, opts)
	if err != nil {
		return nil, wrapErr("Verify1", err)
	}

	if err := verifier.Verify1(bodyProtectedBytes, opts.ExternalAAD, payload, sig, opts.DecodeOnly); err != nil {
		return nil, wrapErr("Verify1", err)
	}

	msg := &Sign1Message{
		Headers:   headers,
		Payload:   payload,
		Detached:  detached,
		Signature: sig,
	}
	if protectedEmptyMap {
		msg.Warnings = append(msg.Warnings, "protected header encoded as an explicit empty map rather than a zero-length byte string")
	}
	return msg, nil
}

// VerifyMulti runs the COSE_Verify pipeline (§4.6 "Pipeline for
// COSE_Sign").
func VerifyMulti(data []byte, verifiers []Verifier, detachedPayload []byte, opts Options) (*SignMessage, error) {
	arr, tagged, err := decodeTaggedArray(data, CBORTagSign)
	if err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}
	if err := checkTagPolicy(tagged, opts.TagPolicy); err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}
	if len(arr) != 4 {
		return nil, wrapErr("VerifyMulti", ErrSignFormat)
	}

	bodyProtectedBytes, ok := arr[0].([]byte)
	if !ok {
		return nil, wrapErr("VerifyMulti", ErrSignFormat)
	}
	unprotectedRaw, err := cbor.Marshal(arr[1])
	if err != nil {
		return nil, wrapErr("VerifyMulti", ErrSignFormat)
	}

	headers := NewParameterList()
	protectedEmptyMap, err := decodeHeaderMap(bodyProtectedBytes, Protected, headers, opts.StrictMode)
	if err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}
	if _, err := decodeHeaderMap(unprotectedRaw, Unprotected, headers, opts.StrictMode); err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}
	if err := headers.CheckCriticality(opts.CriticalLabelReader); err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}

	payload, detached, err := decodePayloadSlot(arr[2], detachedPayload)
	if err != nil {
		return nil, wrapErr("VerifyMulti", err)
	}

	sigArr, ok := arr[3].([]any)
	if !ok {
		return nil, wrapErr("VerifyMulti", ErrSignFormat)
	}
	if len(sigArr) == 0 {
		return nil, wrapErr("VerifyMulti", ErrNoSignatures)
	}

	result := &SignMessage{
		Headers:  headers,
		Payload:  payload,
		Detached: detached,
	}
	if protectedEmptyMap {
		result.Warnings = append(result.Warnings, "body protected header encoded as an explicit empty map rather than a zero-length byte string")
	}

	validCount := 0
	var lastErr error
	for _, elem := range sigArr {
		sigElem, ok := elem.([]any)
		if !ok || len(sigElem) != 3 {
			return nil, wrapErr("VerifyMulti", ErrSignFormat)
		}
		signProtectedBytes, ok := sigElem[0].([]byte)
		if !ok {
			return nil, wrapErr("VerifyMulti", ErrSignFormat)
		}
		signUnprotectedRaw, err := cbor.Marshal(sigElem[1])
		if err != nil {
			return nil, wrapErr("VerifyMulti", ErrSignFormat)
		}
		sigHeaders := NewParameterList()
		sigEmptyMap, err := decodeHeaderMap(signProtectedBytes, Protected, sigHeaders, opts.StrictMode)
		if err != nil {
			return nil, wrapErr("VerifyMulti", err)
		}
		if _, err := decodeHeaderMap(signUnprotectedRaw, Unprotected, sigHeaders, opts.StrictMode); err != nil {
			return nil, wrapErr("VerifyMulti", err)
		}
		if sigEmptyMap {
			result.Warnings = append(result.Warnings, "signature protected header encoded as an explicit empty map rather than a zero-length byte string")
		}
		sig, ok := sigElem[2].([]byte)
		if !ok {
			return nil, wrapErr("VerifyMulti", ErrSignFormat)
		}

		alg, ok := sigHeaders.Alg()
		if !ok {
			alg, ok = headers.Alg()
		}
		if !ok {
			lastErr = ErrUnsupportedSigningAlg
			continue
		}
		kidParam, _ := sigHeaders.Get(IntLabel(LabelKID))
		kid, _ := kidParam.Value.([]byte)

		verifier, err := selectVerifier(verifiers, alg, kid, opts)
		if err != nil {
			lastErr = err
			continue
		}

		verifyErr := verifier.VerifySignature(bodyProtectedBytes, signProtectedBytes, opts.ExternalAAD, payload, sig, opts.DecodeOnly)
		result.Signatures = append(result.Signatures, Signature{
			Headers:   sigHeaders,
			Signature: sig,
		})
		if verifyErr != nil {
			lastErr = verifyErr
			if opts.RequireAllSignaturesValid {
				return nil, wrapErr("VerifyMulti", verifyErr)
			}
			continue
		}
		validCount++
	}

	if opts.RequireAllSignaturesValid {
		if validCount == len(sigArr) {
			return result, nil
		}
		return nil, wrapErr("VerifyMulti", lastErr)
	}
	if validCount == 0 {
		if lastErr == nil {
			lastErr = ErrSigVerifyFail
		}
		return nil, wrapErr("VerifyMulti", lastErr)
	}
	return result, nil
}

// selectVerifier picks the first verifier that accepts (alg, kid). If
// none do but kid is present, it distinguishes two failure shapes: a
// verifier recognized alg but rejected this kid (ErrKIDUnmatched,
// §4.7) versus no verifier recognized alg at all (ErrNoVerifierForAlg).
// Before giving up it also tries opts.KeyIDResolvers against
// opts.Adapter, letting a resolved key stand in for a pre-built
// Verifier.
func selectVerifier(verifiers []Verifier, alg AlgorithmID, kid []byte, opts Options) (Verifier, error) {
	kidRejected := false
	for _, v := range verifiers {
		if v.Accepts(alg, kid) {
			return v, nil
		}
		if len(kid) > 0 {
			if m, ok := v.(AlgorithmMatcher); ok && m.MatchesAlgorithm(alg) {
				kidRejected = true
			}
		}
	}
	if rv, ok := resolveKeyID(opts.KeyIDResolvers, opts.Adapter, alg, kid); ok {
		return rv, nil
	}
	if kidRejected {
		return nil, ErrKIDUnmatched
	}
	return nil, ErrNoVerifierForAlg
}

// decodeTaggedArray peeks the outer CBOR item: if it's tagged with
// wantTag, unwraps it; otherwise treats the item itself as the array.
// It reports whether a tag was present.
func decodeTaggedArray(data []byte, wantTag uint64) ([]any, bool, error) {
	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err == nil && tag.Number != 0 {
		if tag.Number != wantTag {
			return nil, true, ErrSign1Format
		}
		arr, ok := tag.Content.([]any)
		if !ok {
			return nil, true, ErrSign1Format
		}
		return arr, true, nil
	}
	var arr []any
	if err := cbor.Unmarshal(data, &arr); err != nil {
		return nil, false, ErrCBORDecode
	}
	return arr, false, nil
}

func checkTagPolicy(tagged bool, policy TagPolicy) error {
	switch policy {
	case TagRequired:
		if !tagged {
			return ErrTagRequired
		}
	case TagProhibited:
		if tagged {
			return ErrTagProhibited
		}
	}
	return nil
}

func decodePayloadSlot(slot any, detachedPayload []byte) (payload []byte, detached bool, err error) {
	if slot == nil {
		if detachedPayload == nil {
			return nil, true, ErrMissingPayload
		}
		return detachedPayload, true, nil
	}
	b, ok := slot.([]byte)
	if !ok {
		return nil, false, ErrSign1Format
	}
	return b, false, nil
}
