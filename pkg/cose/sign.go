package cose

import (
	"github.com/fxamacker/cbor/v2"
)

// Sign1 runs the COSE_Sign1 pipeline (§4.5 "Pipeline for COSE_Sign1").
// body carries the caller's own body-level header contributions (may be
// nil); signer's HeaderCallback output is merged into it per §4.1.
func Sign1(payload []byte, body *ParameterList, signer Signer, opts Options) ([]byte, error) {
	if signer == nil {
		return nil, wrapErr("Sign1", ErrUnsupportedSigningAlg)
	}
	if body == nil {
		body = NewParameterList()
	} else {
		body = body.Clone()
	}

	if err := body.Merge(signer.HeaderCallback()); err != nil {
		return nil, wrapErr("Sign1", err)
	}

	if _, ok := body.Alg(); !ok {
		return nil, wrapErr("Sign1", ErrUnsupportedSigningAlg)
	}
	if algParam, ok := body.Get(IntLabel(LabelAlg)); ok && algParam.Bucket != Protected {
		return nil, wrapErr("Sign1", ErrParameterType)
	}

	bodyProtectedBytes, err := encodeHeaderMap(body.Bucket(Protected), opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("Sign1", err)
	}
	bodyProtectedBytes = collapseEmptyMap(bodyProtectedBytes)

	unprotectedMap, err := encodeHeaderMapValue(body.Bucket(Unprotected), opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("Sign1", err)
	}

	var payloadSlot any = payload
	if opts.DetachedPayload {
		payloadSlot = nil
	}

	aad := opts.ExternalAAD

	sig, err := signer.SignCallback(bodyProtectedBytes, nil, aad, payload)
	if err != nil {
		return nil, wrapErr("Sign1", err)
	}

	arr := []any{bodyProtectedBytes, unprotectedMap, payloadSlot, sig}
	out, err := marshalArray(arr, opts.OmitCBORTag, CBORTagSign1, opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("Sign1", err)
	}
	return out, nil
}

// Sign1Size returns the byte length Sign1 would produce, without
// performing any cryptographic operation: adapter is asked for
// SigSize instead of the signer being invoked (§4.5 "Two-pass emission").
func Sign1Size(payload []byte, body *ParameterList, signer Signer, adapter CryptoAdapter, key any, opts Options) (int, error) {
	if body == nil {
		body = NewParameterList()
	} else {
		body = body.Clone()
	}
	if err := body.Merge(signer.HeaderCallback()); err != nil {
		return 0, wrapErr("Sign1Size", err)
	}
	alg, ok := body.Alg()
	if !ok {
		return 0, wrapErr("Sign1Size", ErrUnsupportedSigningAlg)
	}
	bodyProtectedBytes, err := encodeHeaderMap(body.Bucket(Protected), opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("Sign1Size", err)
	}
	bodyProtectedBytes = collapseEmptyMap(bodyProtectedBytes)
	unprotectedMap, err := encodeHeaderMapValue(body.Bucket(Unprotected), opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("Sign1Size", err)
	}
	sigLen, err := adapter.SigSize(alg, key)
	if err != nil {
		return 0, wrapErr("Sign1Size", err)
	}
	payloadSlot := any(payload)
	if opts.DetachedPayload {
		payloadSlot = nil
	}
	placeholder := make([]byte, sigLen)
	arr := []any{bodyProtectedBytes, unprotectedMap, payloadSlot, placeholder}
	out, err := marshalArray(arr, opts.OmitCBORTag, CBORTagSign1, opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("Sign1Size", err)
	}
	return len(out), nil
}

// SignMulti runs the COSE_Sign pipeline (§4.5 "Pipeline for COSE_Sign")
// over the given signer chain, in chain order.
func SignMulti(payload []byte, body *ParameterList, signers []Signer, opts Options) ([]byte, error) {
	if len(signers) == 0 {
		return nil, wrapErr("SignMulti", ErrUnsupportedSigningAlg)
	}
	if body == nil {
		body = NewParameterList()
	} else {
		body = body.Clone()
	}

	bodyProtectedBytes, err := encodeHeaderMap(body.Bucket(Protected), opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("SignMulti", err)
	}
	bodyProtectedBytes = collapseEmptyMap(bodyProtectedBytes)
	unprotectedMap, err := encodeHeaderMapValue(body.Bucket(Unprotected), opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("SignMulti", err)
	}

	var payloadSlot any = payload
	if opts.DetachedPayload {
		payloadSlot = nil
	}
	aad := opts.ExternalAAD

	sigElems := make([]any, len(signers))
	for i, signer := range signers {
		signerHeaders := signer.HeaderCallback()
		if signerHeaders == nil {
			signerHeaders = NewParameterList()
		}
		signProtectedBytes, err := encodeHeaderMap(signerHeaders.Bucket(Protected), opts.CanonicalEncoding)
		if err != nil {
			return nil, wrapErr("SignMulti", err)
		}
		signProtectedBytes = collapseEmptyMap(signProtectedBytes)
		signUnprotectedMap, err := encodeHeaderMapValue(signerHeaders.Bucket(Unprotected), opts.CanonicalEncoding)
		if err != nil {
			return nil, wrapErr("SignMulti", err)
		}

		sig, err := signer.SignCallback(bodyProtectedBytes, signProtectedBytes, aad, payload)
		if err != nil {
			return nil, wrapErr("SignMulti", err)
		}
		sigElems[i] = []any{signProtectedBytes, signUnprotectedMap, sig}
	}

	arr := []any{bodyProtectedBytes, unprotectedMap, payloadSlot, sigElems}
	out, err := marshalArray(arr, opts.OmitCBORTag, CBORTagSign, opts.CanonicalEncoding)
	if err != nil {
		return nil, wrapErr("SignMulti", err)
	}
	return out, nil
}

// SignMultiSize returns the byte length SignMulti would produce for
// the same signer chain, without performing any cryptographic
// operation (§4.5 "Two-pass emission"). keys holds one adapter key per
// entry in signers, in the same order.
func SignMultiSize(payload []byte, body *ParameterList, signers []Signer, adapter CryptoAdapter, keys []any, opts Options) (int, error) {
	if len(signers) == 0 {
		return 0, wrapErr("SignMultiSize", ErrUnsupportedSigningAlg)
	}
	if len(keys) != len(signers) {
		return 0, wrapErr("SignMultiSize", ErrSigBufferTooSmall)
	}
	if body == nil {
		body = NewParameterList()
	} else {
		body = body.Clone()
	}

	bodyProtectedBytes, err := encodeHeaderMap(body.Bucket(Protected), opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("SignMultiSize", err)
	}
	bodyProtectedBytes = collapseEmptyMap(bodyProtectedBytes)
	unprotectedMap, err := encodeHeaderMapValue(body.Bucket(Unprotected), opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("SignMultiSize", err)
	}

	var payloadSlot any = payload
	if opts.DetachedPayload {
		payloadSlot = nil
	}

	sigElems := make([]any, len(signers))
	for i, signer := range signers {
		signerHeaders := signer.HeaderCallback()
		if signerHeaders == nil {
			signerHeaders = NewParameterList()
		}
		signProtectedBytes, err := encodeHeaderMap(signerHeaders.Bucket(Protected), opts.CanonicalEncoding)
		if err != nil {
			return 0, wrapErr("SignMultiSize", err)
		}
		signProtectedBytes = collapseEmptyMap(signProtectedBytes)
		signUnprotectedMap, err := encodeHeaderMapValue(signerHeaders.Bucket(Unprotected), opts.CanonicalEncoding)
		if err != nil {
			return 0, wrapErr("SignMultiSize", err)
		}

		alg, ok := signerHeaders.Alg()
		if !ok {
			alg = signer.Algorithm()
		}
		sigLen, err := adapter.SigSize(alg, keys[i])
		if err != nil {
			return 0, wrapErr("SignMultiSize", err)
		}
		sigElems[i] = []any{signProtectedBytes, signUnprotectedMap, make([]byte, sigLen)}
	}

	arr := []any{bodyProtectedBytes, unprotectedMap, payloadSlot, sigElems}
	out, err := marshalArray(arr, opts.OmitCBORTag, CBORTagSign, opts.CanonicalEncoding)
	if err != nil {
		return 0, wrapErr("SignMultiSize", err)
	}
	return len(out), nil
}

func encodeHeaderMapValue(params []Parameter, canonical bool) (map[any]any, error) {
	m := make(map[any]any, len(params))
	for _, p := range params {
		v, err := encodeParamValue(p)
		if err != nil {
			return nil, err
		}
		m[labelKey(p.Label)] = v
	}
	return m, nil
}

// collapseEmptyMap enforces §4.1: an empty protected bucket serializes
// as the zero-length byte string, never a byte string containing 0xa0.
func collapseEmptyMap(encoded []byte) []byte {
	if len(encoded) == 1 && encoded[0] == 0xa0 {
		return []byte{}
	}
	return encoded
}

func marshalArray(arr []any, omitTag bool, tag uint64, canonical bool) ([]byte, error) {
	mode := ctapEncMode
	if !canonical {
		var err error
		mode, err = cbor.EncOptions{}.EncMode()
		if err != nil {
			return nil, err
		}
	}
	if omitTag {
		return mode.Marshal(arr)
	}
	tagged := cbor.Tag{Number: tag, Content: arr}
	return mode.Marshal(tagged)
}
