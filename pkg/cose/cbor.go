package cose

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// This file is the core's CBOR codec interface (§6), implemented
// directly on fxamacker/cbor/v2 rather than a hand-rolled encoder —
// the reference repo never hand-rolls CBOR either, it leans on a
// third-party codec throughout.

var ctapEncMode cbor.EncMode

func init() {
	var err error
	ctapEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// encodeHeaderMap serializes a parameter bucket into the raw map
// bytes that get wrapped in a bstr. An empty bucket encodes as an empty
// map (0xa0); callers collapse that to a zero-length bstr per §4.1.
func encodeHeaderMap(params []Parameter, canonical bool) ([]byte, error) {
	m := make(map[any]any, len(params))
	for _, p := range params {
		k := labelKey(p.Label)
		v, err := encodeParamValue(p)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	mode := ctapEncMode
	if !canonical {
		var err error
		mode, err = cbor.EncOptions{}.EncMode()
		if err != nil {
			return nil, err
		}
	}
	return mode.Marshal(m)
}

func encodeParamValue(p Parameter) (any, error) {
	switch v := p.Value.(type) {
	case []Label:
		out := make([]any, len(v))
		for i, l := range v {
			out[i] = labelKey(l)
		}
		return out, nil
	default:
		return v, nil
	}
}

func labelKey(l Label) any {
	if l.IsText {
		return l.Text
	}
	return l.Int
}

// decodeHeaderMap parses raw CBOR map bytes back into a ParameterList,
// attaching every entry to bucket. Unknown integer labels are accepted
// here unconditionally — §4.1 says they are only rejected if they also
// appear in crit, which is checked separately by CheckCriticality.
//
// A zero-length raw is the canonical encoding of an empty protected
// bucket and decodes silently. A protected bucket that instead carries
// an explicit empty map (0xa0) is non-canonical but accepted by
// default, with the return value reporting it so the caller can surface
// a warning; in strict mode it is rejected outright (§4.1 "Decoding").
func decodeHeaderMap(raw []byte, bucket Bucket, out *ParameterList, strict bool) (emptyMapForm bool, err error) {
	if len(raw) == 0 {
		return false, nil
	}
	var m map[any]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCBORDecode, err)
	}
	if bucket == Protected && len(m) == 0 {
		if strict {
			return false, ErrEmptyProtectedMap
		}
		emptyMapForm = true
	}
	for k, rawVal := range m {
		label, err := labelFromKey(k)
		if err != nil {
			return false, err
		}
		value, err := decodeParamValue(label, rawVal)
		if err != nil {
			return false, err
		}
		if err := out.Add(label, value, bucket); err != nil {
			return false, err
		}
	}
	return emptyMapForm, nil
}

func labelFromKey(k any) (Label, error) {
	switch v := k.(type) {
	case int64:
		return IntLabel(v), nil
	case uint64:
		return IntLabel(int64(v)), nil
	case string:
		return TextLabel(v), nil
	default:
		return Label{}, fmt.Errorf("%w: unsupported header label type %T", ErrParameterType, k)
	}
}

func decodeParamValue(label Label, raw cbor.RawMessage) (any, error) {
	if !label.IsText && label.Int == LabelCrit {
		var rawLabels []any
		if err := cbor.Unmarshal(raw, &rawLabels); err != nil {
			return nil, fmt.Errorf("%w: crit: %v", ErrParameterType, err)
		}
		labels := make([]Label, len(rawLabels))
		for i, rl := range rawLabels {
			lbl, err := labelFromKey(rl)
			if err != nil {
				return nil, err
			}
			labels[i] = lbl
		}
		return labels, nil
	}

	var asInt int64
	if err := cbor.Unmarshal(raw, &asInt); err == nil {
		return asInt, nil
	}
	var asBytes []byte
	if err := cbor.Unmarshal(raw, &asBytes); err == nil {
		return asBytes, nil
	}
	var asText string
	if err := cbor.Unmarshal(raw, &asText); err == nil {
		return asText, nil
	}
	var asBool bool
	if err := cbor.Unmarshal(raw, &asBool); err == nil {
		return asBool, nil
	}
	var generic any
	if err := cbor.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParameterType, err)
	}
	return generic, nil
}

// sigSizeSink is a "null encoder" byte counter: it records how many
// bytes a real emission would have written without materializing them.
// Sign1Size and SignMultiSize do not use it; they encode the message
// with a placeholder signature of the adapter-reported sig_size.
type sigSizeSink struct {
	n int
}

func (s *sigSizeSink) add(n int) { s.n += n }
