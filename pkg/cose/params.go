package cose

import "sort"

// Bucket identifies which header bucket a parameter lives in.
type Bucket int

const (
	Unprotected Bucket = iota
	Protected
)

// Well-known integer labels (§3).
const (
	LabelAlg         int64 = 1
	LabelCrit        int64 = 2
	LabelContentType int64 = 3
	LabelKID         int64 = 4
	LabelIV          int64 = 5
	LabelPartialIV   int64 = 6
	LabelX5Chain     int64 = 33
)

// Label is either a small integer (IANA-registered) or a text string.
type Label struct {
	Int    int64
	Text   string
	IsText bool
}

// IntLabel constructs an integer header label.
func IntLabel(v int64) Label { return Label{Int: v} }

// TextLabel constructs a text header label.
func TextLabel(v string) Label { return Label{Text: v, IsText: true} }

func (l Label) equal(o Label) bool {
	if l.IsText != o.IsText {
		return false
	}
	if l.IsText {
		return l.Text == o.Text
	}
	return l.Int == o.Int
}

// less implements the canonical ordering from §3(e): integer labels sort
// ahead of text labels, then by value within each kind.
func (l Label) less(o Label) bool {
	if l.IsText != o.IsText {
		return !l.IsText // integers first
	}
	if l.IsText {
		return l.Text < o.Text
	}
	return l.Int < o.Int
}

// Parameter is a single labeled header value.
type Parameter struct {
	Label  Label
	Value  any // int64, []byte, string, bool, or []Label (crit)
	Bucket Bucket
}

// ParameterList is a header-parameter list honoring the invariants of
// §4.1: no duplicate label within a bucket, no label present in both
// buckets. It accepts alg in either bucket; Sign1 is what rejects an
// unprotected alg.
type ParameterList struct {
	params []Parameter
}

// NewParameterList returns an empty list.
func NewParameterList() *ParameterList { return &ParameterList{} }

// Add inserts a parameter, enforcing the no-duplicate-label invariant.
// It returns ErrDuplicateParameter if the label is already present in
// either bucket.
func (p *ParameterList) Add(label Label, value any, bucket Bucket) error {
	for _, existing := range p.params {
		if existing.Label.equal(label) {
			return ErrDuplicateParameter
		}
	}
	p.params = append(p.params, Parameter{Label: label, Value: value, Bucket: bucket})
	return nil
}

// MustAdd is a builder-style helper for callers constructing a list that
// is known in advance not to collide; it panics on duplicate, which is a
// programmer error rather than a runtime condition.
func (p *ParameterList) MustAdd(label Label, value any, bucket Bucket) *ParameterList {
	if err := p.Add(label, value, bucket); err != nil {
		panic(err)
	}
	return p
}

// Get returns the parameter for label, if present, and which bucket it
// was found in.
func (p *ParameterList) Get(label Label) (Parameter, bool) {
	for _, existing := range p.params {
		if existing.Label.equal(label) {
			return existing, true
		}
	}
	return Parameter{}, false
}

// GetInt is a convenience accessor for integer-labeled, integer-valued
// parameters such as alg.
func (p *ParameterList) GetInt(labelInt int64) (int64, bool) {
	param, ok := p.Get(IntLabel(labelInt))
	if !ok {
		return 0, false
	}
	v, ok := param.Value.(int64)
	return v, ok
}

// Bucket returns the parameters belonging to bucket, in their add order.
func (p *ParameterList) Bucket(bucket Bucket) []Parameter {
	var out []Parameter
	for _, existing := range p.params {
		if existing.Bucket == bucket {
			out = append(out, existing)
		}
	}
	return out
}

// Sorted returns bucket's parameters ordered per §3(e): integer labels
// ascending, then text labels ascending. The encoders do not call it:
// with canonical encoding requested, map key order comes from the
// CBOR encode mode.
func (p *ParameterList) Sorted(bucket Bucket) []Parameter {
	out := p.Bucket(bucket)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label.less(out[j].Label) })
	return out
}

// Alg returns the alg parameter, which §4.1(c) requires to live in the
// protected bucket.
func (p *ParameterList) Alg() (AlgorithmID, bool) {
	param, ok := p.Get(IntLabel(LabelAlg))
	if !ok {
		return 0, false
	}
	v, ok := param.Value.(int64)
	if !ok {
		return 0, false
	}
	return AlgorithmID(v), true
}

// Crit returns the crit label list, which §4.1 requires to live in the
// protected bucket only.
func (p *ParameterList) Crit() ([]Label, bool) {
	param, ok := p.Get(IntLabel(LabelCrit))
	if !ok {
		return nil, false
	}
	v, ok := param.Value.([]Label)
	return v, ok
}

// KnownLabelReader is offered unknown critical labels before the engine
// gives up; it returns true if it understands and will itself act on
// the label (§4.1 "Criticality").
type KnownLabelReader func(label Label) bool

// CheckCriticality enforces §4.1's criticality rule: every label in crit
// must be present in the protected bucket, and must be either a
// well-known label, or accepted by reader (if non-nil).
func (p *ParameterList) CheckCriticality(reader KnownLabelReader) error {
	crit, ok := p.Crit()
	if !ok {
		return nil
	}
	protected := p.Bucket(Protected)
	for _, label := range crit {
		present := false
		for _, param := range protected {
			if param.Label.equal(label) {
				present = true
				break
			}
		}
		if !present {
			return ErrUnknownCriticalParameter
		}
		if isWellKnownLabel(label) {
			continue
		}
		if reader != nil && reader(label) {
			continue
		}
		return ErrUnknownCriticalParameter
	}
	return nil
}

func isWellKnownLabel(label Label) bool {
	if label.IsText {
		return false
	}
	switch label.Int {
	case LabelAlg, LabelCrit, LabelContentType, LabelKID, LabelIV, LabelPartialIV, LabelX5Chain:
		return true
	default:
		return false
	}
}

// Merge copies other's parameters into p, enforcing the no-duplicate
// invariant (§4.1 "Merging body-level and signer-level headers"). Used
// to fold a signer's header-callback contribution into the body headers
// for COSE_Sign1.
func (p *ParameterList) Merge(other *ParameterList) error {
	if other == nil {
		return nil
	}
	for _, param := range other.params {
		if err := p.Add(param.Label, param.Value, param.Bucket); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep-enough copy for independent mutation.
func (p *ParameterList) Clone() *ParameterList {
	out := &ParameterList{params: make([]Parameter, len(p.params))}
	copy(out.params, p.params)
	return out
}
