package fg

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/happyhackingspace/fgbp/algebra"
)

// VarTensor is a dense table over the configurations of a VarSet, indexed
// the same way as the set. Values live in the tensor's algebra and are not
// necessarily normalized.
type VarTensor struct {
	alg    algebra.Algebra
	vars   VarSet
	values []float64
}

// NewVarTensor allocates a tensor over vars with every entry set to init.
func NewVarTensor(a algebra.Algebra, vars VarSet, init float64) *VarTensor {
	values := make([]float64, vars.NumConfigs())
	for i := range values {
		values[i] = init
	}
	return &VarTensor{alg: a, vars: vars, values: values}
}

// NewVarTensorFromValues wraps values, which must have one entry per
// configuration of vars.
func NewVarTensorFromValues(a algebra.Algebra, vars VarSet, values []float64) *VarTensor {
	if len(values) != vars.NumConfigs() {
		illegalState("%d values for %d configurations of %s", len(values), vars.NumConfigs(), vars)
	}
	return &VarTensor{alg: a, vars: vars, values: slices.Clone(values)}
}

func (t *VarTensor) Algebra() algebra.Algebra { return t.alg }
func (t *VarTensor) Vars() VarSet             { return t.vars }
func (t *VarTensor) Size() int                { return len(t.values) }

// Get returns the entry at configuration index c.
func (t *VarTensor) Get(c int) float64 { return t.values[c] }

// Set overwrites the entry at configuration index c.
func (t *VarTensor) Set(c int, v float64) { t.values[c] = v }

// Values exposes the backing array. Callers that write to it own the
// consequences.
func (t *VarTensor) Values() []float64 { return t.values }

// Copy returns a deep copy.
func (t *VarTensor) Copy() *VarTensor {
	return &VarTensor{alg: t.alg, vars: t.vars, values: slices.Clone(t.values)}
}

// CopyFrom overwrites t with other's values; shapes and algebras must match.
func (t *VarTensor) CopyFrom(other *VarTensor) {
	t.checkSameShape(other)
	copy(t.values, other.values)
}

// Fill sets every entry to v.
func (t *VarTensor) Fill(v float64) {
	for i := range t.values {
		t.values[i] = v
	}
}

// Scale multiplies every entry by x (in the tensor's algebra).
func (t *VarTensor) Scale(x float64) {
	for i := range t.values {
		t.values[i] = t.alg.Times(t.values[i], x)
	}
}

// Add semiring-adds other elementwise; both must share vars.
func (t *VarTensor) Add(other *VarTensor) {
	t.checkSameShape(other)
	for i := range t.values {
		t.values[i] = t.alg.Plus(t.values[i], other.values[i])
	}
}

// Prod multiplies in other, whose vars must be a subset of t's. Entries of
// other are broadcast over the variables it does not mention.
func (t *VarTensor) Prod(other *VarTensor) {
	t.checkSameAlgebra(other)
	if t.vars.Equal(other.vars) {
		for i := range t.values {
			t.values[i] = t.alg.Times(t.values[i], other.values[i])
		}
		return
	}
	proj := projection(t.vars, other.vars)
	for i := range t.values {
		t.values[i] = t.alg.Times(t.values[i], other.values[proj[i]])
	}
}

// Divide divides by other, broadcast as in Prod.
func (t *VarTensor) Divide(other *VarTensor) {
	t.checkSameAlgebra(other)
	proj := projection(t.vars, other.vars)
	for i := range t.values {
		t.values[i] = t.alg.Divide(t.values[i], other.values[proj[i]])
	}
}

// Marginalize sums out every variable not in keep.
func (t *VarTensor) Marginalize(keep VarSet) *VarTensor {
	out := NewVarTensor(t.alg, keep, t.alg.Zero())
	proj := projection(t.vars, keep)
	for i, v := range t.values {
		out.values[proj[i]] = t.alg.Plus(out.values[proj[i]], v)
	}
	return out
}

// Sum returns the semiring sum of all entries.
func (t *VarTensor) Sum() float64 {
	return t.alg.Sum(t.values)
}

// Normalize rescales the entries to sum to One and returns the old sum. A
// tensor summing to Zero is left unchanged.
func (t *VarTensor) Normalize() float64 {
	s := t.Sum()
	if s == t.alg.Zero() {
		return s
	}
	for i := range t.values {
		t.values[i] = t.alg.Divide(t.values[i], s)
	}
	return s
}

// Convert returns a copy of t expressed in algebra a.
func (t *VarTensor) Convert(a algebra.Algebra) *VarTensor {
	out := &VarTensor{alg: a, vars: t.vars, values: make([]float64, len(t.values))}
	for i, v := range t.values {
		out.values[i] = algebra.Convert(v, t.alg, a)
	}
	return out
}

// Clamp restricts t to the configurations consistent with cfg, returning a
// tensor over the variables cfg leaves free. Nothing is summed out.
func (t *VarTensor) Clamp(cfg *VarConfig) *VarTensor {
	var fixed []*Var
	for _, v := range t.vars.vars {
		if _, ok := cfg.states[v]; ok {
			fixed = append(fixed, v)
		}
	}
	fixedSet := NewVarSet(fixed...)
	free := t.vars.Diff(fixedSet)
	want := cfg.ConfigIndexOf(fixedSet)

	out := NewVarTensor(t.alg, free, t.alg.Zero())
	toFixed := projection(t.vars, fixedSet)
	toFree := projection(t.vars, free)
	for i, v := range t.values {
		if toFixed[i] == want {
			out.values[toFree[i]] = v
		}
	}
	return out
}

// Argmax returns the configuration index of the largest entry.
func (t *VarTensor) Argmax() int {
	best := 0
	for i, v := range t.values {
		if v > t.values[best] {
			best = i
		}
	}
	return best
}

// MaxAbsDiffLog compares two tensors over the same vars in the
// log-probability domain. Matching infinities count as equal.
func (t *VarTensor) MaxAbsDiffLog(other *VarTensor) float64 {
	if len(t.values) != len(other.values) {
		illegalState("comparing tensors over %s and %s", t.vars, other.vars)
	}
	var d float64
	for i := range t.values {
		a := t.alg.ToLogProb(t.values[i])
		b := other.alg.ToLogProb(other.values[i])
		if a == b {
			continue
		}
		d = max(d, math.Abs(a-b))
	}
	return d
}

// Validate panics if any entry is NaN or +Inf in t's algebra.
func (t *VarTensor) Validate() {
	for i, v := range t.values {
		if math.IsNaN(v) || math.IsInf(v, 1) {
			illegalState("invalid value %v at configuration %d of tensor over %s", v, i, t.vars)
		}
	}
}

func (t *VarTensor) checkSameShape(other *VarTensor) {
	t.checkSameAlgebra(other)
	if !t.vars.Equal(other.vars) {
		illegalState("tensor shapes differ: %s vs %s", t.vars, other.vars)
	}
}

func (t *VarTensor) checkSameAlgebra(other *VarTensor) {
	if t.alg != other.alg {
		illegalState("tensor algebras differ: %s vs %s", t.alg.Kind(), other.alg.Kind())
	}
}

func (t *VarTensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "VarTensor[%s]%s{", t.alg.Kind(), t.vars)
	for i, v := range t.values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%.6g", v)
	}
	sb.WriteString("}")
	return sb.String()
}
