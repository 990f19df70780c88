package feature

// Model holds the weight vector parametric factors read their scores from.
// It doubles as a gradient accumulator: AddExpectedPartials writes into a
// Model of the same size.
//
// A Model may be read by many inference runs at once, but must not be
// written while any of them is running.
type Model struct {
	Features *Alphabet `json:"features,omitempty" cbor:"features,omitempty"`
	Weights  []float64 `json:"weights" cbor:"weights"`
}

// NewModel creates a zero model with n parameters.
func NewModel(n int) *Model {
	return &Model{Weights: make([]float64, n)}
}

// NewModelForAlphabet creates a zero model sized to the alphabet.
func NewModelForAlphabet(a *Alphabet) *Model {
	return &Model{Features: a, Weights: make([]float64, a.Size())}
}

// NumParams returns the number of weights.
func (m *Model) NumParams() int {
	return len(m.Weights)
}

// Dot scores a feature vector against the weights.
func (m *Model) Dot(v Vector) float64 {
	return v.Dot(m.Weights)
}

// AddScaled adds multiplier*v into the weights, growing the model if v
// references indices past its end.
func (m *Model) AddScaled(v Vector, multiplier float64) {
	if need := v.MaxIndex() + 1; need > len(m.Weights) {
		m.Grow(need)
	}
	v.AddTo(m.Weights, multiplier)
}

// Grow extends the weight vector with zeros to at least n entries.
func (m *Model) Grow(n int) {
	if n <= len(m.Weights) {
		return
	}
	w := make([]float64, n)
	copy(w, m.Weights)
	m.Weights = w
}

// Zero resets every weight to zero.
func (m *Model) Zero() {
	for i := range m.Weights {
		m.Weights[i] = 0
	}
}

// Fill sets every weight to val.
func (m *Model) Fill(val float64) {
	for i := range m.Weights {
		m.Weights[i] = val
	}
}

// Copy returns a deep copy of the weights; the alphabet is shared.
func (m *Model) Copy() *Model {
	w := make([]float64, len(m.Weights))
	copy(w, m.Weights)
	return &Model{Features: m.Features, Weights: w}
}
