// Package algebra defines the semirings that belief propagation and the
// structured factors compute in.
//
// Values are plain float64s whose meaning depends on the algebra: Real holds
// probabilities (or unnormalized potentials), Log and LogTable hold their
// natural logarithms. Code that combines values never inspects them directly;
// it goes through Times, Plus and friends so the same factor and graph logic
// runs in either domain.
package algebra

import (
	"fmt"
	"math"
)

// Kind names an algebra in configuration files and flags.
type Kind string

const (
	KindReal     Kind = "real"
	KindLog      Kind = "log"
	KindLogTable Kind = "log-table"
)

// Algebra is a commutative semiring over float64 plus the conversions
// needed to move values in and out of it.
type Algebra interface {
	Kind() Kind

	Zero() float64
	One() float64

	Times(a, b float64) float64
	Plus(a, b float64) float64
	// Minus is the inverse of Plus. It returns NaN in the log domain when
	// b > a, since the result would be a negative probability.
	Minus(a, b float64) float64
	Divide(a, b float64) float64
	// Sum is the semiring sum of xs; the empty sum is Zero.
	Sum(xs []float64) float64

	ToLogProb(x float64) float64
	FromLogProb(lp float64) float64
	ToReal(x float64) float64
	FromReal(p float64) float64
}

var (
	// Real computes with ordinary probabilities.
	Real Algebra = realAlgebra{}
	// Log computes with log-probabilities and an exact log-add.
	Log Algebra = logAlgebra{}
	// LogTable computes with log-probabilities and a table-interpolated
	// log-add. Faster, accurate to roughly 1e-8.
	LogTable Algebra = logTableAlgebra{}
)

// ForKind returns the algebra registered under k.
func ForKind(k Kind) (Algebra, error) {
	switch k {
	case KindReal:
		return Real, nil
	case KindLog, "":
		return Log, nil
	case KindLogTable:
		return LogTable, nil
	}
	return nil, fmt.Errorf("algebra: unknown kind %q", k)
}

// Convert moves x from one algebra to another.
func Convert(x float64, from, to Algebra) float64 {
	if from == to {
		return x
	}
	return to.FromLogProb(from.ToLogProb(x))
}

// IsLog reports whether a stores log-probabilities.
func IsLog(a Algebra) bool {
	return a.Kind() != KindReal
}

// LogAdd returns log(exp(a) + exp(b)) without leaving the log domain.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	if math.IsInf(a, 1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSubtract returns log(exp(a) - exp(b)). It returns NaN when b > a.
func LogSubtract(a, b float64) float64 {
	if math.IsInf(b, -1) {
		return a
	}
	if b > a {
		return math.NaN()
	}
	if a == b {
		return math.Inf(-1)
	}
	return a + math.Log(-math.Expm1(b-a))
}
