package algebra

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type logAlgebra struct{}

func (logAlgebra) Kind() Kind                  { return KindLog }
func (logAlgebra) Zero() float64               { return math.Inf(-1) }
func (logAlgebra) One() float64                { return 0 }
func (logAlgebra) Times(a, b float64) float64  { return a + b }
func (logAlgebra) Plus(a, b float64) float64   { return LogAdd(a, b) }
func (logAlgebra) Minus(a, b float64) float64  { return LogSubtract(a, b) }
func (logAlgebra) Divide(a, b float64) float64 { return a - b }

func (logAlgebra) Sum(xs []float64) float64 {
	if len(xs) == 0 || floats.Max(xs) == math.Inf(-1) {
		return math.Inf(-1)
	}
	return floats.LogSumExp(xs)
}

func (logAlgebra) ToLogProb(x float64) float64   { return x }
func (logAlgebra) FromLogProb(lp float64) float64 { return lp }
func (logAlgebra) ToReal(x float64) float64       { return math.Exp(x) }
func (logAlgebra) FromReal(p float64) float64     { return math.Log(p) }

func (logAlgebra) String() string { return string(KindLog) }

// Table layout for the approximate log-add: entry i holds log1p(exp(-i*step)).
const (
	logAddTableMax  = 50.0
	logAddTableStep = 1.0 / 1024
)

var logAddTable = buildLogAddTable()

func buildLogAddTable() []float64 {
	n := int(logAddTableMax/logAddTableStep) + 2
	t := make([]float64, n)
	for i := range n {
		t[i] = math.Log1p(math.Exp(-float64(i) * logAddTableStep))
	}
	return t
}

// logAddApprox interpolates log(exp(a)+exp(b)) from logAddTable.
func logAddApprox(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) || math.IsInf(a, 1) {
		return a
	}
	d := a - b
	if d >= logAddTableMax {
		return a
	}
	pos := d / logAddTableStep
	i := int(pos)
	frac := pos - float64(i)
	return a + logAddTable[i] + frac*(logAddTable[i+1]-logAddTable[i])
}

type logTableAlgebra struct {
	logAlgebra
}

func (logTableAlgebra) Kind() Kind                { return KindLogTable }
func (logTableAlgebra) Plus(a, b float64) float64 { return logAddApprox(a, b) }

func (logTableAlgebra) Sum(xs []float64) float64 {
	s := math.Inf(-1)
	for _, x := range xs {
		s = logAddApprox(s, x)
	}
	return s
}

func (logTableAlgebra) String() string { return string(KindLogTable) }
