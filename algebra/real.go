package algebra

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type realAlgebra struct{}

func (realAlgebra) Kind() Kind                 { return KindReal }
func (realAlgebra) Zero() float64              { return 0 }
func (realAlgebra) One() float64               { return 1 }
func (realAlgebra) Times(a, b float64) float64 { return a * b }
func (realAlgebra) Plus(a, b float64) float64  { return a + b }
func (realAlgebra) Minus(a, b float64) float64 { return a - b }

func (realAlgebra) Divide(a, b float64) float64 { return a / b }

func (realAlgebra) Sum(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Sum(xs)
}

func (realAlgebra) ToLogProb(x float64) float64   { return math.Log(x) }
func (realAlgebra) FromLogProb(lp float64) float64 { return math.Exp(lp) }
func (realAlgebra) ToReal(x float64) float64       { return x }
func (realAlgebra) FromReal(p float64) float64     { return p }

func (realAlgebra) String() string { return string(KindReal) }
