// Package fg is the factor-graph data model: discrete variables, dense
// potential tensors, the factor variants and the bipartite graph that
// belief propagation runs over.
package fg

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// VarType says what role a variable plays in training and decoding.
type VarType int

const (
	Observed VarType = iota
	Latent
	Predicted
)

func (t VarType) String() string {
	switch t {
	case Observed:
		return "OBSERVED"
	case Latent:
		return "LATENT"
	case Predicted:
		return "PREDICTED"
	}
	return fmt.Sprintf("VarType(%d)", int(t))
}

// State indices of Boolean variables created by the structured factors.
const (
	False = 0
	True  = 1
)

// BoolStateNames is the state-name list of Boolean variables.
var BoolStateNames = []string{"FALSE", "TRUE"}

var varSeq atomic.Uint64

// Var is a discrete random variable. Its type, state count and state names
// never change after construction.
type Var struct {
	typ        VarType
	numStates  int
	name       string
	stateNames []string

	// seq orders variables inside a VarSet; it is fixed at construction so
	// tensors can be built before any graph exists.
	seq uint64
	// id is the index in the owning graph plus one; zero means unassigned.
	id int
}

// NewVar creates a variable. stateNames may be nil; otherwise it must have
// numStates entries.
func NewVar(typ VarType, numStates int, name string, stateNames []string) *Var {
	if numStates < 1 {
		illegalState("variable %q needs at least one state, got %d", name, numStates)
	}
	if stateNames != nil && len(stateNames) != numStates {
		illegalState("variable %q has %d states but %d state names", name, numStates, len(stateNames))
	}
	return &Var{
		typ:        typ,
		numStates:  numStates,
		name:       name,
		stateNames: slices.Clone(stateNames),
		seq:        varSeq.Add(1),
	}
}

// NewBoolVar creates a two-state variable with states FALSE and TRUE.
func NewBoolVar(typ VarType, name string) *Var {
	return NewVar(typ, 2, name, BoolStateNames)
}

func (v *Var) Type() VarType  { return v.typ }
func (v *Var) NumStates() int { return v.numStates }
func (v *Var) Name() string   { return v.name }

// ID returns the variable's index in its graph, or -1 before it is added.
func (v *Var) ID() int { return v.id - 1 }

// StateNames returns a copy of the state names, or nil.
func (v *Var) StateNames() []string {
	return slices.Clone(v.stateNames)
}

// StateName returns the name of state s, falling back to its index.
func (v *Var) StateName(s int) string {
	if s >= 0 && s < len(v.stateNames) {
		return v.stateNames[s]
	}
	return fmt.Sprintf("%d", s)
}

// StateIndex returns the index of the named state, or -1.
func (v *Var) StateIndex(name string) int {
	return slices.Index(v.stateNames, name)
}

func (v *Var) String() string {
	return fmt.Sprintf("%s(%s,%d)", v.name, v.typ, v.numStates)
}
