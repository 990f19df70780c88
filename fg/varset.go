package fg

import (
	"math"
	"slices"
	"strings"
)

// VarSet is an immutable, deduplicated set of variables kept in canonical
// order. Configuration indices are mixed-radix numbers over that order with
// the first variable most significant.
//
// The canonical order is variable creation order, not graph id. The two
// agree whenever variables are added to a graph in the order they were
// created; otherwise tensors still index the same way before and after the
// variables join a graph, but not in graph id order.
type VarSet struct {
	vars []*Var
}

// NewVarSet builds a set from vars, dropping duplicates.
func NewVarSet(vars ...*Var) VarSet {
	out := make([]*Var, 0, len(vars))
	for _, v := range vars {
		if v == nil {
			illegalState("nil variable in VarSet")
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b *Var) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return VarSet{vars: out}
}

// Union returns the variables in either set.
func (s VarSet) Union(other VarSet) VarSet {
	return NewVarSet(append(slices.Clone(s.vars), other.vars...)...)
}

// Diff returns the variables in s that are not in other.
func (s VarSet) Diff(other VarSet) VarSet {
	out := make([]*Var, 0, len(s.vars))
	for _, v := range s.vars {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	return VarSet{vars: out}
}

// Len returns the number of variables.
func (s VarSet) Len() int { return len(s.vars) }

// Var returns the i-th variable in canonical order.
func (s VarSet) Var(i int) *Var { return s.vars[i] }

// Vars returns a copy of the variables in canonical order.
func (s VarSet) Vars() []*Var { return slices.Clone(s.vars) }

// Contains reports whether v is a member.
func (s VarSet) Contains(v *Var) bool { return s.IndexOf(v) >= 0 }

// IndexOf returns the position of v, or -1.
func (s VarSet) IndexOf(v *Var) int { return slices.Index(s.vars, v) }

// IsSubsetOf reports whether every member of s is in other.
func (s VarSet) IsSubsetOf(other VarSet) bool {
	for _, v := range s.vars {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same variables.
func (s VarSet) Equal(other VarSet) bool {
	return slices.Equal(s.vars, other.vars)
}

// NumConfigs returns the product of the members' state counts. It panics
// if the product does not fit in an int.
func (s VarSet) NumConfigs() int {
	n := 1
	for _, v := range s.vars {
		if n > math.MaxInt/v.numStates {
			illegalState("configuration count of %s overflows", s)
		}
		n *= v.numStates
	}
	return n
}

// States decodes a configuration index into one state per variable.
func (s VarSet) States(config int) []int {
	states := make([]int, len(s.vars))
	for i := len(s.vars) - 1; i >= 0; i-- {
		n := s.vars[i].numStates
		states[i] = config % n
		config /= n
	}
	return states
}

// Index encodes one state per variable into a configuration index.
func (s VarSet) Index(states []int) int {
	if len(states) != len(s.vars) {
		illegalState("got %d states for %d variables", len(states), len(s.vars))
	}
	idx := 0
	for i, v := range s.vars {
		if states[i] < 0 || states[i] >= v.numStates {
			illegalState("state %d out of range for %s", states[i], v)
		}
		idx = idx*v.numStates + states[i]
	}
	return idx
}

// Config decodes a configuration index into a VarConfig.
func (s VarSet) Config(config int) *VarConfig {
	vc := NewVarConfig()
	for i, st := range s.States(config) {
		vc.Put(s.vars[i], st)
	}
	return vc
}

// stride returns how far the configuration index moves when the i-th
// variable's state increases by one.
func (s VarSet) stride(i int) int {
	st := 1
	for _, v := range s.vars[i+1:] {
		st *= v.numStates
	}
	return st
}

func (s VarSet) String() string {
	names := make([]string, len(s.vars))
	for i, v := range s.vars {
		names[i] = v.name
	}
	return "{" + strings.Join(names, ",") + "}"
}

// projection maps every configuration of super to the index of the
// corresponding configuration of sub, which must be a subset of super.
func projection(super, sub VarSet) []int {
	strides := make([]int, super.Len())
	for i, v := range super.vars {
		j := sub.IndexOf(v)
		if j >= 0 {
			strides[i] = sub.stride(j)
		}
	}
	if !sub.IsSubsetOf(super) {
		illegalState("%s is not a subset of %s", sub, super)
	}

	n := super.NumConfigs()
	out := make([]int, n)
	states := make([]int, super.Len())
	idx := 0
	for c := range n {
		out[c] = idx
		for k := len(states) - 1; k >= 0; k-- {
			states[k]++
			idx += strides[k]
			if states[k] < super.vars[k].numStates {
				break
			}
			idx -= strides[k] * states[k]
			states[k] = 0
		}
	}
	return out
}
