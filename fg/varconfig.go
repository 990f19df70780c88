package fg

import (
	"fmt"
	"strings"
)

// VarConfig assigns states to some or all variables. It serves both as a
// full assignment to score and as a clamp pattern for conditioning.
type VarConfig struct {
	states map[*Var]int
}

// NewVarConfig returns an empty assignment.
func NewVarConfig() *VarConfig {
	return &VarConfig{states: make(map[*Var]int)}
}

// Put assigns state s to v.
func (c *VarConfig) Put(v *Var, s int) {
	if s < 0 || s >= v.numStates {
		illegalState("state %d out of range for %s", s, v)
	}
	c.states[v] = s
}

// PutName assigns the named state to v.
func (c *VarConfig) PutName(v *Var, name string) error {
	s := v.StateIndex(name)
	if s < 0 {
		return fmt.Errorf("fg: variable %s has no state %q", v.name, name)
	}
	c.states[v] = s
	return nil
}

// State returns the state assigned to v.
func (c *VarConfig) State(v *Var) (int, bool) {
	s, ok := c.states[v]
	return s, ok
}

// Size returns the number of assigned variables.
func (c *VarConfig) Size() int { return len(c.states) }

// Vars returns the assigned variables.
func (c *VarConfig) Vars() VarSet {
	vars := make([]*Var, 0, len(c.states))
	for v := range c.states {
		vars = append(vars, v)
	}
	return NewVarSet(vars...)
}

// ConfigIndex returns the index of this assignment over Vars().
func (c *VarConfig) ConfigIndex() int {
	return c.ConfigIndexOf(c.Vars())
}

// ConfigIndexOf returns the index of this assignment restricted to vs. Every
// member of vs must be assigned.
func (c *VarConfig) ConfigIndexOf(vs VarSet) int {
	states := make([]int, vs.Len())
	for i, v := range vs.vars {
		s, ok := c.states[v]
		if !ok {
			illegalState("variable %s is not assigned", v)
		}
		states[i] = s
	}
	return vs.Index(states)
}

func (c *VarConfig) String() string {
	vs := c.Vars()
	parts := make([]string, vs.Len())
	for i, v := range vs.vars {
		parts[i] = v.name + "=" + v.StateName(c.states[v])
	}
	return "[" + strings.Join(parts, " ") + "]"
}
