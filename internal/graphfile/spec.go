// Package graphfile reads factor graph descriptions from YAML or JSON files.
package graphfile

// File is the top-level structure of a graph description.
type File struct {
	Vars    []VarSpec    `json:"vars" yaml:"vars" validate:"dive"`
	Factors []FactorSpec `json:"factors" yaml:"factors" validate:"required,min=1,dive"`
}

// VarSpec declares one variable.
type VarSpec struct {
	Name   string   `json:"name" yaml:"name" validate:"required"`
	Type   string   `json:"type" yaml:"type" validate:"omitempty,oneof=observed latent predicted"`
	States []string `json:"states" yaml:"states" validate:"required,min=1,unique"`
}

// Factor kinds.
const (
	KindExplicit         = "explicit"
	KindExpFam           = "expfam"
	KindProjDepTree      = "proj_dep_tree"
	KindHeadAutomata     = "head_automata"
	KindConstituencyTree = "constituency_tree"
)

// FactorSpec declares one factor. Which fields apply depends on Kind.
type FactorSpec struct {
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=explicit expfam proj_dep_tree head_automata constituency_tree"`
	Name string `json:"name" yaml:"name"`

	// Vars lists the variables of an explicit or expfam factor. Values and
	// Features are indexed by configurations of Vars in the order given,
	// the first variable varying slowest.
	Vars     []string         `json:"vars" yaml:"vars"`
	Values   []float64        `json:"values" yaml:"values" validate:"omitempty,dive,gte=0"`
	Features []map[string]any `json:"features" yaml:"features"`

	// Len is the sentence length of a tree factor.
	Len        int    `json:"len" yaml:"len" validate:"gte=0"`
	SingleRoot bool   `json:"single_root" yaml:"single_root"`
	VarType    string `json:"var_type" yaml:"var_type" validate:"omitempty,oneof=observed latent predicted"`

	// Tree names the proj_dep_tree factor whose links a head automaton
	// scores.
	Tree     string        `json:"tree" yaml:"tree"`
	Head     int           `json:"head" yaml:"head" validate:"gte=-1"`
	Right    bool          `json:"right" yaml:"right"`
	Siblings []SiblingSpec `json:"siblings" yaml:"siblings" validate:"dive"`
}

// SiblingSpec scores the step from trellis state From to To of a head
// automaton, either directly or through named features.
type SiblingSpec struct {
	From     int            `json:"from" yaml:"from" validate:"gte=0"`
	To       int            `json:"to" yaml:"to" validate:"gtfield=From"`
	Score    float64        `json:"score" yaml:"score"`
	Features map[string]any `json:"features" yaml:"features"`
}
