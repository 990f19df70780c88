package graphfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/fgbp/algebra"
	"github.com/happyhackingspace/fgbp/feature"
	"github.com/happyhackingspace/fgbp/fg"
	"github.com/happyhackingspace/fgbp/global"
)

var (
	// ErrUnknownVar is returned when a factor names a variable that was
	// never declared.
	ErrUnknownVar = errors.New("graphfile: unknown variable")
	// ErrDuplicateVar is returned when two variables share a name.
	ErrDuplicateVar = errors.New("graphfile: duplicate variable")
	// ErrUnknownTree is returned when a head automaton names a tree factor
	// that does not precede it.
	ErrUnknownTree = errors.New("graphfile: unknown tree factor")
)

var validate = validator.New()

// Graph is a loaded description.
type Graph struct {
	*fg.FactorGraph
	// Model holds the weights every parametric factor was scored with. Its
	// Features alphabet names the features the file uses, and those of any
	// other file loaded with the same model.
	Model *feature.Model
	// Trees holds the dependency tree factors by name.
	Trees map[string]*global.ProjDepTreeFactor
}

// Load reads the description at path. Named features are looked up in,
// and added to, model.Features; new features get weight zero. A nil model
// is replaced by an empty one.
func Load(path string, model *feature.Model) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	g, err := Parse(data, model)
	if err != nil {
		return nil, err
	}
	slog.Debug("Graph loaded", "path", path, "vars", g.NumVars(), "factors", g.NumFactors())
	return g, nil
}

// Parse decodes a description from YAML, falling back to JSON, and builds
// the graph.
func Parse(data []byte, model *feature.Model) (*Graph, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		if jsonErr := json.Unmarshal(data, &file); jsonErr != nil {
			return nil, fmt.Errorf("graphfile: parse (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("graphfile: invalid description: %w", err)
	}
	return Build(&file, model)
}

type builder struct {
	graph *Graph
	vars  map[string]*fg.Var
	alpha *feature.Alphabet
}

// Build turns a validated File into a graph.
func Build(file *File, model *feature.Model) (*Graph, error) {
	b := &builder{
		graph: &Graph{FactorGraph: fg.New(), Trees: make(map[string]*global.ProjDepTreeFactor)},
		vars:  make(map[string]*fg.Var),
	}
	if model == nil {
		model = &feature.Model{}
	}
	if model.Features == nil {
		model.Features = feature.NewAlphabet()
	}
	b.alpha = model.Features

	for _, vs := range file.Vars {
		v := fg.NewVar(varType(vs.Type), len(vs.States), vs.Name, vs.States)
		if err := b.addVar(v); err != nil {
			return nil, err
		}
	}
	for i, fs := range file.Factors {
		if err := b.addFactor(fs); err != nil {
			return nil, fmt.Errorf("graphfile: factor %d (%s): %w", i, fs.Kind, err)
		}
	}

	model.Grow(b.alpha.Size())
	b.graph.Model = model
	b.graph.UpdateFromModel(model)
	return b.graph, nil
}

func varType(s string) fg.VarType {
	switch s {
	case "observed":
		return fg.Observed
	case "latent":
		return fg.Latent
	}
	return fg.Predicted
}

func (b *builder) addVar(v *fg.Var) error {
	if _, ok := b.vars[v.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateVar, v.Name())
	}
	b.vars[v.Name()] = v
	b.graph.AddVar(v)
	return nil
}

func (b *builder) lookup(names []string) ([]*fg.Var, error) {
	vars := make([]*fg.Var, len(names))
	for i, name := range names {
		v, ok := b.vars[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVar, name)
		}
		vars[i] = v
	}
	return vars, nil
}

func (b *builder) addFactor(fs FactorSpec) error {
	switch fs.Kind {
	case KindExplicit:
		return b.addExplicit(fs)
	case KindExpFam:
		return b.addExpFam(fs)
	case KindProjDepTree:
		return b.addProjDepTree(fs)
	case KindHeadAutomata:
		return b.addHeadAutomata(fs)
	case KindConstituencyTree:
		return b.addConstituencyTree(fs)
	}
	return fmt.Errorf("unsupported kind %q", fs.Kind)
}

// configs calls fn for every configuration of vars in file order, the
// first variable varying slowest.
func configs(vars []*fg.Var, fn func(i int, cfg *fg.VarConfig)) {
	for i := range numConfigs(vars) {
		cfg := fg.NewVarConfig()
		rest := i
		for k := len(vars) - 1; k >= 0; k-- {
			cfg.Put(vars[k], rest%vars[k].NumStates())
			rest /= vars[k].NumStates()
		}
		fn(i, cfg)
	}
}

func numConfigs(vars []*fg.Var) int {
	n := 1
	for _, v := range vars {
		n *= v.NumStates()
	}
	return n
}

func (b *builder) addExplicit(fs FactorSpec) error {
	vars, err := b.lookup(fs.Vars)
	if err != nil {
		return err
	}
	if want := numConfigs(vars); len(fs.Values) != want {
		return fmt.Errorf("got %d values for %d configurations", len(fs.Values), want)
	}
	f := fg.NewExplicitFactor(algebra.Real, fg.NewVarSet(vars...))
	configs(vars, func(i int, cfg *fg.VarConfig) {
		f.SetAssignment(cfg, fs.Values[i])
	})
	b.graph.AddFactor(f)
	return nil
}

func (b *builder) addExpFam(fs FactorSpec) error {
	vars, err := b.lookup(fs.Vars)
	if err != nil {
		return err
	}
	if want := numConfigs(vars); len(fs.Features) != want {
		return fmt.Errorf("got %d feature sets for %d configurations", len(fs.Features), want)
	}
	vs := fg.NewVarSet(vars...)
	vecs := make([]feature.Vector, vs.NumConfigs())
	configs(vars, func(i int, cfg *fg.VarConfig) {
		vecs[cfg.ConfigIndexOf(vs)] = b.alpha.Vectorize(feature.ToAttributes(fs.Features[i]))
	})
	f := fg.NewExpFamFactor(vs, fg.FeatureFunc(func(c int) feature.Vector { return vecs[c] }))
	b.graph.AddFactor(f)
	return nil
}

// addGlobalVars registers the variables a structured factor created so
// later factors can refer to them by name.
func (b *builder) addGlobalVars(f fg.Factor) error {
	for _, v := range f.Vars().Vars() {
		if err := b.addVar(v); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addProjDepTree(fs FactorSpec) error {
	if fs.Len < 1 {
		return fmt.Errorf("len must be at least 1")
	}
	f := global.NewProjDepTreeFactor(fs.Len, varType(fs.VarType), fs.SingleRoot)
	if err := b.addGlobalVars(f); err != nil {
		return err
	}
	b.graph.AddFactor(f)
	if fs.Name != "" {
		b.graph.Trees[fs.Name] = f
	}
	return nil
}

func (b *builder) addHeadAutomata(fs FactorSpec) error {
	tree, ok := b.graph.Trees[fs.Tree]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTree, fs.Tree)
	}
	if fs.Head < global.Wall || fs.Head >= tree.Len() {
		return fmt.Errorf("head %d outside sentence of length %d", fs.Head, tree.Len())
	}
	f := global.NewHeadAutomataFactor(fs.Head, fs.Right, global.HeadAutomataLinks(tree, fs.Head, fs.Right))
	for _, s := range fs.Siblings {
		if s.To > f.NumLinks()+1 {
			return fmt.Errorf("sibling step %d->%d outside 0..%d", s.From, s.To, f.NumLinks()+1)
		}
		f.SetSiblingScore(s.From, s.To, s.Score)
		if len(s.Features) > 0 {
			f.SetSiblingFeatures(s.From, s.To, b.alpha.Vectorize(feature.ToAttributes(s.Features)))
		}
	}
	b.graph.AddFactor(f)
	return nil
}

func (b *builder) addConstituencyTree(fs FactorSpec) error {
	if fs.Len < 1 {
		return fmt.Errorf("len must be at least 1")
	}
	f := global.NewConstituencyTreeFactor(fs.Len, varType(fs.VarType))
	if err := b.addGlobalVars(f); err != nil {
		return err
	}
	b.graph.AddFactor(f)
	return nil
}
