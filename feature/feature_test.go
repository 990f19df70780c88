package feature

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabet(t *testing.T) {
	a := NewAlphabet()
	id0 := a.Add("hello")
	id1 := a.Add("world")
	id2 := a.Add("hello") // duplicate

	assert.Equal(t, []int{0, 1, 0}, []int{id0, id1, id2})
	assert.Equal(t, 2, a.Size())
	assert.Equal(t, -1, a.Get("missing"))

	name, err := a.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "world", name)
	_, err = a.Lookup(5)
	assert.Error(t, err)

	a.Freeze()
	assert.Equal(t, -1, a.Add("new"))
	assert.Equal(t, 2, a.Size())
}

func TestVectorize(t *testing.T) {
	a := NewAlphabet()
	v := a.Vectorize(map[string]float64{"b": 2, "a": 1})
	require.Equal(t, 2, v.Nnz())
	assert.Equal(t, 2.0, v.Get(a.Get("b")))
	assert.Equal(t, 1.0, v.Get(a.Get("a")))
	assert.Less(t, v.Indices[0], v.Indices[1])
}

func TestToAttributes(t *testing.T) {
	attrs := ToAttributes(map[string]any{
		"head":     "ate",
		"dir":      []string{"left", "adj"},
		"pos":      []any{"NN", 3},
		"is-root":  true,
		"is-punct": false,
		"dist":     2,
		"bias":     1.5,
	})

	assert.Equal(t, 1.0, attrs["head=ate"])
	assert.Equal(t, 1.0, attrs["dir:left"])
	assert.Equal(t, 1.0, attrs["dir:adj"])
	assert.Equal(t, 1.0, attrs["pos:NN"])
	assert.Equal(t, 1.0, attrs["pos:3"])
	assert.Equal(t, 1.0, attrs["is-root"])
	assert.NotContains(t, attrs, "is-punct")
	assert.Equal(t, 2.0, attrs["dist"])
	assert.Equal(t, 1.5, attrs["bias"])
}

func TestVector(t *testing.T) {
	var v Vector
	v.Set(1, 2.0)
	v.Add(3, 4.0)
	v.Add(3, 1.0)

	assert.Equal(t, 2.0*2+5.0*4, v.Dot([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 2.0, v.Dot([]float64{1, 1}), "indices past the end are ignored")
	assert.Equal(t, 3, v.MaxIndex())
	assert.Equal(t, -1, Vector{}.MaxIndex())

	dense := make([]float64, 4)
	v.AddTo(dense, 0.5)
	assert.Equal(t, []float64{0, 1, 0, 2.5}, dense)

	shifted := v.Offset(10)
	assert.Equal(t, []int{11, 13}, shifted.Indices)
	assert.Equal(t, []int{1, 3}, v.Indices)
}

func TestModelAddScaledGrows(t *testing.T) {
	m := NewModel(2)
	m.AddScaled(NewVector([]int{0, 4}, []float64{1, 2}), 3)
	assert.Equal(t, []float64{3, 0, 0, 0, 6}, m.Weights)
	assert.Equal(t, 9.0, m.Dot(NewVector([]int{0, 4}, []float64{1, 1})))

	c := m.Copy()
	c.Zero()
	assert.Equal(t, 3.0, m.Weights[0])
	assert.Equal(t, 0.0, c.Weights[0])
}

func TestModelSaveLoad(t *testing.T) {
	model := NewModelForAlphabet(NewAlphabet())
	model.Features.Add("bias")
	model.Features.Add("dist")
	model.Weights = []float64{1.0, -0.5}

	dir := t.TempDir()
	for _, name := range []string{"model.json", "model.cbor"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveModel(model, path))

		loaded, err := LoadModel(path)
		require.NoError(t, err, name)
		assert.Equal(t, model.Weights, loaded.Weights, name)
		require.NotNil(t, loaded.Features, name)
		assert.Equal(t, 1, loaded.Features.Get("dist"), name)
	}

	data, err := MarshalModelCBOR(model)
	require.NoError(t, err)
	again, err := MarshalModelCBOR(model)
	require.NoError(t, err)
	assert.Equal(t, data, again, "CBOR encoding is deterministic")
}
