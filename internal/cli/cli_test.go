package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/fgbp/feature"
)

const treeYAML = `
factors:
  - {kind: proj_dep_tree, name: tree, len: 2}
  - {kind: explicit, vars: [link_-1_0], values: [1, 3]}
`

const expFamYAML = `
vars:
  - {name: a, states: [off, on]}
factors:
  - kind: expfam
    vars: [a]
    features:
      - {}
      - {bias: 1}
`

const impossibleYAML = `
vars:
  - {name: a, states: [off, on]}
factors:
  - {kind: explicit, vars: [a], values: [0, 0]}
`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New("test")
	var out bytes.Buffer
	c.rootCmd.SetOut(&out)
	c.rootCmd.SetErr(&out)
	c.rootCmd.SetIn(strings.NewReader(""))
	c.rootCmd.SetArgs(append(args, "--silent"))
	err := c.Run()
	return out.String(), err
}

func TestInferCommand(t *testing.T) {
	path := writeFile(t, "tree.yaml", treeYAML)
	out, err := execute(t, "infer", path)
	require.NoError(t, err)

	var res namedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, path, res.Graph)
	assert.True(t, res.Converged)
	// Trees: {wall->0, wall->1}, {wall->0, 0->1}, {wall->1, 1->0}; the
	// first two carry weight 3.
	assert.InDelta(t, math.Log(7), float64(res.LogPartition), 1e-9)
	assert.InDelta(t, 6.0/7, res.Marginals["link_-1_0"]["TRUE"], 1e-9)
}

func TestInferCommandManyGraphs(t *testing.T) {
	a := writeFile(t, "a.yaml", treeYAML)
	b := writeFile(t, "b.yaml", expFamYAML)
	out, err := execute(t, "infer", a, b, "--workers", "2", "--algebra", "real")
	require.NoError(t, err)

	var res []namedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 2)
	assert.Equal(t, b, res[1].Graph)
	assert.InDelta(t, math.Log(2), float64(res[1].LogPartition), 1e-9)
}

func TestInferCommandImpossibleGraph(t *testing.T) {
	path := writeFile(t, "impossible.yaml", impossibleYAML)
	out, err := execute(t, "infer", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"log_partition": null`)

	var res namedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, math.IsInf(float64(res.LogPartition), -1))
}

func TestInferCommandRejectsBadFlags(t *testing.T) {
	path := writeFile(t, "tree.yaml", treeYAML)
	_, err := execute(t, "infer", path, "--schedule", "bfs")
	assert.Error(t, err)
}

func TestInferCommandMissingFile(t *testing.T) {
	_, err := execute(t, "infer", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	path := writeFile(t, "tree.yaml", treeYAML)
	out, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "marg-err")
	assert.Contains(t, out, path)
}

func TestCheckCommandImpossibleGraph(t *testing.T) {
	path := writeFile(t, "impossible.yaml", impossibleYAML)
	_, err := execute(t, "check", path)
	assert.NoError(t, err)
}

func TestPartialsCommand(t *testing.T) {
	weights := filepath.Join(t.TempDir(), "weights.json")
	alpha := feature.NewAlphabet()
	alpha.Add("bias")
	require.NoError(t, feature.SaveModel(&feature.Model{Features: alpha, Weights: []float64{math.Log(3)}}, weights))

	graph := writeFile(t, "a.yaml", expFamYAML)
	outPath := filepath.Join(t.TempDir(), "expected.cbor")
	_, err := execute(t, "partials", outPath, graph, graph, "--model", weights)
	require.NoError(t, err)

	got, err := feature.LoadModel(outPath)
	require.NoError(t, err)
	require.Len(t, got.Weights, 1)
	assert.InDelta(t, 1.5, got.Weights[0], 1e-9)
	assert.Equal(t, 0, got.Features.Get("bias"))
}

func TestCurrentVersion(t *testing.T) {
	for in, want := range map[string]string{
		"":       "0.0.0",
		"dev":    "0.0.0",
		"v1.2.3": "1.2.3",
		"0.4.0":  "0.4.0",
	} {
		assert.Equal(t, want, currentVersion(in), in)
	}
}

func TestWithRepo(t *testing.T) {
	assert.Equal(t, DefaultRepo, New("test").repo)
	assert.Equal(t, DefaultRepo, New("test", WithRepo("")).repo)
	assert.Equal(t, "acme/fgbp-fork", New("test", WithRepo("acme/fgbp-fork")).repo)
}
