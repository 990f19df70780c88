package global

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

// enumeratePaths scores every START..END path by brute force, returning
// log Z and the unnormalized probability mass of visiting each state and
// of each transition.
func enumeratePaths(states []float64, trans [][]float64) (float64, []float64, [][]float64) {
	S := len(states)
	inner := S - 2
	stateMass := make([]float64, S)
	transMass := make([][]float64, S)
	for a := range transMass {
		transMass[a] = make([]float64, S)
	}
	var logs []float64
	var paths [][]int
	for mask := 0; mask < 1<<inner; mask++ {
		path := []int{0}
		for k := 1; k <= inner; k++ {
			if mask&(1<<(k-1)) != 0 {
				path = append(path, k)
			}
		}
		path = append(path, S-1)
		score := states[0]
		for i := 1; i < len(path); i++ {
			score += trans[path[i-1]][path[i]] + states[path[i]]
		}
		logs = append(logs, score)
		paths = append(paths, path)
	}
	logZ := floats.LogSumExp(logs)
	for i, path := range paths {
		p := math.Exp(logs[i] - logZ)
		for j, s := range path {
			stateMass[s] += p
			if j > 0 {
				transMass[path[j-1]][s] += p
			}
		}
	}
	return logZ, stateMass, transMass
}

func randomTrellis(rng *rand.Rand, k int) ([]float64, [][]float64) {
	S := k + 2
	states := make([]float64, S)
	for s := 1; s <= k; s++ {
		states[s] = rng.NormFloat64()
	}
	trans := make([][]float64, S)
	for a := range trans {
		trans[a] = make([]float64, S)
		for b := a + 1; b < S; b++ {
			trans[a][b] = rng.NormFloat64()
		}
	}
	return states, trans
}

func TestForwardBackward(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	for k := 0; k <= 5; k++ {
		states, trans := randomTrellis(rng, k)
		logZ, stateMass, transMass := enumeratePaths(states, trans)

		r := forwardBackward(states, trans)
		assert.InDelta(t, logZ, r.LogZ, 1e-10, "k=%d", k)
		for s := range states {
			assert.InDelta(t, stateMass[s], math.Exp(r.stateLogMarginal(s)), 1e-10, "k=%d state %d", k, s)
		}
		for a := range states {
			for b := a + 1; b < len(states); b++ {
				got := math.Exp(r.transitionLogMarginal(states, trans, a, b))
				assert.InDelta(t, transMass[a][b], got, 1e-10, "k=%d step %d->%d", k, a, b)
			}
		}
	}
}

func TestForwardBackwardExcludedState(t *testing.T) {
	states := []float64{0, math.Inf(-1), 0, 0}
	trans := [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}
	r := forwardBackward(states, trans)
	// Paths: 0-3 and 0-2-3.
	assert.InDelta(t, math.Log(2), r.LogZ, 1e-12)
	assert.True(t, math.IsInf(r.stateLogMarginal(1), -1))
	assert.InDelta(t, 0.5, math.Exp(r.stateLogMarginal(2)), 1e-12)
}

func TestForwardBackwardEmpty(t *testing.T) {
	r := forwardBackward(nil, nil)
	assert.True(t, math.IsInf(r.LogZ, -1))
	assert.True(t, math.IsInf(r.stateLogMarginal(0), -1))
}
