package global

import "math"

// trellisResult holds a log-domain forward-backward pass over a trellis
// whose states are topologically ordered: every transition goes from a
// lower state to a higher one, state 0 is the start and the last state is
// the end.
type trellisResult struct {
	LogZ  float64   // log partition function
	Alpha []float64 // [S] log forward scores, including the state's own weight
	Beta  []float64 // [S] log backward scores, excluding the state's own weight
}

// forwardBackward sums over every path from the first to the last state.
// stateScores: [S] log weight of visiting each state
// transScores: [S][S] log weight of moving from a to b (a < b)
func forwardBackward(stateScores []float64, transScores [][]float64) trellisResult {
	S := len(stateScores)
	if S == 0 {
		return trellisResult{LogZ: math.Inf(-1)}
	}

	alpha := negInfSlice(S)
	alpha[0] = stateScores[0]
	for b := 1; b < S; b++ {
		for a := range b {
			logAddTo(&alpha[b], alpha[a]+transScores[a][b])
		}
		alpha[b] += stateScores[b]
	}

	beta := negInfSlice(S)
	beta[S-1] = 0
	for a := S - 2; a >= 0; a-- {
		for b := a + 1; b < S; b++ {
			logAddTo(&beta[a], transScores[a][b]+stateScores[b]+beta[b])
		}
	}

	return trellisResult{
		LogZ:  alpha[S-1],
		Alpha: alpha,
		Beta:  beta,
	}
}

// stateLogMarginal returns log P(path visits s).
func (r trellisResult) stateLogMarginal(s int) float64 {
	if math.IsInf(r.LogZ, -1) {
		return math.Inf(-1)
	}
	return r.Alpha[s] + r.Beta[s] - r.LogZ
}

// transitionLogMarginal returns log P(path moves directly from a to b).
func (r trellisResult) transitionLogMarginal(stateScores []float64, transScores [][]float64, a, b int) float64 {
	if math.IsInf(r.LogZ, -1) {
		return math.Inf(-1)
	}
	return r.Alpha[a] + transScores[a][b] + stateScores[b] + r.Beta[b] - r.LogZ
}
