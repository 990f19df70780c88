package global

import "math"

const (
	left  = 0
	right = 1
)

// eisnerChart holds the inside and outside log scores of Eisner's
// first-order projective parser. Position 0 is the wall. A complete span
// c[s][t][right] is headed by s, c[s][t][left] by t; an incomplete span
// i[s][t][d] additionally contains the arc between s and t.
type eisnerChart struct {
	n          int
	w          [][]float64
	singleRoot bool

	c, i   [][][2]float64
	oc, oi [][][2]float64
	logZ   float64
}

func newSpanTable(n int) [][][2]float64 {
	t := make([][][2]float64, n+1)
	ninf := math.Inf(-1)
	for s := range t {
		t[s] = make([][2]float64, n+1)
		for k := range t[s] {
			t[s][k] = [2]float64{ninf, ninf}
		}
	}
	return t
}

// insideOutside runs both passes over arc log-weights w[h][m] for chart
// positions 0..N.
func insideOutside(w [][]float64, singleRoot bool) *eisnerChart {
	ch := &eisnerChart{n: len(w) - 1, w: w, singleRoot: singleRoot}
	ch.inside()
	ch.outside()
	return ch
}

func (ch *eisnerChart) inside() {
	n, w := ch.n, ch.w
	ch.c = newSpanTable(n)
	ch.i = newSpanTable(n)
	c, in := ch.c, ch.i
	for s := 0; s <= n; s++ {
		c[s][s] = [2]float64{0, 0}
	}

	for width := 1; width <= n; width++ {
		for s := 0; s+width <= n; s++ {
			t := s + width

			for r := s; r < t; r++ {
				split := c[s][r][right] + c[r+1][t][left]
				if s > 0 {
					logAddTo(&in[s][t][left], split+w[t][s])
				}
				logAddTo(&in[s][t][right], split+w[s][t])
			}
			for r := s; r < t; r++ {
				logAddTo(&c[s][t][left], c[s][r][left]+in[r][t][left])
			}
			for r := s + 1; r <= t; r++ {
				logAddTo(&c[s][t][right], in[s][r][right]+c[r][t][right])
			}
		}
	}

	if !ch.singleRoot {
		ch.logZ = c[0][n][right]
		return
	}
	ch.logZ = math.Inf(-1)
	for j := 1; j <= n; j++ {
		logAddTo(&ch.logZ, ch.rootScore(j))
	}
}

// rootScore is the inside score of every tree whose only root is j.
func (ch *eisnerChart) rootScore(j int) float64 {
	return ch.w[0][j] + ch.c[1][j][left] + ch.c[j][ch.n][right]
}

func (ch *eisnerChart) outside() {
	n, w := ch.n, ch.w
	ch.oc = newSpanTable(n)
	ch.oi = newSpanTable(n)
	c, in, oc, oi := ch.c, ch.i, ch.oc, ch.oi

	if ch.singleRoot {
		for j := 1; j <= n; j++ {
			logAddTo(&oc[1][j][left], w[0][j]+c[j][n][right])
			logAddTo(&oc[j][n][right], w[0][j]+c[1][j][left])
		}
	} else {
		oc[0][n][right] = 0
	}

	for width := n; width >= 1; width-- {
		for s := 0; s+width <= n; s++ {
			t := s + width

			for r := s + 1; r <= t; r++ {
				logAddTo(&oi[s][r][right], oc[s][t][right]+c[r][t][right])
				logAddTo(&oc[r][t][right], oc[s][t][right]+in[s][r][right])
			}
			for r := s; r < t; r++ {
				logAddTo(&oc[s][r][left], oc[s][t][left]+in[r][t][left])
				logAddTo(&oi[r][t][left], oc[s][t][left]+c[s][r][left])
			}
			for r := s; r < t; r++ {
				if s > 0 {
					o := oi[s][t][left] + w[t][s]
					logAddTo(&oc[s][r][right], o+c[r+1][t][left])
					logAddTo(&oc[r+1][t][left], o+c[s][r][right])
				}
				o := oi[s][t][right] + w[s][t]
				logAddTo(&oc[s][r][right], o+c[r+1][t][left])
				logAddTo(&oc[r+1][t][left], o+c[s][r][right])
			}
		}
	}
}

// arcLogMarginal returns log P(h heads m) for chart positions h and m.
func (ch *eisnerChart) arcLogMarginal(h, m int) float64 {
	if math.IsInf(ch.logZ, -1) {
		return math.Inf(-1)
	}
	if h == 0 && ch.singleRoot {
		return ch.rootScore(m) - ch.logZ
	}
	if h < m {
		return ch.i[h][m][right] + ch.oi[h][m][right] - ch.logZ
	}
	return ch.i[m][h][left] + ch.oi[m][h][left] - ch.logZ
}
