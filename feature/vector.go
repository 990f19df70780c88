// Package feature holds the sparse feature vectors and weight models that
// parametric factors score configurations with.
package feature

import "sort"

// Vector is a sparse float64 vector keyed by feature index.
type Vector struct {
	Indices []int
	Values  []float64
}

// NewVector builds a vector from parallel index/value slices.
func NewVector(indices []int, values []float64) Vector {
	v := Vector{}
	for i, idx := range indices {
		v.Add(idx, values[i])
	}
	return v
}

// Add accumulates val into the entry for idx.
func (v *Vector) Add(idx int, val float64) {
	for i, existing := range v.Indices {
		if existing == idx {
			v.Values[i] += val
			return
		}
	}
	v.Indices = append(v.Indices, idx)
	v.Values = append(v.Values, val)
}

// Set overwrites the entry for idx.
func (v *Vector) Set(idx int, val float64) {
	for i, existing := range v.Indices {
		if existing == idx {
			v.Values[i] = val
			return
		}
	}
	v.Indices = append(v.Indices, idx)
	v.Values = append(v.Values, val)
}

// Get returns the value at idx, or 0.
func (v Vector) Get(idx int) float64 {
	var s float64
	for i, existing := range v.Indices {
		if existing == idx {
			s += v.Values[i]
		}
	}
	return s
}

// Dot computes the dot product with a dense vector. Indices past the end of
// dense contribute nothing.
func (v Vector) Dot(dense []float64) float64 {
	var sum float64
	for i, idx := range v.Indices {
		if idx >= 0 && idx < len(dense) {
			sum += v.Values[i] * dense[idx]
		}
	}
	return sum
}

// AddTo adds multiplier*v into dense.
func (v Vector) AddTo(dense []float64, multiplier float64) {
	for i, idx := range v.Indices {
		if idx >= 0 && idx < len(dense) {
			dense[idx] += multiplier * v.Values[i]
		}
	}
}

// MaxIndex returns the largest index present, or -1 for an empty vector.
func (v Vector) MaxIndex() int {
	m := -1
	for _, idx := range v.Indices {
		m = max(m, idx)
	}
	return m
}

// Nnz returns the number of stored entries.
func (v Vector) Nnz() int {
	return len(v.Indices)
}

// Sorted returns a copy with indices in increasing order.
func (v Vector) Sorted() Vector {
	order := make([]int, len(v.Indices))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return v.Indices[order[a]] < v.Indices[order[b]] })
	out := Vector{
		Indices: make([]int, len(order)),
		Values:  make([]float64, len(order)),
	}
	for i, o := range order {
		out.Indices[i] = v.Indices[o]
		out.Values[i] = v.Values[o]
	}
	return out
}

// Offset returns a copy with every index shifted by off.
func (v Vector) Offset(off int) Vector {
	out := Vector{
		Indices: make([]int, len(v.Indices)),
		Values:  make([]float64, len(v.Values)),
	}
	for i, idx := range v.Indices {
		out.Indices[i] = idx + off
	}
	copy(out.Values, v.Values)
	return out
}
