package feature

import "fmt"

// Alphabet maps between string feature names and integer indices.
type Alphabet struct {
	ToID   map[string]int `json:"to_id" cbor:"to_id"`
	ToStr  []string       `json:"to_str" cbor:"to_str"`
	frozen bool
}

// NewAlphabet creates an empty alphabet.
func NewAlphabet() *Alphabet {
	return &Alphabet{
		ToID: make(map[string]int),
	}
}

// Add adds a name if not already present and returns its index. A frozen
// alphabet returns -1 for unseen names.
func (a *Alphabet) Add(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	if a.frozen {
		return -1
	}
	if a.ToID == nil {
		a.ToID = make(map[string]int)
	}
	id := len(a.ToStr)
	a.ToID[s] = id
	a.ToStr = append(a.ToStr, s)
	return id
}

// Get returns the index for a name, or -1 if not found.
func (a *Alphabet) Get(s string) int {
	if id, ok := a.ToID[s]; ok {
		return id
	}
	return -1
}

// Lookup returns the name at index id.
func (a *Alphabet) Lookup(id int) (string, error) {
	if id < 0 || id >= len(a.ToStr) {
		return "", fmt.Errorf("feature: index %d out of range [0,%d)", id, len(a.ToStr))
	}
	return a.ToStr[id], nil
}

// Size returns the number of entries.
func (a *Alphabet) Size() int {
	return len(a.ToStr)
}

// Freeze stops the alphabet from growing; Add then behaves like Get.
func (a *Alphabet) Freeze() {
	a.frozen = true
}

// Vectorize converts named feature values into a sparse vector, adding
// unseen names unless the alphabet is frozen.
func (a *Alphabet) Vectorize(attrs map[string]float64) Vector {
	var v Vector
	for name, val := range attrs {
		if id := a.Add(name); id >= 0 {
			v.Add(id, val)
		}
	}
	return v.Sorted()
}
