package ternary

import (
	"math/rand/v2"
)

// NewSource returns the seeded generator shared by matrix and input
// generation. PCG output is fixed by its algorithm, so a seed reproduces
// the same workload on every Go release.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Generate draws a rows x cols matrix where each cell is 0 with
// probability sparsity and +1 or -1 with probability (1-sparsity)/2 each.
func Generate(rng *rand.Rand, rows, cols int, sparsity float32) (Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return Matrix{}, ErrInvalidShape
	}
	m := NewMatrix(rows, cols)
	if err := GenerateInto(m.Data, rng, rows, cols, sparsity); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// GenerateInto fills dst[:rows*cols] in row-major order.
func GenerateInto(dst []int8, rng *rand.Rand, rows, cols int, sparsity float32) error {
	if rows <= 0 || cols <= 0 {
		return ErrInvalidShape
	}
	if !(sparsity >= 0 && sparsity <= 1) {
		return ErrInvalidSparsity
	}
	n := rows * cols
	if len(dst) < n {
		return ErrShortBuffer
	}

	plusBelow := sparsity + (1-sparsity)/2
	for i := range dst[:n] {
		u := rng.Float32()
		switch {
		case u < sparsity:
			dst[i] = 0
		case u < plusBelow:
			dst[i] = 1
		default:
			dst[i] = -1
		}
	}
	return nil
}

// GenerateInput returns n values uniformly distributed in [-1, 1).
func GenerateInput(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	GenerateInputInto(v, rng)
	return v
}

func GenerateInputInto(dst []float32, rng *rand.Rand) {
	for i := range dst {
		dst[i] = rng.Float32()*2 - 1
	}
}
