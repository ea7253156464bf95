package kernels

import (
	"math"
	"testing"

	"github.com/23skdu/tritbench/internal/ternary"
)

func TestMatVecUnpacked(t *testing.T) {
	// matrix:
	// [ 1 0 -1]
	// [-1 1  1]
	mat := []int8{
		1, 0, -1,
		-1, 1, 1,
	}
	vec := []float32{2, -1, 0.5}
	dst := make([]float32, 2)
	MatVecUnpacked(dst, mat, vec, 2, 3)

	if dst[0] != 1.5 {
		t.Fatalf("dst[0] = %f, want 1.5", dst[0])
	}
	if dst[1] != -2.5 {
		t.Fatalf("dst[1] = %f, want -2.5", dst[1])
	}
}

func TestMatVecPacked(t *testing.T) {
	mat := []int8{
		1, 0, -1,
		-1, 1, 1,
	}
	packed := make([]byte, ternary.PackedSize(2, 3))
	if err := ternary.Pack(packed, mat, 2, 3); err != nil {
		t.Fatal(err)
	}
	vec := []float32{2, -1, 0.5}
	dst := make([]float32, 2)
	MatVecPacked(dst, packed, vec, 2, 3)

	if dst[0] != 1.5 {
		t.Fatalf("dst[0] = %f, want 1.5", dst[0])
	}
	if dst[1] != -2.5 {
		t.Fatalf("dst[1] = %f, want -2.5", dst[1])
	}
}

func TestOutputOverwritten(t *testing.T) {
	mat := []int8{1, 1, 1, 1}
	packed := make([]byte, ternary.PackedSize(1, 4))
	if err := ternary.Pack(packed, mat, 1, 4); err != nil {
		t.Fatal(err)
	}
	vec := []float32{1, 1, 1, 1}

	dst := []float32{100}
	MatVecUnpacked(dst, mat, vec, 1, 4)
	MatVecUnpacked(dst, mat, vec, 1, 4)
	if dst[0] != 4 {
		t.Errorf("unpacked: dst[0] = %v after two calls, want 4", dst[0])
	}

	dst[0] = 100
	MatVecPacked(dst, packed, vec, 1, 4)
	MatVecPacked(dst, packed, vec, 1, 4)
	if dst[0] != 4 {
		t.Errorf("packed: dst[0] = %v after two calls, want 4", dst[0])
	}
}

func TestKernelsAgree(t *testing.T) {
	shapes := []struct {
		rows, cols int
		sparsity   float32
	}{
		{1, 1, 0.5},
		{3, 5, 0.5},
		{17, 31, 0.2},
		{64, 256, 0.5},
		{128, 4096, 0.5},
		{9, 1023, 0.9},
	}
	for _, s := range shapes {
		rng := ternary.NewSource(uint64(s.rows + s.cols))
		m, err := ternary.Generate(rng, s.rows, s.cols, s.sparsity)
		if err != nil {
			t.Fatal(err)
		}
		p, err := ternary.PackMatrix(m)
		if err != nil {
			t.Fatal(err)
		}
		in := ternary.GenerateInput(rng, s.cols)

		a := make([]float32, s.rows)
		b := make([]float32, s.rows)
		MatVecUnpacked(a, m.Data, in, s.rows, s.cols)
		MatVecPacked(b, p.Data, in, s.rows, s.cols)

		if rel := MaxRelativeError(a, b); rel >= 1e-5 {
			t.Errorf("%dx%d: max relative error %g", s.rows, s.cols, rel)
		}
	}
}

func TestSingleColumnScenario(t *testing.T) {
	rng := ternary.NewSource(42)
	m, err := ternary.Generate(rng, 4, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range m.Data {
		if w != 1 && w != -1 {
			t.Fatalf("cell %d = %d, want ±1", i, w)
		}
	}
	p, err := ternary.PackMatrix(m)
	if err != nil {
		t.Fatal(err)
	}
	if p.Stride != 2 {
		t.Fatalf("stride = %d, want 2", p.Stride)
	}

	in := []float32{1, 0, 0, 0, 0}
	a := make([]float32, 4)
	b := make([]float32, 4)
	MatVecUnpacked(a, m.Data, in, 4, 5)
	MatVecPacked(b, p.Data, in, 4, 5)

	for r := 0; r < 4; r++ {
		want := float32(m.At(r, 0))
		if a[r] != want {
			t.Errorf("unpacked out[%d] = %v, want %v", r, a[r], want)
		}
		if b[r] != want {
			t.Errorf("packed out[%d] = %v, want %v", r, b[r], want)
		}
	}
}

func TestAllZeroMatrix(t *testing.T) {
	const rows, cols = 6, 10
	m, err := ternary.Generate(ternary.NewSource(9), rows, cols, 1)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ternary.PackMatrix(m)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]float32, cols)
	for i := range in {
		in[i] = float32(i) * 1000
	}
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{1, 2, 3, 4, 5, 6}
	MatVecUnpacked(a, m.Data, in, rows, cols)
	MatVecPacked(b, p.Data, in, rows, cols)
	for r := 0; r < rows; r++ {
		if a[r] != 0 || b[r] != 0 {
			t.Errorf("row %d: unpacked=%v packed=%v, want 0", r, a[r], b[r])
		}
	}
}

func TestPackedIgnoresPadding(t *testing.T) {
	mat := []int8{1, -1, 1, -1, 1}
	packed := make([]byte, 2)
	if err := ternary.Pack(packed, mat, 1, 5); err != nil {
		t.Fatal(err)
	}
	// Fill the three padding fields with +1 patterns.
	packed[1] |= 0b01010100
	in := []float32{1, 1, 1, 1, 1, 100, 100, 100}

	dst := make([]float32, 1)
	MatVecPacked(dst, packed, in, 1, 5)
	if dst[0] != 1 {
		t.Errorf("dst[0] = %v, want 1", dst[0])
	}
}

func TestShortBuffersAreNoOps(t *testing.T) {
	dst := []float32{7}
	MatVecUnpacked(dst, []int8{1}, []float32{1}, 1, 2)
	MatVecPacked(dst, []byte{}, []float32{1}, 1, 1)
	MatVecUnpacked(dst, []int8{1}, []float32{1}, 0, 1)
	if dst[0] != 7 {
		t.Errorf("dst modified on invalid call: %v", dst[0])
	}
}

func TestMaxRelativeError(t *testing.T) {
	if got := MaxRelativeError([]float32{1, 0, -2}, []float32{1, 0, -2}); got != 0 {
		t.Errorf("identical slices: %g, want 0", got)
	}
	got := MaxRelativeError([]float32{1, 2}, []float32{1, 2.2})
	if math.Abs(got-0.2/2.2) > 1e-6 {
		t.Errorf("got %g, want %g", got, 0.2/2.2)
	}
	if got := MaxRelativeError([]float32{0}, []float32{1e-3}); got != 1 {
		t.Errorf("zero vs non-zero: %g, want 1", got)
	}
}
