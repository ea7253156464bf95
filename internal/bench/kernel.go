package bench

import (
	"github.com/23skdu/tritbench/internal/kernels"
	"github.com/23skdu/tritbench/internal/ternary"
)

// Kernel is one benchmarkable matrix-vector product bound to its buffers.
// Run writes the full output vector on every call.
type Kernel interface {
	Name() string
	Run()
	// MemoryBytes is the analytical weight footprint, not a measurement.
	MemoryBytes() int64
	Output() []float32
}

const (
	NameUnpacked = "8-bit"
	NamePacked   = "2-bit packed"
)

type unpackedKernel struct {
	mat    []int8
	input  []float32
	output []float32
	rows   int
	cols   int
	bytes  int64
}

// Unpacked binds the one-byte-per-weight kernel to m, input and output.
func Unpacked(m ternary.Matrix, input, output []float32) Kernel {
	return &unpackedKernel{mat: m.Data, input: input, output: output, rows: m.Rows, cols: m.Cols, bytes: m.Bytes()}
}

func (k *unpackedKernel) Name() string       { return NameUnpacked }
func (k *unpackedKernel) MemoryBytes() int64 { return k.bytes }
func (k *unpackedKernel) Output() []float32  { return k.output }

func (k *unpackedKernel) Run() {
	kernels.MatVecUnpacked(k.output, k.mat, k.input, k.rows, k.cols)
}

type packedKernel struct {
	packed []byte
	input  []float32
	output []float32
	rows   int
	cols   int
	bytes  int64
}

// Packed binds the 2-bit kernel to p, input and output.
func Packed(p ternary.PackedMatrix, input, output []float32) Kernel {
	return &packedKernel{packed: p.Data, input: input, output: output, rows: p.Rows, cols: p.Cols, bytes: p.Bytes()}
}

func (k *packedKernel) Name() string       { return NamePacked }
func (k *packedKernel) MemoryBytes() int64 { return k.bytes }
func (k *packedKernel) Output() []float32  { return k.output }

func (k *packedKernel) Run() {
	kernels.MatVecPacked(k.output, k.packed, k.input, k.rows, k.cols)
}
