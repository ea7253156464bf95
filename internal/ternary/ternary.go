// Package ternary holds the two storage layouts of a {-1, 0, +1} weight
// matrix and the routines that generate and convert between them.
//
// Both layouts are flat row-major slices addressed with explicit stride
// arithmetic. The unpacked layout stores one int8 per weight. The packed
// layout stores four weights per byte, two bits each, with column c of a
// row at bit offset 2*(c%4) of byte c/4.
package ternary

import "errors"

const TritsPerByte = 4

var (
	ErrInvalidShape    = errors.New("ternary: rows and cols must be positive")
	ErrInvalidSparsity = errors.New("ternary: sparsity must be in [0, 1]")
	ErrShortBuffer     = errors.New("ternary: buffer too small for shape")
)

// Matrix is the one-byte-per-weight layout.
type Matrix struct {
	Data []int8
	Rows int
	Cols int
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Data: make([]int8, rows*cols), Rows: rows, Cols: cols}
}

func (m Matrix) At(r, c int) int8 {
	return m.Data[r*m.Cols+c]
}

func (m Matrix) Row(r int) []int8 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// Bytes is the analytical footprint of the weights.
func (m Matrix) Bytes() int64 {
	return int64(m.Rows) * int64(m.Cols)
}

// Zeros counts cells equal to 0.
func (m Matrix) Zeros() int {
	n := 0
	for _, w := range m.Data[:m.Rows*m.Cols] {
		if w == 0 {
			n++
		}
	}
	return n
}

// PackedMatrix is the 2-bit layout. Stride is the padded row width in
// bytes; Cols is the true column count.
type PackedMatrix struct {
	Data   []byte
	Rows   int
	Cols   int
	Stride int
}

func (p PackedMatrix) Row(r int) []byte {
	return p.Data[r*p.Stride : (r+1)*p.Stride]
}

func (p PackedMatrix) At(r, c int) int8 {
	return Unpack(p.Row(r), c, p.Cols)
}

func (p PackedMatrix) Bytes() int64 {
	return int64(p.Rows) * int64(p.Stride)
}

// PackedStride returns ceil(cols/4), the bytes one packed row occupies.
func PackedStride(cols int) int {
	return (cols + TritsPerByte - 1) / TritsPerByte
}

// PackedSize returns rows*ceil(cols/4).
func PackedSize(rows, cols int) int {
	return rows * PackedStride(cols)
}
