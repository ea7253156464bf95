package ternary

// Trit bit patterns. 0b11 is reserved and never produced by Encode.
const (
	bitsZero     byte = 0b00
	bitsPlus     byte = 0b01
	bitsMinus    byte = 0b10
	bitsReserved byte = 0b11

	tritMask byte = 0b11
)

// Encode maps a ternary weight to its 2-bit pattern. Any input other than
// +1 or -1 encodes as zero.
func Encode(w int8) byte {
	switch w {
	case 1:
		return bitsPlus
	case -1:
		return bitsMinus
	default:
		return bitsZero
	}
}

// Decode maps a 2-bit pattern back to a weight. The reserved pattern
// decodes as 0.
func Decode(bits byte) int8 {
	switch bits & tritMask {
	case bitsPlus:
		return 1
	case bitsMinus:
		return -1
	default:
		return 0
	}
}

// Pack writes the 2-bit layout of src (rows x cols, one weight per byte)
// into dst. dst[:rows*PackedStride(cols)] is zeroed first so padding fields
// in the last byte of each row are well defined.
func Pack(dst []byte, src []int8, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return ErrInvalidShape
	}
	stride := PackedStride(cols)
	if len(src) < rows*cols || len(dst) < rows*stride {
		return ErrShortBuffer
	}
	dst = dst[:rows*stride]
	clear(dst)

	for r := 0; r < rows; r++ {
		row := src[r*cols : (r+1)*cols]
		out := dst[r*stride : (r+1)*stride]
		for c, w := range row {
			out[c/TritsPerByte] |= Encode(w) << (2 * uint(c%TritsPerByte))
		}
	}
	return nil
}

// PackMatrix returns an independent packed copy of m.
func PackMatrix(m Matrix) (PackedMatrix, error) {
	p := PackedMatrix{
		Data:   make([]byte, PackedSize(m.Rows, m.Cols)),
		Rows:   m.Rows,
		Cols:   m.Cols,
		Stride: PackedStride(m.Cols),
	}
	if err := Pack(p.Data, m.Data, m.Rows, m.Cols); err != nil {
		return PackedMatrix{}, err
	}
	return p, nil
}

// Unpack decodes column col of a packed row. Columns outside [0, cols)
// read as 0; the bound is the true column count, not the padded width.
func Unpack(row []byte, col, cols int) int8 {
	if col < 0 || col >= cols {
		return 0
	}
	return Decode(row[col/TritsPerByte] >> (2 * uint(col%TritsPerByte)))
}

// UnpackMatrix expands p back to one weight per byte.
func UnpackMatrix(p PackedMatrix) Matrix {
	m := NewMatrix(p.Rows, p.Cols)
	for r := 0; r < p.Rows; r++ {
		row := p.Row(r)
		out := m.Row(r)
		for c := range out {
			out[c] = Unpack(row, c, p.Cols)
		}
	}
	return m
}
