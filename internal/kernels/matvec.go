package kernels

import "math"

// MatVecUnpacked computes dst = mat * input where mat is row-major
// [rows][cols] with one int8 weight in {-1, 0, +1} per element. Zero weights
// skip the multiply-add.
func MatVecUnpacked(dst []float32, mat []int8, input []float32, rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	if len(dst) < rows || len(input) < cols || len(mat) < rows*cols {
		return
	}
	input = input[:cols]
	for r := 0; r < rows; r++ {
		var sum float32
		row := mat[r*cols : (r+1)*cols]
		for c, w := range row {
			if w != 0 {
				sum += float32(w) * input[c]
			}
		}
		dst[r] = sum
	}
}

// MatVecPacked computes dst = mat * input where mat is row-major with
// ceil(cols/4) bytes per row, four 2-bit weights per byte (00=0, 01=+1,
// 10=-1, field i at bit 2*i). Weights are decoded on the fly; padding
// fields past cols are never read.
func MatVecPacked(dst []float32, packed []byte, input []float32, rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	stride := (cols + 3) / 4
	if len(dst) < rows || len(input) < cols || len(packed) < rows*stride {
		return
	}
	for r := 0; r < rows; r++ {
		var sum float32
		row := packed[r*stride : (r+1)*stride]
		for i, b := range row {
			base := i * 4
			for j := 0; j < 4; j++ {
				c := base + j
				if c >= cols {
					break
				}
				w := unpackTrit(b, j)
				if w != 0 {
					sum += float32(w) * input[c]
				}
			}
		}
		dst[r] = sum
	}
}

func unpackTrit(b byte, idx int) int8 {
	switch (b >> (2 * uint(idx))) & 0x3 {
	case 1:
		return 1
	case 2:
		return -1
	default:
		return 0
	}
}

// MaxRelativeError returns the largest |a[i]-b[i]| / max(|a[i]|, |b[i]|)
// over the common prefix. Pairs where both values are zero contribute 0.
func MaxRelativeError(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var worst float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		diff := math.Abs(x - y)
		if diff == 0 {
			continue
		}
		den := math.Max(math.Abs(x), math.Abs(y))
		rel := diff / den
		if rel > worst {
			worst = rel
		}
	}
	return worst
}
