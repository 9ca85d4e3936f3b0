// Package ndimage implements the small set of 2-D image filters the scene
// classifier needs. Grids are row-major slices with explicit row and column
// counts.
package ndimage

import "slices"

// reflect maps an out-of-range index back into [0, n) by mirroring about the
// edge, repeating the edge sample (d c b a | a b c d).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// Median applies a size x size median filter with reflected borders.
// size must be a positive odd integer.
func Median(data []float32, rows, cols, size int) []float32 {
	if size < 1 || size%2 == 0 {
		panic("size must be positive odd integer")
	}
	out := make([]float32, len(data))
	if len(data) == 0 {
		return out
	}
	if size == 1 {
		copy(out, data)
		return out
	}

	half := size / 2
	window := make([]float32, size*size)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			k := 0
			for dy := -half; dy <= half; dy++ {
				row := reflect(y+dy, rows) * cols
				for dx := -half; dx <= half; dx++ {
					window[k] = data[row+reflect(x+dx, cols)]
					k++
				}
			}
			slices.Sort(window)
			out[y*cols+x] = window[len(window)/2]
		}
	}
	return out
}

// MedianUint8 is Median for class masks.
func MedianUint8(data []uint8, rows, cols, size int) []uint8 {
	f := make([]float32, len(data))
	for i, v := range data {
		f[i] = float32(v)
	}
	m := Median(f, rows, cols, size)
	out := make([]uint8, len(m))
	for i, v := range m {
		out[i] = uint8(v)
	}
	return out
}
