package ndimage

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// spectrum2D is the half-plane 2-D spectrum of a real grid: rows x (cols/2+1).
type spectrum2D struct {
	rows, bins int
	data       []complex128
}

func forward2D(data []float64, rows, cols int) spectrum2D {
	rowFFT := fourier.NewFFT(cols)
	bins := cols/2 + 1
	spec := spectrum2D{rows: rows, bins: bins, data: make([]complex128, rows*bins)}
	coeff := make([]complex128, bins)
	for y := 0; y < rows; y++ {
		rowFFT.Coefficients(coeff, data[y*cols:(y+1)*cols])
		copy(spec.data[y*bins:(y+1)*bins], coeff)
	}

	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	res := make([]complex128, rows)
	for k := 0; k < bins; k++ {
		for y := 0; y < rows; y++ {
			col[y] = spec.data[y*bins+k]
		}
		colFFT.Coefficients(res, col)
		for y := 0; y < rows; y++ {
			spec.data[y*bins+k] = res[y]
		}
	}
	return spec
}

func inverse2D(spec spectrum2D, cols int) []float64 {
	rows, bins := spec.rows, spec.bins
	colFFT := fourier.NewCmplxFFT(rows)
	col := make([]complex128, rows)
	res := make([]complex128, rows)
	for k := 0; k < bins; k++ {
		for y := 0; y < rows; y++ {
			col[y] = spec.data[y*bins+k]
		}
		colFFT.Sequence(res, col)
		for y := 0; y < rows; y++ {
			spec.data[y*bins+k] = res[y]
		}
	}

	rowFFT := fourier.NewFFT(cols)
	out := make([]float64, rows*cols)
	norm := 1 / float64(rows*cols)
	for y := 0; y < rows; y++ {
		seq := rowFFT.Sequence(out[y*cols:(y+1)*cols], spec.data[y*bins:(y+1)*bins])
		for x := range seq {
			seq[x] *= norm
		}
	}
	return out
}

// CircularConvolve returns the periodic convolution of two equally shaped
// grids, computed in the frequency domain.
func CircularConvolve(a, b []float64, rows, cols int) ([]float64, error) {
	if len(a) != rows*cols || len(b) != rows*cols {
		return nil, fmt.Errorf("convolve: operands must both be %dx%d", rows, cols)
	}
	fa := forward2D(a, rows, cols)
	fb := forward2D(b, rows, cols)
	for i := range fa.data {
		fa.data[i] *= fb.data[i]
	}
	return inverse2D(fa, cols), nil
}
