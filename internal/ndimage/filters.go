package ndimage

import "math"

// Gaussian smooths the grid with a separable gaussian of the given sigma. The
// kernel is truncated at four sigma and borders are reflected.
func Gaussian(data []float32, rows, cols int, sigma float64) []float32 {
	if sigma <= 0 {
		out := make([]float32, len(data))
		copy(out, data)
		return out
	}
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	tmp := make([]float64, len(data))
	for y := 0; y < rows; y++ {
		row := y * cols
		for x := 0; x < cols; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * float64(data[row+reflect(x+k, cols)])
			}
			tmp[row+x] = acc
		}
	}
	out := make([]float32, len(data))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * tmp[reflect(y+k, rows)*cols+x]
			}
			out[y*cols+x] = float32(acc)
		}
	}
	return out
}

// Roll shifts the grid circularly by dy rows and dx columns.
func Roll(data []float64, rows, cols, dy, dx int) []float64 {
	out := make([]float64, len(data))
	dy = ((dy % rows) + rows) % rows
	dx = ((dx % cols) + cols) % cols
	for y := 0; y < rows; y++ {
		yy := (y + dy) % rows
		for x := 0; x < cols; x++ {
			out[yy*cols+(x+dx)%cols] = data[y*cols+x]
		}
	}
	return out
}

// Rotate turns the grid by angle degrees about its centre using
// nearest-neighbour sampling. The output keeps the input shape and samples
// falling outside the input are 0.
func Rotate(data []float64, rows, cols int, angle float64) []float64 {
	rad := angle * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	cy := float64(rows-1) / 2
	cx := float64(cols-1) / 2
	out := make([]float64, len(data))
	for y := 0; y < rows; y++ {
		oy := float64(y) - cy
		for x := 0; x < cols; x++ {
			ox := float64(x) - cx
			iy := math.Round(c*oy + s*ox + cy)
			ix := math.Round(-s*oy + c*ox + cx)
			if iy < 0 || ix < 0 || iy > float64(rows-1) || ix > float64(cols-1) {
				continue
			}
			out[y*cols+x] = data[int(iy)*cols+int(ix)]
		}
	}
	return out
}

// Zoom1D resamples a sequence by factor with linear interpolation, aligning
// the first and last samples. The output length is round(len*factor).
func Zoom1D(data []float64, factor float64) []float64 {
	n := len(data)
	m := int(math.Round(float64(n) * factor))
	if n == 0 || m <= 0 {
		return nil
	}
	out := make([]float64, m)
	if n == 1 || m == 1 {
		for i := range out {
			out[i] = data[0]
		}
		return out
	}
	step := float64(n-1) / float64(m-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= n-1 {
			out[i] = data[n-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = data[lo]*(1-frac) + data[lo+1]*frac
	}
	return out
}
