package ndimage

// Structure is a symmetric binary structuring element given as offsets from
// its centre.
type Structure [][2]int

// Cross is the 4-connected 3x3 element.
var Cross = Diamond(1)

// Diamond returns the cross element iterated radius times, i.e. every offset
// with |dy|+|dx| <= radius.
func Diamond(radius int) Structure {
	var s Structure
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if abs(dy)+abs(dx) <= radius {
				s = append(s, [2]int{dy, dx})
			}
		}
	}
	return s
}

// Square returns the full size x size element.
func Square(size int) Structure {
	half := size / 2
	var s Structure
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			s = append(s, [2]int{dy, dx})
		}
	}
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// BinaryDilation dilates mask by s. Pixels outside the grid count as false.
func BinaryDilation(mask []bool, rows, cols int, s Structure) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if !mask[y*cols+x] {
				continue
			}
			for _, o := range s {
				yy, xx := y+o[0], x+o[1]
				if yy < 0 || yy >= rows || xx < 0 || xx >= cols {
					continue
				}
				out[yy*cols+xx] = true
			}
		}
	}
	return out
}

// GreyDilation replaces every label by the maximum over its size x size
// neighbourhood.
func GreyDilation(labels []int32, rows, cols, size int) []int32 {
	half := size / 2
	out := make([]int32, len(labels))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m := labels[y*cols+x]
			for dy := -half; dy <= half; dy++ {
				yy := y + dy
				if yy < 0 || yy >= rows {
					continue
				}
				for dx := -half; dx <= half; dx++ {
					xx := x + dx
					if xx < 0 || xx >= cols {
						continue
					}
					if v := labels[yy*cols+xx]; v > m {
						m = v
					}
				}
			}
			out[y*cols+x] = m
		}
	}
	return out
}

// Label assigns 4-connected components of mask consecutive labels starting at
// 1, in raster order of their first pixel. Background is 0.
func Label(mask []bool, rows, cols int) ([]int32, int) {
	labels := make([]int32, len(mask))
	var next int32
	stack := make([]int, 0, 64)
	for start, set := range mask {
		if !set || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			y, x := p/cols, p%cols
			for _, o := range Cross {
				yy, xx := y+o[0], x+o[1]
				if yy < 0 || yy >= rows || xx < 0 || xx >= cols {
					continue
				}
				q := yy*cols + xx
				if mask[q] && labels[q] == 0 {
					labels[q] = next
					stack = append(stack, q)
				}
			}
		}
	}
	return labels, int(next)
}

// Histogram counts occurrences of each label value 0..max.
func Histogram(labels []int32, max int) []int {
	h := make([]int, max+1)
	for _, v := range labels {
		if v >= 0 && int(v) <= max {
			h[v]++
		}
	}
	return h
}
