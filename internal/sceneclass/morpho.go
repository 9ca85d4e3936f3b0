package sceneclass

import (
	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

// fineMorpho labels the connected components of mask and drops every
// component whose one-pixel outer ring is more than threshold percent cloud.
// The surviving labels are returned; 0 marks background and dropped pixels.
func fineMorpho(mask []bool, cm []types.Class, rows, cols int, threshold float64) []int32 {
	labels, n := ndimage.Label(mask, rows, cols)
	if n == 0 {
		return labels
	}
	dilated := ndimage.GreyDilation(labels, rows, cols, 3)
	ring := make([]int, n+1)
	cloudy := make([]int, n+1)
	for i, l := range labels {
		if l != 0 || dilated[i] == 0 {
			continue
		}
		ring[dilated[i]]++
		if cm[i].IsCloud() {
			cloudy[dilated[i]]++
		}
	}
	drop := make([]bool, n+1)
	for l := 1; l <= n; l++ {
		if ring[l] > 0 && percentOf(cloudy[l], ring[l]) > threshold {
			drop[l] = true
		}
	}
	for i, l := range labels {
		if drop[l] {
			labels[i] = 0
		}
	}
	return labels
}
