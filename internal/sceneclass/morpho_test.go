package sceneclass

import (
	"math"
	"testing"

	"github.com/chrissnell/remotesensing/internal/types"
)

func TestFineMorpho(t *testing.T) {
	const rows, cols = 7, 9
	cm := make([]types.Class, rows*cols)
	for i := range cm {
		cm[i] = types.Vegetation
	}
	mask := make([]bool, rows*cols)
	// a 3x3 blob at the left wrapped in medium probability cloud and a 3x3
	// blob at the right in open vegetation
	for y := 2; y <= 4; y++ {
		for x := 1; x <= 3; x++ {
			mask[y*cols+x] = true
		}
		for x := 6; x <= 8; x++ {
			mask[y*cols+x] = true
		}
	}
	for y := 1; y <= 5; y++ {
		for x := 0; x <= 4; x++ {
			if !mask[y*cols+x] {
				cm[y*cols+x] = types.CloudMediumProba
			}
		}
	}

	labels := fineMorpho(mask, cm, rows, cols, urbanRingThreshold)
	if labels[3*cols+2] != 0 {
		t.Errorf("cloud-surrounded blob kept with label %d", labels[3*cols+2])
	}
	if labels[3*cols+7] == 0 {
		t.Errorf("clear blob dropped")
	}
	for i, l := range labels {
		if l != 0 && !mask[i] {
			t.Errorf("label %d outside mask at %d", l, i)
		}
	}
}

func TestFineMorphoEmpty(t *testing.T) {
	labels := fineMorpho(make([]bool, 4), make([]types.Class, 4), 2, 2, 35)
	for _, l := range labels {
		if l != 0 {
			t.Fatal("labels on an empty mask")
		}
	}
}

func TestStatsHelpers(t *testing.T) {
	m, s := meanStd([]float64{1, 2, 3, 4})
	if math.Abs(m-2.5) > 1e-12 || math.Abs(s-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("meanStd = %v, %v", m, s)
	}
	if m, _ := meanStd(nil); !math.IsNaN(m) {
		t.Errorf("mean of empty sample = %v", m)
	}
	if got := nanMin(math.NaN(), 3, 1.5); got != 1.5 {
		t.Errorf("nanMin = %v", got)
	}
	if got := nanMin(math.NaN()); !math.IsNaN(got) {
		t.Errorf("nanMin of NaN = %v", got)
	}
	if got := percentOf(1, 4); got != 25 {
		t.Errorf("percentOf = %v", got)
	}
}
