package types

import "fmt"

// Resolution is a grid spacing in metres.
type Resolution int

const (
	R10 Resolution = 10
	R20 Resolution = 20
	R60 Resolution = 60
)

// Ladder lists the supported resolutions, finest first.
var Ladder = []Resolution{R10, R20, R60}

// Valid reports whether r is on the ladder.
func (r Resolution) Valid() bool {
	return r == R10 || r == R20 || r == R60
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dm", int(r))
}

// ParseResolution accepts 10, 20 or 60.
func ParseResolution(v int) (Resolution, error) {
	r := Resolution(v)
	if !r.Valid() {
		return 0, fmt.Errorf("resolution %d is not one of 10, 20, 60", v)
	}
	return r, nil
}

// TileSize returns the number of pixels per side of a full tile at r.
func (r Resolution) TileSize() int {
	switch r {
	case R10:
		return 10980
	case R20:
		return 5490
	case R60:
		return 1830
	}
	return 0
}

// TestWindow returns the side of the window imports are truncated to in test
// mode.
func (r Resolution) TestWindow() int {
	switch r {
	case R10:
		return 1098
	case R20:
		return 549
	case R60:
		return 183
	}
	return 0
}

// Extent returns the per-side pixel count used for r.
func (r Resolution) Extent(testMode bool) int {
	if testMode {
		return r.TestWindow()
	}
	return r.TileSize()
}

// BlockFactor returns the integer factor between a finer and a coarser ladder
// step. ok is false when rows do not divide into one of 2, 3 or 6.
func BlockFactor(srcRows, dstRows int) (factor int, ok bool) {
	if dstRows <= 0 || srcRows <= dstRows || srcRows%dstRows != 0 {
		return 0, false
	}
	factor = srcRows / dstRows
	switch factor {
	case 2, 3, 6:
		return factor, true
	}
	return 0, false
}

// ResolutionForRows guesses the ladder step from a raster side length. It
// recognises both full tiles and test-mode windows.
func ResolutionForRows(rows int) (Resolution, bool) {
	for _, r := range Ladder {
		if rows == r.TileSize() || rows == r.TestWindow() {
			return r, true
		}
	}
	return 0, false
}
