// Package types holds the closed vocabularies shared by the band store and the
// scene classifier: band identifiers, the resolution ladder, element types and
// the classification taxonomy.
package types

import "fmt"

// BandID identifies one of the fixed product channels. The numeric value is the
// channel's position in the product band table.
type BandID int

const (
	B01 BandID = iota
	B02
	B03
	B04
	B05
	B06
	B07
	B08
	B8A
	B09
	B10
	B11
	B12
	DEM
	SCL
	SNW
	CLD
	AOT
	WVP
	VIS
	SCM
	PRV
	ILU
	SLP
	ASP
	HAZ
	SDW
	DDV
	HCW
	ELE
	PWC
	MSL
	OZO
	TCI
	WBI
	LCM
	SNC

	// NumBands is the size of the band table.
	NumBands int = iota
)

var bandNames = [NumBands]string{
	"B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B09", "B10", "B11", "B12",
	"DEM", "SCL", "SNW", "CLD", "AOT", "WVP", "VIS", "SCM", "PRV", "ILU", "SLP", "ASP", "HAZ",
	"SDW", "DDV", "HCW", "ELE", "PWC", "MSL", "OZO", "TCI", "WBI", "LCM", "SNC",
}

// String returns the channel name, e.g. "B8A".
func (b BandID) String() string {
	if !b.Valid() {
		return fmt.Sprintf("BandID(%d)", int(b))
	}
	return bandNames[b]
}

// Valid reports whether b is inside the band table.
func (b BandID) Valid() bool {
	return b >= 0 && int(b) < NumBands
}

// IsReflectance reports whether b is one of the 13 top-of-atmosphere channels.
// Reflectance channels are held as digital numbers and scaled on read.
func (b BandID) IsReflectance() bool {
	return b >= B01 && b <= B12
}

// ParseBandID maps a channel name back to its identifier.
func ParseBandID(name string) (BandID, error) {
	for i, n := range bandNames {
		if n == name {
			return BandID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown band name %q", name)
}

// AllBands returns every identifier in table order.
func AllBands() []BandID {
	out := make([]BandID, NumBands)
	for i := range out {
		out[i] = BandID(i)
	}
	return out
}

// Interpolation is the resize order used when a band is upsampled.
type Interpolation int

const (
	Nearest  Interpolation = 0
	Bilinear Interpolation = 1
	Bicubic  Interpolation = 3
)

// IsCategorical reports whether the band holds codes rather than measurements.
// Categorical bands are never averaged.
func (b BandID) IsCategorical() bool {
	switch b {
	case SCL, AOT, WVP, VIS, WBI, LCM, SNC:
		return true
	}
	return false
}

// Interpolation returns the upsampling order for the band.
func (b BandID) Interpolation() Interpolation {
	switch {
	case b.IsCategorical():
		return Nearest
	case b == B09 || b == B10:
		return Bilinear
	}
	return Bicubic
}

// NativeResolution is the grid spacing a reflectance channel is delivered at.
// Derived channels report 0.
func (b BandID) NativeResolution() Resolution {
	switch b {
	case B02, B03, B04, B08:
		return R10
	case B05, B06, B07, B8A, B11, B12:
		return R20
	case B01, B09, B10:
		return R60
	}
	return 0
}

var (
	bands10 = []BandID{B02, B03, B04, B08}
	bands20 = []BandID{B01, B02, B03, B04, B05, B06, B07, B8A, B09, B10, B11, B12}
)

// ReflectanceBands returns the reflectance channels processed at res.
func ReflectanceBands(res Resolution) []BandID {
	if res == R10 {
		return append([]BandID(nil), bands10...)
	}
	return append([]BandID(nil), bands20...)
}
