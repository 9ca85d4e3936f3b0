package types

// Class is a published scene classification code.
type Class uint8

const (
	NoData             Class = 0
	SaturatedDefective Class = 1
	DarkFeatures       Class = 2
	CloudShadows       Class = 3
	Vegetation         Class = 4
	NotVegetated       Class = 5
	Water              Class = 6
	Unclassified       Class = 7
	CloudMediumProba   Class = 8
	CloudHighProba     Class = 9
	ThinCirrus         Class = 10
	SnowIce            Class = 11

	// LowProbaClouds shares its code with Unclassified.
	LowProbaClouds = Unclassified
)

// Working values used while the mask is still being built. Neither survives
// postprocessing.
const (
	NotClassified Class = 100
	NotSnow       Class = 50
)

// PublishedClasses lists the 12 codes a finished mask may contain, no-data
// included.
var PublishedClasses = []Class{
	NoData, SaturatedDefective, DarkFeatures, CloudShadows, Vegetation, NotVegetated,
	Water, Unclassified, CloudMediumProba, CloudHighProba, ThinCirrus, SnowIce,
}

var classNames = map[Class]string{
	NoData:             "NO_DATA",
	SaturatedDefective: "SATURATED_DEFECTIVE",
	DarkFeatures:       "DARK_FEATURES",
	CloudShadows:       "CLOUD_SHADOWS",
	Vegetation:         "VEGETATION",
	NotVegetated:       "NOT_VEGETATED",
	Water:              "WATER",
	Unclassified:       "UNCLASSIFIED",
	CloudMediumProba:   "CLOUD_MEDIUM_PROBABILITY",
	CloudHighProba:     "CLOUD_HIGH_PROBABILITY",
	ThinCirrus:         "THIN_CIRRUS",
	SnowIce:            "SNOW_ICE",
	NotClassified:      "NOT_CLASSIFIED",
	NotSnow:            "NOT_SNOW",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Published reports whether c may appear in a finished mask.
func (c Class) Published() bool {
	return c <= SnowIce
}

// IsCloud reports whether c counts as cloud or cloud shadow for ring tests.
func (c Class) IsCloud() bool {
	switch c {
	case LowProbaClouds, CloudMediumProba, CloudHighProba, ThinCirrus, CloudShadows:
		return true
	}
	return false
}
