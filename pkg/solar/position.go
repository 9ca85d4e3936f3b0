// Package solar computes the position of the sun for scenes that carry no
// solar angles in their metadata.
package solar

import (
	"math"
	"time"
)

// overpassHour is the mean local solar time of the Sentinel-2 descending node.
const overpassHour = 10.5

// degToRad converts an angle from degrees to radians for trigonometric calculations
func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

// radToDeg converts an angle from radians to degrees for human-readable output
func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle normalizes an angle to the range [0, 360) degrees
func fixAngle(angle float64) float64 {
	return math.Mod(math.Mod(angle, 360)+360, 360)
}

// jdFromTime converts a UTC time to Julian Day
func jdFromTime(t time.Time) float64 {
	return 2440587.5 + float64(t.UnixNano())/86400e9
}

// coordinates returns the solar declination in degrees and the equation of
// time in minutes.
func coordinates(t time.Time) (declination, eqTime float64) {
	T := (jdFromTime(t) - 2451545.0) / 36525.0 // Julian centuries since J2000.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60

	// Equation of center and apparent longitude
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+0.000014*T)) +
		math.Sin(degToRad(2*M))*(0.019993-0.000101*T) +
		math.Sin(degToRad(3*M))*0.000289
	omega := 125.04 - 1934.136*T
	lambda := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))

	declination = radToDeg(math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda))))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTime = radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4
	return declination, eqTime
}

// Position returns the solar zenith angle and the azimuth, clockwise from
// north, in degrees for an observer at latitude and longitude at time t.
func Position(t time.Time, latitude, longitude float64) (zenith, azimuth float64) {
	t = t.UTC()
	decl, eqTime := coordinates(t)

	utcMin := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0
	tst := utcMin + 4*longitude + eqTime // true solar time in minutes
	H := tst/4 - 180                     // hour angle, 0 at solar noon

	latRad := degToRad(latitude)
	declRad := degToRad(decl)
	cosZ := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(degToRad(H))
	cosZ = math.Max(-1, math.Min(1, cosZ))
	zenith = radToDeg(math.Acos(cosZ))

	sinZ := math.Sin(degToRad(zenith))
	if sinZ < 1e-9 || math.Abs(math.Cos(latRad)) < 1e-9 {
		return zenith, 180
	}
	cosA := (math.Sin(declRad) - math.Sin(latRad)*cosZ) / (math.Cos(latRad) * sinZ)
	cosA = math.Max(-1, math.Min(1, cosA))
	azimuth = radToDeg(math.Acos(cosA))
	if math.Sin(degToRad(H)) > 0 {
		azimuth = 360 - azimuth
	}
	return zenith, fixAngle(azimuth)
}

// OverpassTime returns the UTC time of the sun-synchronous overpass on the
// day of date at longitude.
func OverpassTime(date time.Time, longitude float64) time.Time {
	y, m, d := date.UTC().Date()
	hours := overpassHour - longitude/15
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours * float64(time.Hour)))
}
