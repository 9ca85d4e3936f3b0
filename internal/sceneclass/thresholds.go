package sceneclass

// Thresholds are the tunable constants of the classification passes. Each
// T1/T2 pair bounds a linear ramp from 0 to 1.
type Thresholds struct {
	T1B02 float32
	T2B02 float32
	T1B04 float32
	T2B04 float32
	T1B8A float32
	T2B8A float32
	T1B10 float32
	T2B10 float32

	T1NDSICloud float32
	T2NDSICloud float32
	T1NDSISnow  float32
	T2NDSISnow  float32
	T1NDVI      float32
	T2NDVI      float32

	T1RatioB02B04 float32
	T2RatioB02B04 float32
	T1RatioB8AB03 float32
	T2RatioB8AB03 float32
	T1RatioB8AB11 float32
	T2RatioB8AB11 float32

	// Bare soil test on B02/B11.
	T11B02         float32
	T12B02         float32
	T11RatioB02B11 float32
	T12RatioB02B11 float32

	// Water test on B02/B11 conditioned on B12.
	T21B12         float32
	T22B12         float32
	T21RatioB02B11 float32
	T22RatioB02B11 float32

	CloudLP float32
	CloudMP float32
	CloudHP float32

	T1Snow float32
	T2Snow float32

	// TB02B12 is the tolerated mean distance to the reference shadow spectrum.
	TB02B12 float32
}

// DefaultThresholds returns the operational configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		T1B02: 0.18, T2B02: 0.22,
		T1B04: 0.08, T2B04: 0.25,
		T1B8A: 0.15, T2B8A: 0.35,
		T1B10: 0.012, T2B10: 0.035,

		T1NDSICloud: -0.24, T2NDSICloud: -0.16,
		T1NDSISnow: 0.20, T2NDSISnow: 0.42,
		T1NDVI: 0.36, T2NDVI: 0.40,

		T1RatioB02B04: 0.85, T2RatioB02B04: 0.95,
		T1RatioB8AB03: 1.50, T2RatioB8AB03: 2.50,
		T1RatioB8AB11: 0.90, T2RatioB8AB11: 1.10,

		T11B02: -0.40, T12B02: 0.46,
		T11RatioB02B11: 0.55, T12RatioB02B11: 0.80,

		T21B12: 0.10, T22B12: -0.09,
		T21RatioB02B11: 2.0, T22RatioB02B11: 4.0,

		CloudLP: 0.0, CloudMP: 0.35, CloudHP: 0.65,

		T1Snow: 0.12, T2Snow: 0.25,

		TB02B12: 0.018,
	}
}
