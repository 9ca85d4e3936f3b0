// Package sceneclass assigns every pixel of a tile resolution one scene class
// and computes cloud and snow confidence. Passes run in a fixed order; each
// guards its writes so that only designated recovery passes may overwrite a
// class set earlier.
package sceneclass

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/ndimage"
	"github.com/chrissnell/remotesensing/internal/types"
)

// ErrNoData is returned with a neutral result when every pixel is no-data.
var ErrNoData = errors.New("all bands contain only no-data")

// lowest keeps ratio denominators away from zero.
const lowest = 1e-6

// BandSource supplies input bands and receives the products. Reflectance
// bands are expected in [0,1].
type BandSource interface {
	Get(ctx context.Context, id types.BandID) (*types.Band, error)
	Has(ctx context.Context, id types.BandID) bool
	Set(ctx context.Context, id types.BandID, r *types.Raster) error
}

// Options are the per-run settings of the engine.
type Options struct {
	Resolution types.Resolution
	// TestMode skips cloud shadow detection.
	TestMode bool
	// MedianFilter is the window of the final mask smoothing; 0 disables it.
	MedianFilter int
	// SenescingVegetation enables the B8A/B03 vegetation test.
	SenescingVegetation bool
	// CouldHaveSnow gates the snow passes. Callers derive it from the snow
	// climatology.
	CouldHaveSnow bool
	SolarZenith   float64
	SolarAzimuth  float64
}

// Result is the outcome of one run.
type Result struct {
	Rows int
	Cols int
	Mask []types.Class
	// Cloud and Snow are confidences in [0,1].
	Cloud []float32
	Snow  []float32
	// Durations of each pass in execution order.
	Timings []Timing
}

// Timing records how long a pass took.
type Timing struct {
	Pass     string
	Duration time.Duration
}

// Engine holds the working rasters of one classification run. It is not safe
// for concurrent use.
type Engine struct {
	src    BandSource
	th     Thresholds
	opts   Options
	logger *zap.SugaredLogger

	rows, cols int
	cm         []types.Class
	cloud      []float32
	snow       []float32
	hasDEM     bool
	timings    []Timing
}

// New prepares an engine for a rows x cols grid.
func New(src BandSource, th Thresholds, opts Options, rows, cols int, logger *zap.SugaredLogger) *Engine {
	n := rows * cols
	e := &Engine{
		src:    src,
		th:     th,
		opts:   opts,
		logger: logger,
		rows:   rows,
		cols:   cols,
		cm:     make([]types.Class, n),
		cloud:  make([]float32, n),
		snow:   make([]float32, n),
	}
	for i := range e.cm {
		e.cm[i] = types.NotClassified
	}
	return e
}

type pass struct {
	name string
	run  func(ctx context.Context) error
}

// Process runs every pass and stores SCL, SNW and CLD through the source. When
// every pixel is no-data the neutral products are still stored and the result
// comes with ErrNoData.
func (e *Engine) Process(ctx context.Context) (*Result, error) {
	start := time.Now()
	ok, err := e.preprocess(ctx)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	e.record("preprocess", start)
	if !ok {
		e.logger.Warnf("all images contain only background pixels, product is created without atmospheric correction")
		res, err := e.postprocess(ctx)
		if err != nil {
			return nil, err
		}
		return res, ErrNoData
	}

	for _, p := range e.plan(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := p.run(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		e.record(p.name, start)
	}
	return e.postprocess(ctx)
}

func (e *Engine) plan(ctx context.Context) []pass {
	passes := []pass{
		{"cloud brightness", e.brightness},
		{"cloud snow index", e.cloudSnowIndex},
	}
	if e.opts.CouldHaveSnow {
		e.logger.Infof("snow possible from climatology, snow detection is performed")
		passes = append(passes,
			pass{"snow index", e.snowIndex},
			pass{"snow B05/B8A ratio", e.snowRedEdge},
			pass{"snow B8A brightness", e.snowNIR},
			pass{"snow B02 brightness", e.snowBlue},
			pass{"snow B02/B04 ratio", e.snowBlueRed},
			pass{"snow boundary", e.snowBoundary},
			pass{"snow condition", e.snowCondition},
		)
	} else {
		e.logger.Infof("no snow from climatology, snow detection is skipped")
	}
	passes = append(passes, pass{"vegetation NDVI", e.vegetationNDVI})
	if e.opts.SenescingVegetation {
		passes = append(passes, pass{"senescing vegetation", e.vegetationSenescing})
	}
	passes = append(passes,
		pass{"bare soil", e.bareSoil},
		pass{"water", e.water},
		pass{"rocks and sand", e.rocksAndSand},
		pass{"B04/B11 ratio", e.redSWIRRatio},
		pass{"cloud binning", e.binning},
	)
	if e.opts.TestMode {
		e.logger.Infof("test mode, cloud shadow detection is skipped")
	} else if e.opts.SolarZenith <= 0 {
		e.logger.Warnf("solar zenith unknown, cloud shadow detection is skipped")
	} else if e.opts.SolarZenith >= 90 {
		e.logger.Warnf("solar zenith %.2f, cloud shadow detection is skipped", e.opts.SolarZenith)
	} else {
		passes = append(passes, pass{"cloud shadow", e.cloudShadow})
	}
	passes = append(passes,
		pass{"dark vegetation recovery", e.darkVegetationRecovery},
		pass{"water recovery", e.waterRecovery},
		pass{"water bodies recovery", e.waterBodiesRecovery},
	)
	if e.hasDEM {
		passes = append(passes,
			pass{"water cleaning with DEM", e.waterCleaningDEM},
			pass{"cloud shadow cleaning with DEM", e.cloudShadowCleaningDEM},
			pass{"topographic shadow", e.topographicShadow},
		)
	}
	passes = append(passes,
		pass{"snow recovery", e.snowRecovery},
		pass{"soil recovery", e.soilRecovery},
		pass{"land recovery", e.landRecovery},
		pass{"cirrus recovery", e.cirrusRecovery},
		pass{"urban and bare recovery", e.urbanBareRecovery},
	)
	return passes
}

func (e *Engine) record(name string, start time.Time) {
	d := time.Since(start)
	e.timings = append(e.timings, Timing{Pass: name, Duration: d})
	e.logger.Debugf("pass %s done in %s", name, d)
}

// preprocess marks no-data wherever any reflectance band is zero. It returns
// false when nothing but no-data remains.
func (e *Engine) preprocess(ctx context.Context) (bool, error) {
	band := types.ReflectanceBands(e.opts.Resolution)
	for _, id := range band {
		b, err := e.get(ctx, id)
		if err != nil {
			return false, err
		}
		for i, v := range b {
			if v == 0 {
				e.cm[i] = types.NoData
			}
		}
	}
	e.hasDEM = e.src.Has(ctx, types.DEM)
	for _, c := range e.cm {
		if c != types.NoData {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) postprocess(ctx context.Context) (*Result, error) {
	for i, c := range e.cm {
		if c == types.NotClassified {
			e.cm[i] = types.Unclassified
		}
	}
	if n := e.opts.MedianFilter; n > 0 {
		e.logger.Infof("filtering classification mask with window %d", n)
		raw := make([]uint8, len(e.cm))
		for i, c := range e.cm {
			raw[i] = uint8(c)
		}
		for i, v := range ndimage.MedianUint8(raw, e.rows, e.cols, n) {
			if c := types.Class(v); e.cm[i] != types.NoData && c != types.NoData {
				e.cm[i] = c
			}
		}
	}

	scl := types.NewRaster(e.rows, e.cols, types.Uint8)
	snw := types.NewRaster(e.rows, e.cols, types.Uint8)
	cld := types.NewRaster(e.rows, e.cols, types.Uint8)
	for i := range e.cm {
		scl.Data[i] = float32(e.cm[i])
		snw.Data[i] = percent(e.snow[i])
		cld.Data[i] = percent(e.cloud[i])
	}
	for _, out := range []struct {
		id types.BandID
		r  *types.Raster
	}{{types.SCL, scl}, {types.SNW, snw}, {types.CLD, cld}} {
		if err := e.src.Set(ctx, out.id, out.r); err != nil {
			return nil, fmt.Errorf("store %s: %w", out.id, err)
		}
	}
	e.logger.Infof("stored classification mask and confidence layers at %s", e.opts.Resolution)

	return &Result{
		Rows:    e.rows,
		Cols:    e.cols,
		Mask:    e.cm,
		Cloud:   e.cloud,
		Snow:    e.snow,
		Timings: e.timings,
	}, nil
}

func percent(v float32) float32 {
	return float32(uint8(v*100 + 0.5))
}

// get returns the samples of id and checks they cover the grid.
func (e *Engine) get(ctx context.Context, id types.BandID) ([]float32, error) {
	b, err := e.src.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Rows != e.rows || b.Cols != e.cols {
		return nil, fmt.Errorf("band %s is %dx%d, grid is %dx%d", id, b.Rows, b.Cols, e.rows, e.cols)
	}
	return b.Data, nil
}

// bands fetches several bands in order.
func (e *Engine) bands(ctx context.Context, ids ...types.BandID) ([][]float32, error) {
	out := make([][]float32, len(ids))
	for i, id := range ids {
		b, err := e.get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// optional fetches id when the source has it and returns nil otherwise.
func (e *Engine) optional(ctx context.Context, id types.BandID) ([]float32, error) {
	if !e.src.Has(ctx, id) {
		return nil, nil
	}
	return e.get(ctx, id)
}

// ramp maps v linearly from [t1,t2] onto [0,1], clipping outside.
func ramp(v, t1, t2 float32) float32 {
	if v <= t1 {
		return 0
	}
	if v >= t2 {
		return 1
	}
	return (v - t1) / (t2 - t1)
}

func clip(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ratio divides with the denominator floored at lowest.
func ratio(a, b float32) float32 {
	if b < lowest {
		b = lowest
	}
	return a / b
}

func (e *Engine) open(i int) bool {
	return e.cm[i] == types.NotClassified
}
