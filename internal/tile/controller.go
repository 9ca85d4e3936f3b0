// Package tile drives one tile through the resolutions of a run: band import,
// scene classification, atmospheric correction and product export.
package tile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/auxdata"
	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/progress"
	"github.com/chrissnell/remotesensing/internal/quality"
	"github.com/chrissnell/remotesensing/internal/sceneclass"
	"github.com/chrissnell/remotesensing/internal/snapshot"
	"github.com/chrissnell/remotesensing/internal/terrain"
	"github.com/chrissnell/remotesensing/internal/types"
)

// Job is one tile to process.
type Job struct {
	Tile string
	// Resolution 0 runs 20m and then 10m.
	Resolution types.Resolution
	// Files maps reflectance bands to source files at their native resolution.
	Files        map[types.BandID]string
	DEM          string
	Geo          geo.Context
	SolarZenith  float64
	SolarAzimuth float64
	Acquired     time.Time
}

// Options are the run-wide controller settings.
type Options struct {
	StoreDir            string
	OutputDir           string
	TestMode            bool
	SCOnly              bool
	MedianFilter        int
	SenescingVegetation bool
	DNScale             float32
	Store               bandstore.Options
	// OutputFormat is the exported file extension: jp2, tif or raw.
	OutputFormat string
	Downsample60 bool
	Thresholds   sceneclass.Thresholds

	SnowMap          string
	DEMDir           string
	Aux              auxdata.Paths
	SnowConditionDir string

	EstimatesPath   string
	UserQualityPath string
}

// Controller runs jobs. One controller may serve several workers at once.
type Controller struct {
	opts    Options
	terrain terrain.Provider
	ac      AtmosphericCorrector
	tracker *progress.Tracker
	logger  *zap.SugaredLogger
}

// NewController returns a controller. A nil provider or corrector falls back
// to terrain.Unavailable and Passthrough; tracker may be nil.
func NewController(opts Options, tp terrain.Provider, ac AtmosphericCorrector, tracker *progress.Tracker, logger *zap.SugaredLogger) *Controller {
	if tp == nil {
		tp = terrain.Unavailable
	}
	if ac == nil {
		ac = Passthrough{}
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "tif"
	}
	return &Controller{opts: opts, terrain: tp, ac: ac, tracker: tracker, logger: logger}
}

// Plan returns the resolutions processed for a requested resolution.
func Plan(res types.Resolution) []types.Resolution {
	if res == 0 {
		return []types.Resolution{types.R20, types.R10}
	}
	return []types.Resolution{res}
}

// Run processes every resolution of job's plan. A failed resolution is
// logged and the next one is still attempted; the failures are returned
// together.
func (c *Controller) Run(ctx context.Context, job Job) error {
	logger := c.logger.With("tile", job.Tile)
	t := bandstore.NewTile(c.opts.StoreDir, job.Tile, bandstore.TileOptions{
		TestMode: c.opts.TestMode,
		DNScale:  c.opts.DNScale,
		Store:    c.opts.Store,
	}, logger)
	defer t.Close()

	snapPath := snapshot.Path(filepath.Join(c.opts.StoreDir, job.Tile), job.Tile)
	snap := c.loadSnapshot(snapPath, job, logger)

	var errs error
	for _, res := range Plan(job.Resolution) {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if snap.Done(res) {
			logger.Infof("resolution %s already completed, skipping", res)
			continue
		}
		start := time.Now()
		logger.Infof("processing resolution %s", res)
		if err := c.resolution(ctx, t, job, res, logger); err != nil {
			logger.Errorf("resolution %s failed: %v", res, err)
			errs = multierr.Append(errs, fmt.Errorf("tile %s at %s: %w", job.Tile, res, err))
			continue
		}
		elapsed := time.Since(start)
		logger.Infof("resolution %s done in %s", res, elapsed.Round(time.Millisecond))

		snap.MarkDone(res)
		if err := snapshot.Save(snapPath, snap); err != nil {
			errs = multierr.Append(errs, err)
		}
		if c.opts.EstimatesPath != "" {
			if _, err := progress.UpdateEstimate(ctx, c.opts.EstimatesPath, res, elapsed); err != nil {
				logger.Warnf("failed to update time estimate: %v", err)
			}
		}
		if c.tracker != nil {
			if _, err := c.tracker.Done(ctx, res); err != nil {
				logger.Warnf("failed to update progress: %v", err)
			}
		}
		if res == types.R10 {
			errs = multierr.Append(errs, c.finish(ctx, t, snapPath))
		}
	}
	return errs
}

func (c *Controller) loadSnapshot(path string, job Job, logger *zap.SugaredLogger) *snapshot.Snapshot {
	snap, err := snapshot.Load(path)
	switch {
	case err == nil:
		logger.Infof("resuming from snapshot, completed %v", snap.Completed)
		return snap
	case errors.Is(err, snapshot.ErrVersion):
		logger.Warnf("discarding snapshot: %v", err)
	case !os.IsNotExist(err):
		logger.Warnf("unreadable snapshot, starting over: %v", err)
	}
	snap = snapshot.New(job.Tile)
	snap.SCOnly = c.opts.SCOnly
	snap.Zenith = job.SolarZenith
	snap.Azimuth = job.SolarAzimuth
	snap.Thresh = c.opts.Thresholds
	snap.StoreDir = c.opts.StoreDir
	snap.OutputDir = c.opts.OutputDir
	for id, f := range job.Files {
		snap.Files[id.String()] = f
	}
	return snap
}

// finish drops the snapshot and every temporary of the tile.
func (c *Controller) finish(ctx context.Context, t *bandstore.Tile, snapPath string) error {
	err := snapshot.Remove(snapPath)
	for _, res := range types.Ladder {
		tb, terr := t.Tables(ctx, res)
		if terr != nil {
			err = multierr.Append(err, terr)
			continue
		}
		err = multierr.Append(err, tb.ClearTmp(ctx))
	}
	return err
}

func (c *Controller) resolution(ctx context.Context, t *bandstore.Tile, job Job, res types.Resolution, logger *zap.SugaredLogger) error {
	if res == types.R10 && !c.opts.SCOnly {
		t20, err := t.Tables(ctx, types.R20)
		if err != nil {
			return err
		}
		if !t20.Has(ctx, types.AOT) {
			return fmt.Errorf("10m processing needs a completed 20m run")
		}
	}
	tb, err := t.Tables(ctx, res)
	if err != nil {
		return err
	}
	if err := c.importBands(ctx, t, job, res, logger); err != nil {
		return err
	}
	g := c.geo(job, tb)

	if res == types.R10 {
		if err := c.borrow(ctx, tb); err != nil {
			return err
		}
	} else {
		scene, err := c.classify(ctx, tb, job, g, logger)
		if err != nil {
			return err
		}
		if !c.opts.SCOnly {
			if err := c.ac.Correct(ctx, tb, scene); err != nil {
				return fmt.Errorf("atmospheric correction: %w", err)
			}
		} else if err := (Passthrough{}).Correct(ctx, tb, scene); err != nil {
			return err
		}
	}

	if err := c.export(ctx, tb, job, g); err != nil {
		return err
	}
	if res == types.R20 && c.opts.Downsample60 {
		t60, err := t.Tables(ctx, types.R60)
		if err != nil {
			return err
		}
		if err := c.export(ctx, t60, job, c.geo(job, t60)); err != nil {
			return fmt.Errorf("60m products: %w", err)
		}
	}
	return nil
}

func (c *Controller) geo(job Job, tb *bandstore.Tables) geo.Context {
	if !job.Geo.Valid() {
		return geo.Context{}
	}
	return job.Geo.At(tb.Resolution(), tb.Extent(), tb.Extent())
}

// importBands loads every reflectance band res needs into the tables of its
// native resolution. Bands already stored are kept.
func (c *Controller) importBands(ctx context.Context, t *bandstore.Tile, job Job, res types.Resolution, logger *zap.SugaredLogger) error {
	for _, id := range types.ReflectanceBands(res) {
		native, err := t.Tables(ctx, id.NativeResolution())
		if err != nil {
			return err
		}
		if native.Has(ctx, id) {
			continue
		}
		path, ok := job.Files[id]
		if !ok {
			return fmt.Errorf("no source file for band %s", id)
		}
		if err := native.ImportFromSource(ctx, id, path); err != nil {
			return err
		}
		logger.Debugf("imported %s at %s", id, native.Resolution())
	}
	return nil
}

// borrow derives the 10m classification and atmosphere from 20m.
func (c *Controller) borrow(ctx context.Context, tb *bandstore.Tables) error {
	for _, id := range []types.BandID{types.SCL, types.SNW, types.CLD, types.AOT, types.WVP, types.VIS} {
		if _, err := tb.Get(ctx, id); err != nil {
			if bandstore.IsNotFound(err) && id != types.SCL {
				continue
			}
			return fmt.Errorf("borrow %s from 20m: %w", id, err)
		}
	}
	return nil
}

func (c *Controller) classify(ctx context.Context, tb *bandstore.Tables, job Job, g geo.Context, logger *zap.SugaredLogger) (*sceneclass.Result, error) {
	c.importTerrain(ctx, tb, job, logger)

	paths := c.opts.Aux
	if c.opts.SnowConditionDir != "" && !job.Acquired.IsZero() {
		snc, err := auxdata.SelectSnowCondition(c.opts.SnowConditionDir, job.Acquired)
		if err != nil {
			logger.Warnf("no snow condition layer: %v", err)
		} else {
			paths.SnowCondition = snc
		}
	}
	if err := auxdata.Import(ctx, tb, paths, logger); err != nil {
		logger.Warnf("auxiliary layers incomplete: %v", err)
	}

	n := tb.Extent()
	engine := sceneclass.New(tb, c.opts.Thresholds, sceneclass.Options{
		Resolution:          tb.Resolution(),
		TestMode:            c.opts.TestMode,
		MedianFilter:        c.opts.MedianFilter,
		SenescingVegetation: c.opts.SenescingVegetation,
		CouldHaveSnow:       auxdata.SceneCouldHaveSnow(c.opts.SnowMap, g, logger),
		SolarZenith:         job.SolarZenith,
		SolarAzimuth:        job.SolarAzimuth,
	}, n, n, logger)
	scene, err := engine.Process(ctx)
	switch {
	case errors.Is(err, sceneclass.ErrNoData):
		logger.Warnf("tile contains no valid pixels at %s", tb.Resolution())
	case err != nil:
		return nil, fmt.Errorf("scene classification: %w", err)
	}

	q := quality.Compute(scene.Mask)
	logger.Infof("cloud coverage %.2f%%, snow %.2f%%, no data %.2f%%", q.Cloud, q.Snow, q.NoData)
	qiPath := quality.TilePath(filepath.Join(c.opts.OutputDir, job.Tile), job.Tile)
	report := quality.TileReport{Tile: job.Tile, Resolution: int(tb.Resolution()), Generated: time.Now().UTC(), Indicators: q}
	if err := quality.WriteTile(ctx, qiPath, report); err != nil {
		return nil, err
	}
	if c.opts.UserQualityPath != "" {
		if _, err := quality.UpdateUser(ctx, c.opts.UserQualityPath, q); err != nil {
			logger.Warnf("failed to update user quality file: %v", err)
		}
	}
	return scene, nil
}

// importTerrain stores the DEM layers when the provider delivers them.
func (c *Controller) importTerrain(ctx context.Context, tb *bandstore.Tables, job Job, logger *zap.SugaredLogger) {
	if tb.Has(ctx, types.DEM) {
		return
	}
	dem := job.DEM
	if dem == "" && c.opts.DEMDir != "" {
		matches, _ := filepath.Glob(filepath.Join(c.opts.DEMDir, job.Tile+".*"))
		if len(matches) > 0 {
			dem = matches[0]
		}
	}
	n := tb.Extent()
	layers, err := c.terrain.Layers(ctx, terrain.Request{
		TileID:       job.Tile,
		Resolution:   tb.Resolution(),
		Rows:         n,
		Cols:         n,
		DEMPath:      dem,
		SolarZenith:  job.SolarZenith,
		SolarAzimuth: job.SolarAzimuth,
	})
	if err != nil {
		logger.Warnf("continuing without DEM: %v", err)
		return
	}
	for _, l := range []struct {
		id types.BandID
		r  *types.Raster
	}{{types.DEM, layers.DEM}, {types.SLP, layers.Slope}, {types.ASP, layers.Aspect}, {types.SDW, layers.Shadow}} {
		if l.r == nil {
			continue
		}
		if err := tb.Set(ctx, l.id, l.r); err != nil {
			logger.Warnf("failed to store %s: %v", l.id, err)
		}
	}
}
