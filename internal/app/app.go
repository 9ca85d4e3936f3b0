package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/remotesensing/internal/auxdata"
	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/geo"
	"github.com/chrissnell/remotesensing/internal/progress"
	"github.com/chrissnell/remotesensing/internal/terrain"
	"github.com/chrissnell/remotesensing/internal/tile"
	"github.com/chrissnell/remotesensing/internal/types"
	"github.com/chrissnell/remotesensing/pkg/config"
	"github.com/chrissnell/remotesensing/pkg/solar"
)

// Overrides replace configured values from the command line. Zero fields
// keep the configuration.
type Overrides struct {
	Tile       string
	Resolution int
	Workers    int
}

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	overrides      Overrides
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, overrides Overrides, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		overrides:      overrides,
		logger:         logger,
	}
}

// Run processes every configured tile and blocks until all of them finished
// or a shutdown signal arrived. Failed tiles do not stop the others; their
// errors are returned together.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.apply(cfg)

	runID := uuid.NewString()
	logger := a.logger.With("run", runID)

	jobs, err := Jobs(cfg, a.overrides.Tile)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		logger.Warn("no tiles to process")
		return nil
	}

	est := progress.Estimates{}
	if cfg.Processing.EstimatesFile != "" {
		if est, err = progress.LoadEstimates(ctx, cfg.Processing.EstimatesFile); err != nil {
			logger.Warnf("using default time estimates: %v", err)
			est = progress.Estimates{}
		}
	}
	plan := tile.Plan(types.Resolution(cfg.Processing.Resolution))
	tracker := progress.NewTracker(cfg.Processing.StatusFile, est, plan, len(jobs), logger)
	controller := tile.NewController(ControllerOptions(cfg), Terrain(cfg, logger), nil, tracker, logger)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			logger.Info("shutdown signal received, stopping after the current passes...")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Infof("processing %d tiles with plan %v", len(jobs), plan)
	start := time.Now()
	err = runJobs(ctx, controller, jobs, cfg.Processing.Workers, logger)
	if err != nil {
		logger.Errorf("run finished with errors in %s", time.Since(start).Round(time.Second))
		return err
	}
	logger.Infof("run complete in %s", time.Since(start).Round(time.Second))
	return nil
}

func (a *App) apply(cfg *config.ConfigData) {
	if a.overrides.Resolution != 0 {
		cfg.Processing.Resolution = a.overrides.Resolution
	}
	if a.overrides.Workers > 0 {
		cfg.Processing.Workers = a.overrides.Workers
	}
}

// runJobs spreads jobs over a bounded worker pool. The pool size defaults to
// the number of CPUs.
func runJobs(ctx context.Context, c *tile.Controller, jobs []tile.Job, workers int, logger *zap.SugaredLogger) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(jobs))

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Errorf("worker panic: %v", p)
	}))
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	fail := func(err error) {
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
	}
	for _, job := range jobs {
		job := job
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				fail(fmt.Errorf("tile %s: %w", job.Tile, ctx.Err()))
				return
			}
			if err := c.Run(ctx, job); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("tile %s: %w", job.Tile, err))
		}
	}
	wg.Wait()
	return errs
}

// ControllerOptions maps the configuration onto the tile controller.
func ControllerOptions(cfg *config.ConfigData) tile.Options {
	p := cfg.Processing
	return tile.Options{
		StoreDir:            p.StorageDir,
		OutputDir:           p.OutputDir,
		TestMode:            p.TestMode,
		SCOnly:              p.SCOnly,
		MedianFilter:        p.MedianFilter,
		SenescingVegetation: p.SenescingVegetation,
		DNScale:             p.DNScale,
		Store: bandstore.Options{
			CompressionLevel: p.CompressionLevel,
			CacheSize:        p.CacheSize,
			ChunkRows:        p.ChunkRows,
		},
		OutputFormat: p.OutputFormat,
		Downsample60: p.Downsample60,
		Thresholds:   cfg.Thresholds.SceneClass(),
		SnowMap:      cfg.Aux.SnowMap,
		DEMDir:       cfg.Aux.DEMDir,
		Aux: auxdata.Paths{
			WaterBodies: cfg.Aux.WaterBodies,
			LandCover:   cfg.Aux.LandCover,
		},
		SnowConditionDir: cfg.Aux.SnowConditionDir,
		EstimatesPath:    p.EstimatesFile,
		UserQualityPath:  p.UserQualityFile,
	}
}

// Terrain prefers the gdaldem tool when one is configured and falls back to
// deriving the layers in process.
func Terrain(cfg *config.ConfigData, logger *zap.SugaredLogger) terrain.Provider {
	var providers []terrain.Provider
	if cfg.Aux.GDALDEM != "" {
		providers = append(providers, terrain.GDALDEM{
			Binary:  cfg.Aux.GDALDEM,
			Timeout: time.Duration(cfg.Processing.ExternalTimeout) * time.Second,
			WorkDir: filepath.Join(cfg.Processing.StorageDir, "terrain"),
		})
	}
	providers = append(providers, terrain.FileProvider{})
	return terrain.Chain(logger, providers...)
}

// Jobs converts the configured tiles to controller jobs. A non-empty only
// selects a single tile.
func Jobs(cfg *config.ConfigData, only string) ([]tile.Job, error) {
	var jobs []tile.Job
	for _, t := range cfg.Tiles {
		if only != "" && t.ID != only {
			continue
		}
		job, err := jobFor(t, cfg.Processing.Resolution)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if only != "" && len(jobs) == 0 {
		return nil, fmt.Errorf("tile %s is not configured", only)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Tile < jobs[j].Tile })
	return jobs, nil
}

func jobFor(t config.TileData, res int) (tile.Job, error) {
	job := tile.Job{
		Tile:         t.ID,
		Resolution:   types.Resolution(res),
		Files:        make(map[types.BandID]string, len(t.Bands)),
		DEM:          t.DEM,
		SolarZenith:  t.SolarZenith,
		SolarAzimuth: t.SolarAzimuth,
	}
	for name, path := range t.Bands {
		id, err := types.ParseBandID(name)
		if err != nil {
			return tile.Job{}, fmt.Errorf("tile %s: %w", t.ID, err)
		}
		job.Files[id] = path
	}
	if t.Acquired != "" {
		acquired, err := time.Parse(config.AcquiredLayout, t.Acquired)
		if err != nil {
			return tile.Job{}, fmt.Errorf("tile %s: %w", t.ID, err)
		}
		job.Acquired = acquired
	}
	if t.Geo.HCSName != "" {
		n := types.R10.TileSize()
		g, err := geo.NewContext(t.ID, types.R10, t.Geo.ULX, t.Geo.ULY, n, n, t.Geo.EPSG, t.Geo.HCSName)
		if err != nil {
			return tile.Job{}, fmt.Errorf("tile %s: %w", t.ID, err)
		}
		job.Geo = g
	}
	if job.SolarZenith == 0 && job.SolarAzimuth == 0 && job.Geo.Valid() && !job.Acquired.IsZero() {
		ll, ur, err := job.Geo.Corners()
		if err != nil {
			return tile.Job{}, fmt.Errorf("tile %s: %w", t.ID, err)
		}
		lon, lat := (ll.Lon()+ur.Lon())/2, (ll.Lat()+ur.Lat())/2
		job.SolarZenith, job.SolarAzimuth = solar.Position(solar.OverpassTime(job.Acquired, lon), lat, lon)
	}
	return job, nil
}
