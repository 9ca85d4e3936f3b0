package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/remotesensing/internal/app"
	"github.com/chrissnell/remotesensing/internal/log"
	"github.com/chrissnell/remotesensing/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "l2a.yaml", "Path to the YAML processing configuration")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	tileID := flag.String("tile", "", "Process only this tile")
	resolution := flag.Int("resolution", 0, "Override the configured resolution (10, 20 or 60)")
	workers := flag.Int("workers", 0, "Number of tiles processed in parallel (default: number of CPUs)")
	logFile := flag.String("log-file", "", "Also write JSON logs to this rotating file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("l2a-process %s\n", version)
		os.Exit(0)
	}

	filename, _ := filepath.Abs(*cfgFile)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config file. Did you pass the -config flag? Run with -h for help: %v\n", err)
		os.Exit(1)
	}

	// Set up logging
	logOpts := log.FileOptions{
		Path:       cfgData.Logging.File,
		MaxSizeMB:  cfgData.Logging.MaxSizeMB,
		MaxBackups: cfgData.Logging.MaxBackups,
		MaxAgeDays: cfgData.Logging.MaxAgeDays,
	}
	if *logFile != "" {
		logOpts.Path = *logFile
	}
	if err := log.InitWithFile(*debug || cfgData.Logging.Debug, logOpts); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application := app.New(provider, app.Overrides{
		Tile:       *tileID,
		Resolution: *resolution,
		Workers:    *workers,
	}, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Processing failed: %v", err)
		os.Exit(1)
	}
}
