package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chrissnell/remotesensing/internal/bandstore"
	"github.com/chrissnell/remotesensing/internal/log"
	"github.com/chrissnell/remotesensing/internal/types"
	"github.com/chrissnell/remotesensing/pkg/responseformat"
)

type entry struct {
	Area       string `json:"area"`
	Band       string `json:"band"`
	Resolution int    `json:"resolution"`
	Type       string `json:"type"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Count      int    `json:"count"`
}

func main() {
	path := flag.String("store", "", "Path to a band store file")
	res := flag.Int("resolution", 20, "Resolution of the store (10, 20 or 60)")
	area := flag.String("area", "", "Only list this area: arrays, resampled or tmp")
	format := flag.String("format", "table", "Output format: table, json or msgpack")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing -store")
		flag.Usage()
		os.Exit(2)
	}
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	r, err := types.ParseResolution(*res)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if _, err := os.Stat(*path); err != nil {
		log.Fatalf("%v", err)
	}
	ctx := context.Background()
	store, err := bandstore.Open(ctx, *path, r, bandstore.DefaultOptions, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	areas := []bandstore.Area{bandstore.AreaArrays, bandstore.AreaResampled, bandstore.AreaTmp}
	if *area != "" {
		areas = []bandstore.Area{bandstore.Area(*area)}
	}

	var entries []entry
	for _, a := range areas {
		infos, err := store.List(ctx, a)
		if err != nil {
			log.Fatalf("failed to list %s: %v", a, err)
		}
		for _, info := range infos {
			entries = append(entries, entry{
				Area:       string(info.Area),
				Band:       info.Band.String(),
				Resolution: int(info.Resolution),
				Type:       info.Type.String(),
				Rows:       info.Rows,
				Cols:       info.Cols,
				Count:      info.Count,
			})
		}
	}

	if *format != "table" {
		f, err := responseformat.NewFormatter(*format)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err := f.Write(os.Stdout, entries); err != nil {
			log.Fatalf("failed to write output: %v", err)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AREA\tBAND\tRES\tTYPE\tROWS\tCOLS\tCOUNT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%dm\t%s\t%d\t%d\t%d\n", e.Area, e.Band, e.Resolution, e.Type, e.Rows, e.Cols, e.Count)
	}
	w.Flush()
}
