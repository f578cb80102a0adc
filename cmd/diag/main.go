package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/navtrace/navtrace/internal/archive"
	"github.com/navtrace/navtrace/internal/export"
	"github.com/navtrace/navtrace/internal/orbit"
	"github.com/navtrace/navtrace/internal/rinex"
)

// diag runs the batch pipeline without the HTTP server: parse a navigation
// file, compute position runs for the selected satellites, and write one
// output_<prn>.csv per satellite.
func main() {
	var (
		navFile    = flag.String("file", "", "RINEX navigation file to parse")
		prnList    = flag.String("prn", "", "comma-separated PRNs to compute (default all)")
		dt         = flag.Float64("dt", 30, "sampling step in seconds")
		outDir     = flag.String("out", ".", "directory for output_<prn>.csv files")
		archiveDB  = flag.String("archive", "", "SQLite file to persist runs into (optional)")
		geoJSONOut = flag.Bool("geojson", false, "also write groundtrack_<prn>.geojson per satellite")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *navFile == "" {
		fmt.Println("ERROR: -file is required")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*navFile)
	if err != nil {
		fmt.Println("ERROR opening navigation file:", err)
		os.Exit(1)
	}
	ds, err := rinex.Parse(f, logger)
	f.Close()
	if err != nil {
		fmt.Println("ERROR parsing navigation file:", err)
		os.Exit(1)
	}
	ds.Source = *navFile

	fmt.Printf("Loaded %d records for %d satellites (%d blocks skipped)\n",
		ds.Stats.Records, len(ds.Satellites), ds.Stats.Skipped())
	fmt.Printf("Satellites: %s\n", strings.Join(ds.PRNs(), " "))

	if *prnList != "" {
		keep := make(map[string]bool)
		for _, prn := range strings.Split(*prnList, ",") {
			keep[strings.TrimSpace(prn)] = true
		}
		for prn := range ds.Satellites {
			if !keep[prn] {
				delete(ds.Satellites, prn)
			}
		}
		if len(ds.Satellites) == 0 {
			fmt.Println("ERROR: no requested satellite found in file")
			os.Exit(1)
		}
	}

	var arch *archive.Archive
	if *archiveDB != "" {
		arch, err = archive.Open(*archiveDB)
		if err != nil {
			fmt.Println("ERROR opening archive:", err)
			os.Exit(1)
		}
		defer arch.Close()
	}

	pool := orbit.NewWorkerPool(runtime.NumCPU(), logger)
	results := pool.ComputeBatch(context.Background(), ds, *dt)

	failures := 0
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("  %s: ERROR %v\n", res.PRN, res.Err)
			failures++
			continue
		}

		csvPath := filepath.Join(*outDir, "output_"+res.PRN+".csv")
		if err := writeCSVFile(csvPath, res.Samples); err != nil {
			fmt.Printf("  %s: ERROR %v\n", res.PRN, err)
			failures++
			continue
		}
		fmt.Printf("  %s: %d samples -> %s\n", res.PRN, len(res.Samples), csvPath)

		if *geoJSONOut {
			geoPath := filepath.Join(*outDir, "groundtrack_"+res.PRN+".geojson")
			if err := writeGeoJSONFile(geoPath, res.PRN, res.Samples); err != nil {
				fmt.Printf("  %s: ERROR %v\n", res.PRN, err)
				failures++
				continue
			}
			fmt.Printf("  %s: ground track -> %s\n", res.PRN, geoPath)
		}

		if arch != nil {
			runID, err := arch.SaveRun(res.PRN, ds.Source, *dt, res.Samples)
			if err != nil {
				fmt.Printf("  %s: ERROR archiving run: %v\n", res.PRN, err)
				failures++
				continue
			}
			fmt.Printf("  %s: archived as run %d\n", res.PRN, runID)
		}
	}

	fmt.Printf("\nDone: %d satellites, %d failures\n", len(results), failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func writeCSVFile(path string, samples []orbit.PositionSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeGeoJSONFile(path, prn string, samples []orbit.PositionSample) error {
	data, err := json.Marshal(export.GroundTrack(prn, samples))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
