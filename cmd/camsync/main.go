// Command camsync aligns a session's recordings against a reference signal.
// It reads a project configuration, runs the alignment pipeline for each
// reference/target pair, writes the per-pair alignment records and QC
// images next to the recordings, and optionally persists results to a
// SQLite database and renders an HTML run report.
package main

import (
	"flag"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/camsync/internal/align"
	"github.com/banshee-data/camsync/internal/fsutil"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/projcfg"
	"github.com/banshee-data/camsync/internal/report"
	"github.com/banshee-data/camsync/internal/storage/sqlite"
	"github.com/banshee-data/camsync/internal/trace"
)

func main() {
	configPath := flag.String("config", "", "Path to the project configuration JSON (required)")
	dbPath := flag.String("db", "", "SQLite database to record results in (optional)")
	reportPath := flag.String("report", "", "HTML run report output path (optional, requires -db)")
	debug := flag.Bool("debug", false, "Emit per-stage diagnostic plots")
	jobs := flag.Int("jobs", 4, "Maximum number of pairs aligned concurrently")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("-config is required")
	}
	if *reportPath != "" && *dbPath == "" {
		log.Fatal("-report requires -db")
	}
	if *jobs < 1 {
		*jobs = 1
	}

	cfg, err := projcfg.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	var store *sqlite.AlignmentStore
	if *dbPath != "" {
		db, err := sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		store = sqlite.NewAlignmentStore(db)
	}

	ref, err := cfg.BuildReader(cfg.Reference)
	if err != nil {
		log.Fatalf("build reference reader: %v", err)
	}

	monitoring.Logf("run %s: aligning %d targets against %s", runID, len(cfg.Targets), ref.Source())

	// The shared reference is loaded once here; loading writes the
	// reference's QC images, which must not happen concurrently per pair.
	refTrace, err := ref.LoadTrace()
	if err != nil {
		log.Fatalf("load reference trace %s: %v", ref.Source(), err)
	}

	// With the reference preloaded, every remaining output path derives
	// from a target's root, so the pairs never contend on files and can
	// run in parallel.
	var wg sync.WaitGroup
	sem := make(chan struct{}, *jobs)
	failures := make(chan error, len(cfg.Targets))
	for _, rc := range cfg.Targets {
		target, err := cfg.BuildReader(rc)
		if err != nil {
			log.Fatalf("build reader for %s: %v", rc.Path, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := alignPair(cfg, ref, refTrace, target, store, runID, *debug); err != nil {
				monitoring.Logf("error: align %s: %v", target.Source(), err)
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)

	failed := len(failures)
	if store != nil && *reportPath != "" {
		alignments, err := store.ListByRun(runID)
		if err != nil {
			log.Fatalf("list run results: %v", err)
		}
		if err := report.Generate(fsutil.OSFileSystem{}, *reportPath, runID, alignments); err != nil {
			log.Fatalf("generate report: %v", err)
		}
		monitoring.Logf("wrote run report to %s", *reportPath)
	}

	if failed > 0 {
		log.Fatalf("%d of %d pairs failed", failed, len(cfg.Targets))
	}
	monitoring.Logf("run %s complete", runID)
}

// alignPair runs one reference/target pipeline and persists its outcome.
func alignPair(cfg *projcfg.Config, ref align.SignalReader, refTrace trace.Trace, target align.SignalReader, store *sqlite.AlignmentStore, runID string, debug bool) error {
	p, err := align.NewPipeline(cfg.AlignConfig(), ref, target, nil, debug)
	if err != nil {
		return err
	}
	p.RefTrace = refTrace

	params, err := p.Run()
	if err != nil {
		return err
	}

	recordPath, err := p.WriteRecord(params)
	if err != nil {
		return err
	}
	if recordPath != "" {
		monitoring.Logf("wrote %s", recordPath)
	}

	if store == nil {
		return nil
	}
	return store.Insert(&sqlite.Alignment{
		RunID:      runID,
		Reference:  ref.Source(),
		Target:     target.Source(),
		LagTime:    params.Lag,
		Slope:      params.Slope,
		SampleRate: params.SampleRateOr(target.SampleRate()),
		Good:       params.IsGood(),
		RecordPath: recordPath,
	})
}
