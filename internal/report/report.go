// Package report renders a static HTML summary of a synchronization run:
// one page with the committed lag and sample rate per target, so a whole
// session can be sanity-checked without opening the per-pair QC images.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/camsync/internal/fsutil"
	"github.com/banshee-data/camsync/internal/storage/sqlite"
)

// Generate writes the run summary page to path. Alignments with a nil lag
// (degenerate pairs) still appear on the axis so missing cameras are
// visible, with a zero bar.
func Generate(fs fsutil.FileSystem, path, runID string, alignments []*sqlite.Alignment) error {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}

	targets := make([]string, len(alignments))
	lags := make([]opts.BarData, len(alignments))
	rates := make([]opts.BarData, len(alignments))
	good := 0
	for i, a := range alignments {
		targets[i] = filepath.Base(a.Target)
		var lag float64
		if a.LagTime != nil {
			lag = *a.LagTime
		}
		lags[i] = opts.BarData{Value: lag}
		rates[i] = opts.BarData{Value: a.SampleRate}
		if a.Good {
			good++
		}
	}

	page := components.NewPage()
	page.PageTitle = "Synchronization Report"
	page.AddCharts(
		lagChart(runID, targets, lags, good, len(alignments)),
		rateChart(targets, rates),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

func lagChart(runID string, targets []string, lags []opts.BarData, good, total int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Committed lag per target",
			Subtitle: fmt.Sprintf("run=%s good=%d/%d", runID, good, total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "lag (s)"}),
	)
	bar.SetXAxis(targets)
	bar.AddSeries("lag", lags)
	return bar
}

func rateChart(targets []string, rates []opts.BarData) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Corrected sample rate per target"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rate (Hz)"}),
	)
	bar.SetXAxis(targets)
	bar.AddSeries("sample rate", rates)
	return bar
}
