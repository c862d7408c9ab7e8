package align

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/fsutil"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// Pipeline runs the ordered refinement stages over one reference/target
// reader pair and persists the result. Pipelines are independent of each
// other; all artifact paths derive from the target reader's canonical root,
// so concurrent pipelines never contend on output files.
type Pipeline struct {
	Ref    SignalReader
	Target SignalReader
	Stages []Aligner

	// FS receives the alignment record; plots are written straight to disk
	// by the rendering backend.
	FS fsutil.FileSystem

	// RefTrace, when non-nil, is used instead of loading Ref. A reference
	// shared across concurrent pairs must be loaded once up front: loading
	// has side effects (a video reader writes QC images to the reference's
	// root), so per-pair loads would race on the same paths.
	RefTrace trace.Trace
}

// NewPipeline builds a pipeline for one pair from the stage configuration.
// An unknown stage name in cfg is a construction-time error.
func NewPipeline(cfg Config, ref, target SignalReader, fs fsutil.FileSystem, debug bool) (*Pipeline, error) {
	stages, err := cfg.BuildStages(ref.SampleRate(), target.SampleRate(), debug)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Pipeline{Ref: ref, Target: target, Stages: stages, FS: fs}, nil
}

// Run loads both traces once, applies each stage in order and commits a
// stage's output only when the stage judged it trustworthy. Stage
// disagreement is not an error: the pre-stage parameters simply carry
// forward. Only reader IO failures are fatal.
func (p *Pipeline) Run() (Params, error) {
	refTrace := p.RefTrace
	if refTrace == nil {
		var err error
		refTrace, err = p.Ref.LoadTrace()
		if err != nil {
			return Params{}, fmt.Errorf("load reference trace %s: %w", p.Ref.Source(), err)
		}
	}
	targetTrace, err := p.Target.LoadTrace()
	if err != nil {
		return Params{}, fmt.Errorf("load target trace %s: %w", p.Target.Source(), err)
	}

	params := NewParams(p.Target.SampleRate())

	refEvents := len(trace.RisingEdges(refTrace))
	targetEvents := len(trace.RisingEdges(targetTrace))
	if refEvents == 0 || targetEvents == 0 {
		monitoring.Warnf("no events detected: ref=%d target=%d (%s)", refEvents, targetEvents, p.Target.Source())
		p.finalPlot(refTrace, targetTrace, params)
		return params, nil
	}
	monitoring.Logf("events detected: ref=%d target=%d", refEvents, targetEvents)

	for i, stage := range p.Stages {
		// Each stage re-crops the original traces using the lag accepted
		// so far, so no stage may start before the previous commit.
		next, diag := stage.Align(refTrace, targetTrace, params)
		if diag != nil {
			path := fmt.Sprintf("%s.qc-stage-%d.png", p.Target.RootPath(), i)
			if err := qc.SaveStagePlot(path, diag); err != nil {
				monitoring.Warnf("stage %d (%s) plot failed: %v", i, stage.Name(), err)
			}
		}
		if next.IsGood() {
			params = next
		} else {
			monitoring.Warnf("stage %d (%s) rejected its estimate; keeping previous parameters", i, stage.Name())
		}
	}

	p.finalPlot(refTrace, targetTrace, params)
	return params, nil
}

func (p *Pipeline) finalPlot(refTrace, targetTrace trace.Trace, params Params) {
	path := p.Target.RootPath() + ".qc-final.png"
	err := qc.SaveFinalComparison(path,
		refTrace, targetTrace,
		p.Ref.SampleRate(), p.Target.SampleRate(),
		params.SampleRateOr(p.Target.SampleRate()), params.LagOr(0))
	if err != nil {
		monitoring.Warnf("final comparison plot failed: %v", err)
	}
}

// Record is the persisted alignment result for one pair, written as
// {canonical_root}.align.json. Slope and the time bounds serialize as the
// string "null" when absent; downstream tooling expects that quirk.
type Record struct {
	Reference  string      `json:"reference"`
	Target     string      `json:"target"`
	LagTime    float64     `json:"lag_time"`
	Slope      interface{} `json:"slope"`
	SampleRate float64     `json:"sample_rate"`
	TimeStart  interface{} `json:"time_start"`
	TimeEnd    interface{} `json:"time_end"`
}

// RecordPath is where WriteRecord persists this pair's result.
func (p *Pipeline) RecordPath() string {
	return p.Target.RootPath() + ".align.json"
}

// WriteRecord persists the final parameters. When no stage produced a lag
// the record is deliberately not written: the absence of the file is the
// signal that alignment did not succeed for this pair.
func (p *Pipeline) WriteRecord(params Params) (string, error) {
	if params.Lag == nil {
		return "", nil
	}

	start, end := p.Target.TimeBounds()
	rec := Record{
		Reference:  p.Ref.Source(),
		Target:     p.Target.Source(),
		LagTime:    *params.Lag,
		Slope:      orNullString(params.Slope),
		SampleRate: params.SampleRateOr(p.Target.SampleRate()),
		TimeStart:  orNullString(start),
		TimeEnd:    orNullString(end),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal alignment record: %w", err)
	}

	path := p.RecordPath()
	if err := p.FS.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write alignment record %s: %w", path, err)
	}
	return path, nil
}

func orNullString(v *float64) interface{} {
	if v == nil {
		return "null"
	}
	return *v
}
