// Package qc renders the diagnostic artifacts produced alongside alignment:
// per-stage plots, the final before/after comparison, and the video reader's
// brightness and crop-box images. The numeric stages emit plain diagnostic
// values; everything graphical lives here so the stages stay testable
// without touching a rendering backend.
package qc

// StageDiagnostic is the plottable payload an alignment stage may emit.
type StageDiagnostic interface {
	stageDiagnostic()
}

// CrossCorrelation holds the full discrete cross-correlation curve between
// the reference and resampled target traces.
type CrossCorrelation struct {
	// Corr is the full correlation; index 0 corresponds to shift -(PaddedLen-1).
	Corr []float64
	// PaddedLen is the common zero-padded length of both traces.
	PaddedLen int
	// LagIndex is the chosen signed shift in reference-rate samples.
	LagIndex int
}

func (CrossCorrelation) stageDiagnostic() {}

// Regression holds the event-time scatter and its linear fit. Fitted is nil
// when the stage degraded for lack of points.
type Regression struct {
	RefTimes    []float64
	TargetTimes []float64
	Fitted      []float64
}

func (Regression) stageDiagnostic() {}

// GapHistogram holds the per-event difference between target and reference
// inter-pulse intervals, in seconds.
type GapHistogram struct {
	GapDiffs []float64
}

func (GapHistogram) stageDiagnostic() {}
