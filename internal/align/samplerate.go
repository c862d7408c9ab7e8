package align

import (
	"math"
	"sort"

	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// SampleRateAligner refines only the clock rate, from inter-event spacing:
// the ratio of the median target gap to the median reference gap rescales
// both the believed sample rate and the accepted lag. Valid whenever both
// traces produced at least two events (the ratio is not NaN).
type SampleRateAligner struct {
	RefRate    float64
	TargetRate float64
	Debug      bool
}

// Name implements Aligner.
func (a SampleRateAligner) Name() string { return StageSampleRate }

// Align implements Aligner.
func (a SampleRateAligner) Align(ref, target trace.Trace, p Params) (Params, qc.StageDiagnostic) {
	ref, target = cropForParams(ref, target, p, a.RefRate, a.TargetRate)
	refEdges := trace.RisingEdges(ref)
	targetEdges := trace.RisingEdges(target)
	targetRate := p.SampleRateOr(a.TargetRate)

	m := len(refEdges)
	if len(targetEdges) < m {
		m = len(targetEdges)
	}
	refGaps := gapsSeconds(refEdges[:m], a.RefRate)
	targetGaps := gapsSeconds(targetEdges[:m], targetRate)

	ratio := median(targetGaps) / median(refGaps)
	trueRate := ratio * targetRate
	monitoring.Logf("sample rate estimate: %.4f Hz (gap ratio %.6f)", trueRate, ratio)

	out := Params{
		Lag:        ptrFloat64(p.LagOr(0) * ratio),
		Slope:      p.Slope,
		SampleRate: ptrFloat64(trueRate),
		Good:       ptrBool(!math.IsNaN(trueRate)),
	}
	if !a.Debug {
		return out, nil
	}

	n := len(refGaps)
	if len(targetGaps) < n {
		n = len(targetGaps)
	}
	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		diffs[i] = targetGaps[i] - refGaps[i]
	}
	return out, qc.GapHistogram{GapDiffs: diffs}
}

func gapsSeconds(edges []int, rate float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	gaps := make([]float64, len(edges)-1)
	for i := 1; i < len(edges); i++ {
		gaps[i-1] = float64(edges[i]-edges[i-1]) / rate
	}
	return gaps
}

// median returns NaN for an empty slice, averaging the middle pair for even
// lengths.
func median(vs []float64) float64 {
	if len(vs) == 0 {
		return math.NaN()
	}
	cp := make([]float64, len(vs))
	copy(cp, vs)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return (cp[mid-1] + cp[mid]) / 2
}
