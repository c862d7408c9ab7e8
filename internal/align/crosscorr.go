package align

import (
	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// CrossCorrelationAligner estimates a coarse lag by sliding the target
// trace over the reference and picking the shift with the strongest
// overlap. The estimate is only judged valid when the correlation peak
// equals the smaller trace's event count, i.e. every event in the shorter
// trace found an exact match; a partial match is invalid.
type CrossCorrelationAligner struct {
	RefRate    float64
	TargetRate float64
	Debug      bool
}

// Name implements Aligner.
func (a CrossCorrelationAligner) Name() string { return StageCrossCorrelation }

// Align implements Aligner.
func (a CrossCorrelationAligner) Align(ref, target trace.Trace, p Params) (Params, qc.StageDiagnostic) {
	ref, target = cropForParams(ref, target, p, a.RefRate, a.TargetRate)
	nSpikes := len(trace.RisingEdges(ref))
	if n := len(trace.RisingEdges(target)); n < nSpikes {
		nSpikes = n
	}

	target = trace.Resample(target, a.TargetRate, a.RefRate)
	n := len(ref)
	if len(target) > n {
		n = len(target)
	}
	if n == 0 {
		// Cropping consumed both traces; nothing to correlate.
		return Params{Lag: ptrFloat64(0), Slope: p.Slope, SampleRate: p.SampleRate, Good: ptrBool(false)}, nil
	}
	ref = trace.PadTo(ref, n)
	target = trace.PadTo(target, n)

	corr := crossCorrelate(ref, target)

	maxCorr := 0
	for _, v := range corr {
		if v > maxCorr {
			maxCorr = v
		}
	}
	// Among all peaks of equal height, take the one closest to zero lag.
	best := -1
	for k, v := range corr {
		if v != maxCorr {
			continue
		}
		if best < 0 || abs(k-n) < abs(best-n) {
			best = k
		}
	}
	lagIdx := best - n + 1
	lagTime := float64(lagIdx) / a.TargetRate
	monitoring.Logf("cross correlation lag time: %.6f s (peak %d, events %d)", lagTime, maxCorr, nSpikes)

	out := Params{
		Lag:        ptrFloat64(lagTime),
		Slope:      p.Slope,
		SampleRate: p.SampleRate,
		Good:       ptrBool(maxCorr == nSpikes),
	}
	if !a.Debug {
		return out, nil
	}

	curve := make([]float64, len(corr))
	for i, v := range corr {
		curve[i] = float64(v)
	}
	return out, qc.CrossCorrelation{Corr: curve, PaddedLen: n, LagIndex: lagIdx}
}

// crossCorrelate computes the full discrete cross-correlation of two
// equal-length binary traces. Index n-1 of the result is the zero-shift
// position. Only nonzero samples contribute, so the cost is quadratic in
// pulse samples rather than trace length, and the result is integer-exact,
// which the strict validity criterion depends on.
func crossCorrelate(a, v trace.Trace) []int {
	n := len(a)
	out := make([]int, 2*n-1)

	var aOn, vOn []int
	for i, s := range a {
		if s != 0 {
			aOn = append(aOn, i)
		}
	}
	for i, s := range v {
		if s != 0 {
			vOn = append(vOn, i)
		}
	}
	for _, i := range aOn {
		for _, j := range vOn {
			out[i-j+n-1]++
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
