package align

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// RegressionAligner refines both the lag and the clock rate by regressing
// target event times onto reference event times, assuming positional
// correspondence between the i-th events of each trace. The fitted slope is
// the clock-rate correction and the intercept a secondary lag term folded
// into the previously accepted lag. The estimate is valid when the fit's
// root-mean-square residual stays below MaxRMSE.
type RegressionAligner struct {
	RefRate    float64
	TargetRate float64
	MaxRMSE    float64
	Debug      bool
}

// Name implements Aligner.
func (a RegressionAligner) Name() string { return StageRegression }

// Align implements Aligner.
func (a RegressionAligner) Align(ref, target trace.Trace, p Params) (Params, qc.StageDiagnostic) {
	ref, target = cropForParams(ref, target, p, a.RefRate, a.TargetRate)
	refEdges := trace.RisingEdges(ref)
	targetEdges := trace.RisingEdges(target)
	targetRate := p.SampleRateOr(a.TargetRate)

	m := len(refEdges)
	if len(targetEdges) < m {
		m = len(targetEdges)
	}
	refTimes := make([]float64, m)
	targetTimes := make([]float64, m)
	for i := 0; i < m; i++ {
		refTimes[i] = float64(refEdges[i]) / a.RefRate
		targetTimes[i] = float64(targetEdges[i]) / targetRate
	}

	var (
		slope  float64
		lag    float64
		rmse   float64
		fitted []float64
	)
	if m > 0 {
		intercept, beta := stat.LinearRegression(refTimes, targetTimes, nil, false)
		slope = beta
		fitted = make([]float64, m)
		var sq float64
		for i, x := range refTimes {
			fitted[i] = intercept + beta*x
			d := fitted[i] - targetTimes[i]
			sq += d * d
		}
		rmse = math.Sqrt(sq / float64(m))
		lag = p.LagOr(0) - intercept
		monitoring.Logf("regression lag time: %.6f s, slope: %.6f (want ~1), rmse: %.2e s", lag, slope, rmse)
	} else {
		monitoring.Warnf("regression skipped: too few event times")
		slope, lag, rmse = 1, 0, math.Inf(1)
	}

	out := Params{
		Lag:        ptrFloat64(slope * lag),
		Slope:      ptrFloat64(slope),
		SampleRate: ptrFloat64(slope * targetRate),
		Good:       ptrBool(rmse < a.MaxRMSE),
	}
	if !a.Debug {
		return out, nil
	}
	return out, qc.Regression{RefTimes: refTimes, TargetTimes: targetTimes, Fitted: fitted}
}
