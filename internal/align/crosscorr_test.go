package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camsync/internal/trace"
)

// pulseTrace builds a trace of the given length whose rising edges sit at
// exactly the requested indices (one-sample pulses).
func pulseTrace(length int, edges []int) trace.Trace {
	t := make(trace.Trace, length)
	for _, e := range edges {
		t[e+1] = 1
	}
	return t
}

func TestCrossCorrelationAligner_RecoversShift(t *testing.T) {
	t.Parallel()

	ref := pulseTrace(70, []int{10, 30, 50})
	target := pulseTrace(70, []int{15, 35, 55})
	a := CrossCorrelationAligner{RefRate: 100, TargetRate: 100}

	p, _ := a.Align(ref, target, NewParams(100))
	require.NotNil(t, p.Lag)
	// Target events sit 5 samples later, so the winning shift is -5.
	assert.InDelta(t, -0.05, *p.Lag, 1e-9)
	assert.True(t, p.IsGood(), "all three events match at one shift")
}

func TestCrossCorrelationAligner_TieBreakNearestZero(t *testing.T) {
	t.Parallel()

	// Two equally strong peaks at shifts -4 and +2; the one nearer zero wins.
	ref := pulseTrace(12, []int{2, 8})
	target := pulseTrace(12, []int{6})
	a := CrossCorrelationAligner{RefRate: 100, TargetRate: 100}

	p, _ := a.Align(ref, target, NewParams(100))
	require.NotNil(t, p.Lag)
	assert.InDelta(t, 0.02, *p.Lag, 1e-9)
}

func TestCrossCorrelationAligner_PartialMatchInvalid(t *testing.T) {
	t.Parallel()

	// Two of three events share a shift; the strict criterion demands all.
	ref := pulseTrace(70, []int{10, 30, 50})
	target := pulseTrace(70, []int{15, 35, 56})
	a := CrossCorrelationAligner{RefRate: 100, TargetRate: 100}

	p, _ := a.Align(ref, target, NewParams(100))
	assert.False(t, p.IsGood())
}

func TestCrossCorrelationAligner_UpsamplesTarget(t *testing.T) {
	t.Parallel()

	// Target at half the reference rate; after repetition its event covers
	// reference samples 16..17, overlapping the reference event at 16.
	ref := pulseTrace(40, []int{15})
	target := pulseTrace(20, []int{7})
	a := CrossCorrelationAligner{RefRate: 100, TargetRate: 50}

	p, _ := a.Align(ref, target, NewParams(50))
	require.NotNil(t, p.Lag)
	assert.InDelta(t, 0, *p.Lag, 1e-9)
	assert.True(t, p.IsGood())
}

func TestCrossCorrelationAligner_DiagnosticOnlyInDebug(t *testing.T) {
	t.Parallel()

	ref := pulseTrace(30, []int{5})
	target := pulseTrace(30, []int{5})

	quiet := CrossCorrelationAligner{RefRate: 100, TargetRate: 100}
	_, diag := quiet.Align(ref, target, NewParams(100))
	assert.Nil(t, diag)

	verbose := CrossCorrelationAligner{RefRate: 100, TargetRate: 100, Debug: true}
	_, diag = verbose.Align(ref, target, NewParams(100))
	assert.NotNil(t, diag)
}
