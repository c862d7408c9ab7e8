package align

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRateAligner_ScaleRecovery(t *testing.T) {
	t.Parallel()

	// Reference pulses every 1.0 s; target clock runs 2% fast so its gaps
	// measure 1.02 s at the nominal rate.
	var refEdges, targetEdges []int
	for k := 1; k <= 10; k++ {
		refEdges = append(refEdges, k*100)
		targetEdges = append(targetEdges, k*102)
	}
	ref := pulseTrace(1200, refEdges)
	target := pulseTrace(1200, targetEdges)

	a := SampleRateAligner{RefRate: 100, TargetRate: 100}
	p, _ := a.Align(ref, target, NewParams(100))

	require.NotNil(t, p.SampleRate)
	assert.InDelta(t, 102.0, *p.SampleRate, 102.0*0.01)
	assert.True(t, p.IsGood())
}

func TestSampleRateAligner_RescalesLag(t *testing.T) {
	t.Parallel()

	var refEdges, targetEdges []int
	for k := 1; k <= 10; k++ {
		refEdges = append(refEdges, k*100)
		targetEdges = append(targetEdges, k*102)
	}
	ref := pulseTrace(1200, refEdges)
	target := pulseTrace(1200, targetEdges)

	p0 := Params{Lag: ptrFloat64(0.5), SampleRate: ptrFloat64(100)}
	a := SampleRateAligner{RefRate: 100, TargetRate: 100}
	p, _ := a.Align(ref, target, p0)

	require.NotNil(t, p.Lag)
	assert.InDelta(t, 0.5*1.02, *p.Lag, 1e-6)
}

func TestSampleRateAligner_InvalidWithOneEvent(t *testing.T) {
	t.Parallel()

	ref := pulseTrace(300, []int{100})
	target := pulseTrace(300, []int{100})

	a := SampleRateAligner{RefRate: 100, TargetRate: 100}
	p, _ := a.Align(ref, target, NewParams(100))

	assert.False(t, p.IsGood(), "single event yields no gaps")
	assert.True(t, math.IsNaN(*p.SampleRate))
}

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.True(t, math.IsNaN(median(nil)))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}
