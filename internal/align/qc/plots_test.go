package qc

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camsync/internal/trace"
)

func TestSaveStagePlot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	diags := map[string]StageDiagnostic{
		"crosscorr.png": CrossCorrelation{
			Corr:      []float64{0, 1, 3, 1, 0},
			PaddedLen: 3,
			LagIndex:  0,
		},
		"regression.png": Regression{
			RefTimes:    []float64{1, 2, 3},
			TargetTimes: []float64{1.1, 2.1, 3.1},
			Fitted:      []float64{1.1, 2.1, 3.1},
		},
		"gaps.png": GapHistogram{GapDiffs: []float64{0.01, -0.02, 0.015, 0}},
	}
	for name, d := range diags {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveStagePlot(path, d))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestSaveFinalComparison(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "final.png")

	ref := trace.Trace{0, 1, 1, 0, 0, 1, 0, 0}
	target := trace.Trace{0, 0, 1, 1, 0, 0, 1, 0}
	require.NoError(t, SaveFinalComparison(path, ref, target, 100, 100, 101, 0.01))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSaveFinalComparison_EmptyTraces(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "final.png")

	// No pulses: zoom panels stay empty but the plot still renders.
	require.NoError(t, SaveFinalComparison(path, make(trace.Trace, 10), make(trace.Trace, 10), 100, 100, 100, 0))
}

func TestSaveBrightnessPlot(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "brightness.png")
	require.NoError(t, SaveBrightnessPlot(path, []float64{0.1, 0.2, 12.5, 0.3}, 10.0))
}

func TestSaveCropBox(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bbox.png")

	frame := image.NewGray(image.Rect(0, 0, 64, 48))
	require.NoError(t, SaveCropBox(path, frame, 10, 50, 5, 40))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
