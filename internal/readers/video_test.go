package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoReader_RootPath(t *testing.T) {
	t.Parallel()
	r := &VideoReader{Path: "/data/session1/cam0.avi"}
	assert.Equal(t, "/data/session1/cam0", r.RootPath())
}

func TestCrop_Resolve(t *testing.T) {
	t.Parallel()

	full := Crop{}
	l, ri, to, b := full.resolve(640, 480)
	assert.Equal(t, []int{0, 640, 0, 480}, []int{l, ri, to, b})

	left, right := 100, 200
	partial := Crop{Left: &left, Right: &right}
	l, ri, to, b = partial.resolve(640, 480)
	assert.Equal(t, []int{100, 200, 0, 480}, []int{l, ri, to, b})
}

func TestMeanOverCrop(t *testing.T) {
	t.Parallel()

	// 4x2 frame, crop the right 2x2 block: (3+4+7+8)/4.
	frame := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, 5.5, meanOverCrop(frame, 4, 2, 4, 0, 2))

	assert.Zero(t, meanOverCrop(frame, 4, 2, 2, 0, 2), "empty crop region")
}

func TestAnalyzeBrightness(t *testing.T) {
	t.Parallel()

	// 190 dark frames near 10 plus 10 bright frames at 100. The noise
	// floor lands just above the dark mode, so corrected bright samples
	// sit near 90 and the robust peak with them.
	brightness := make([]float64, 0, 200)
	for i := 0; i < 190; i++ {
		brightness = append(brightness, 10+float64(i%3)*0.1)
	}
	for i := 0; i < 10; i++ {
		brightness = append(brightness, 100)
	}

	corrected, peak := analyzeBrightness(brightness)
	require.Len(t, corrected, 200)
	assert.InDelta(t, 89, peak, 2)
	assert.Less(t, corrected[0], 1.0, "dark frames stay near zero after floor subtraction")
	assert.Greater(t, corrected[199], 85.0)
}

func TestAnalyzeBrightness_NoBrightFrames(t *testing.T) {
	t.Parallel()

	// All samples within the noise band: the peak falls back to the
	// maximum corrected value instead of a percentile of nothing.
	corrected, peak := analyzeBrightness([]float64{10, 10.2, 10.1, 10.3, 10.2})
	require.Len(t, corrected, 5)
	assert.Less(t, peak, noiseEpsilon)
}

func TestAnalyzeBrightness_Empty(t *testing.T) {
	t.Parallel()
	corrected, peak := analyzeBrightness(nil)
	assert.Nil(t, corrected)
	assert.Zero(t, peak)
}

func TestThresholdAnalog(t *testing.T) {
	t.Parallel()
	tr := thresholdAnalog([]float64{0, 0.05, 0.5, 1.2, 0.1}, 0.1)
	assert.Equal(t, []int{0, 0, 1, 1, 0}, []int(tr))
}
