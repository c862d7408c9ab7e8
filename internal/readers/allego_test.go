package readers

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAllegoFixture lays out a sidecar plus data file with nch interleaved
// float32 channels and returns the sidecar path.
func writeAllegoFixture(t *testing.T, rate float64, nch int, samples [][]float32) string {
	t.Helper()
	dir := t.TempDir()

	meta := []byte(fmt.Sprintf(`{"status":{"samp_freq":%g,"signals":{"total":%d}}}`, rate, nch))
	sidecar := filepath.Join(dir, "rec_data.xdat.json")
	require.NoError(t, os.WriteFile(sidecar, meta, 0o644))

	data := make([]byte, 0, len(samples)*nch*4)
	for _, frame := range samples {
		require.Len(t, frame, nch)
		for _, v := range frame {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec_data.xdat"), data, 0o644))
	return sidecar
}

func TestAllegoReader_LoadTrace(t *testing.T) {
	t.Parallel()
	sidecar := writeAllegoFixture(t, 1000, 2, [][]float32{
		{9, 0.0},
		{9, 0.8},
		{9, 1.2},
		{9, 0.05},
		{9, 0.5},
	})

	ch := 1
	r := &AllegoReader{Path: sidecar, Rate: 1000, Channel: &ch}
	tr, err := r.LoadTrace()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 0, 1}, []int(tr))
}

func TestAllegoReader_TimeBounds(t *testing.T) {
	t.Parallel()
	sidecar := writeAllegoFixture(t, 10, 1, [][]float32{
		{1}, {1}, {0}, {1}, {1},
	})

	ch := 0
	start, end := 0.1, 0.4
	r := &AllegoReader{Path: sidecar, Rate: 10, Channel: &ch, TimeStart: &start, TimeEnd: &end}
	tr, err := r.LoadTrace()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, []int(tr))
}

func TestAllegoReader_ChannelOutOfRange(t *testing.T) {
	t.Parallel()
	sidecar := writeAllegoFixture(t, 1000, 2, [][]float32{{0, 0}})

	ch := 5
	r := &AllegoReader{Path: sidecar, Rate: 1000, Channel: &ch}
	_, err := r.LoadTrace()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestAllegoReader_RootPath(t *testing.T) {
	t.Parallel()
	r := &AllegoReader{Path: "/data/session1/rec_data.xdat.json"}
	assert.Equal(t, "/data/session1/rec", r.RootPath())
}
