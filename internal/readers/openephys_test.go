package readers

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeOpenEphysFixture lays out structure.oebin and a nested
// continuous.dat with one int16 channel at bit_volts 0.5.
func writeOpenEphysFixture(t *testing.T, samples []int16) string {
	t.Helper()
	dir := t.TempDir()

	oebin := `{"continuous":[{"sample_rate":1000,"num_channels":1,` +
		`"channels":[{"bit_volts":0.5}]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "structure.oebin"), []byte(oebin), 0o644))

	sub := filepath.Join(dir, "continuous", "Acquisition_Board-100.0")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	data := make([]byte, 0, len(samples)*2)
	for _, v := range samples {
		data = binary.LittleEndian.AppendUint16(data, uint16(v))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "continuous.dat"), data, 0o644))
	return dir
}

func TestOpenEphysReader_LoadTrace(t *testing.T) {
	t.Parallel()
	// Edge-encoded sync: a positive deflection (+4 raw = 2.0 after bit
	// volts) marks the onset at sample 1, a negative one the offset at
	// sample 4.
	dir := writeOpenEphysFixture(t, []int16{0, 4, 0, 0, -4, 0})

	ch := 0
	r := &OpenEphysReader{Dir: dir, Rate: 1000, Channel: &ch}
	tr, err := r.LoadTrace()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 1, 0, 0}, []int(tr))
}

func TestOpenEphysReader_TrailingOnsetDropped(t *testing.T) {
	t.Parallel()
	// An onset whose offset was never recorded yields no pulse.
	dir := writeOpenEphysFixture(t, []int16{0, 4, 0})

	ch := 0
	r := &OpenEphysReader{Dir: dir, Rate: 1000, Channel: &ch}
	tr, err := r.LoadTrace()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, []int(tr))
}

func TestOpenEphysReader_ChannelOutOfRange(t *testing.T) {
	t.Parallel()
	dir := writeOpenEphysFixture(t, []int16{0, 4})

	r := &OpenEphysReader{Dir: dir, Rate: 1000}
	_, err := r.LoadTrace()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestOpenEphysReader_MissingData(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	oebin := `{"continuous":[{"sample_rate":1000,"num_channels":1,"channels":[{"bit_volts":1}]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "structure.oebin"), []byte(oebin), 0o644))

	ch := 0
	r := &OpenEphysReader{Dir: dir, Rate: 1000, Channel: &ch}
	_, err := r.LoadTrace()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continuous.dat")
}

func TestPulsesFromDeflections(t *testing.T) {
	t.Parallel()

	t.Run("offset_before_first_onset_ignored", func(t *testing.T) {
		t.Parallel()
		tr := pulsesFromDeflections([]float64{-2, 0, 2, 0, -2, 0}, 0.1)
		assert.Equal(t, []int{0, 0, 1, 1, 0, 0}, []int(tr))
	})

	t.Run("two_pulses", func(t *testing.T) {
		t.Parallel()
		tr := pulsesFromDeflections([]float64{0, 2, 0, -2, 0, 2, 0, -2}, 0.1)
		assert.Equal(t, []int{0, 1, 1, 0, 0, 1, 1, 0}, []int(tr))
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, pulsesFromDeflections(nil, 0.1))
	})
}
