package readers

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// OpenEphysReader reads the sync channel from an OpenEphys binary-format
// recording directory: `structure.oebin` describes the continuous streams
// and a `continuous.dat` somewhere below holds interleaved little-endian
// int16 samples scaled by the per-channel bit-volts factor.
//
// The sync channel encodes edges, not levels: a brief positive deflection
// marks a pulse onset and a brief negative deflection marks its offset.
// Onsets are paired with the next offset and the span between them is
// reconstructed as the on-interval.
type OpenEphysReader struct {
	// Dir is the recording directory containing structure.oebin.
	Dir  string
	Rate float64
	// Threshold is the voltage threshold; nil means 0.1.
	Threshold *float64
	// Channel is the sync channel index; nil means 32.
	Channel   *int
	TimeStart *float64
	TimeEnd   *float64
}

type oebinMeta struct {
	Continuous []struct {
		SampleRate  float64 `json:"sample_rate"`
		NumChannels int     `json:"num_channels"`
		Channels    []struct {
			BitVolts float64 `json:"bit_volts"`
		} `json:"channels"`
	} `json:"continuous"`
}

// Source implements align.SignalReader.
func (r *OpenEphysReader) Source() string { return r.Dir }

// SampleRate implements align.SignalReader.
func (r *OpenEphysReader) SampleRate() float64 { return r.Rate }

// TimeBounds implements align.SignalReader.
func (r *OpenEphysReader) TimeBounds() (*float64, *float64) { return r.TimeStart, r.TimeEnd }

// RootPath is the recording directory itself; QC artifacts and the
// alignment record land next to it, suffixed onto the directory name.
func (r *OpenEphysReader) RootPath() string {
	return filepath.Clean(r.Dir)
}

// LoadTrace implements align.SignalReader.
func (r *OpenEphysReader) LoadTrace() (trace.Trace, error) {
	metaPath := filepath.Join(r.Dir, "structure.oebin")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read oebin %s: %w", metaPath, err)
	}
	var meta oebinMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parse oebin %s: %w", metaPath, err)
	}
	if len(meta.Continuous) == 0 {
		return nil, fmt.Errorf("oebin %s: no continuous streams", metaPath)
	}
	stream := meta.Continuous[0]
	if stream.NumChannels <= 0 {
		return nil, fmt.Errorf("oebin %s: stream has no channels", metaPath)
	}
	if stream.SampleRate != 0 && stream.SampleRate != r.Rate {
		monitoring.Warnf("openephys stored sample rate %.1f != configured %.1f", stream.SampleRate, r.Rate)
	}
	ch := intOr(r.Channel, defaultSyncChannel)
	if ch >= stream.NumChannels {
		return nil, fmt.Errorf("openephys channel %d out of range (%d channels)", ch, stream.NumChannels)
	}
	bitVolts := 1.0
	if ch < len(stream.Channels) {
		bitVolts = stream.Channels[ch].BitVolts
	}

	dataPath, err := findContinuousDat(r.Dir)
	if err != nil {
		return nil, err
	}
	vals, err := r.readChannel(dataPath, stream.NumChannels, ch, bitVolts)
	if err != nil {
		return nil, err
	}
	return pulsesFromDeflections(vals, floatOr(r.Threshold, defaultAnalogThreshold)), nil
}

// findContinuousDat locates the single continuous.dat below dir.
func findContinuousDat(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "continuous.dat" {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("no continuous.dat under %s", dir)
	}
	return found, nil
}

// readChannel extracts one channel from the interleaved int16 payload,
// honoring the time bounds by sample index.
func (r *OpenEphysReader) readChannel(path string, nch, ch int, bitVolts float64) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openephys data %s: %w", path, err)
	}
	const sampleBytes = 2
	frameSize := nch * sampleBytes
	total := len(raw) / frameSize

	start, end := 0, total
	if r.TimeStart != nil {
		start = int(*r.TimeStart * r.Rate)
	}
	if r.TimeEnd != nil {
		if e := int(*r.TimeEnd * r.Rate); e < end {
			end = e
		}
	}
	if start > total {
		start = total
	}

	vals := make([]float64, 0, end-start)
	for s := start; s < end; s++ {
		off := s*frameSize + ch*sampleBytes
		raw16 := int16(binary.LittleEndian.Uint16(raw[off:]))
		vals = append(vals, float64(raw16)*bitVolts)
	}
	return vals, nil
}

// pulsesFromDeflections reconstructs on-intervals from an edge-encoded
// channel. An onset is the rising edge of v > thr; an offset is the
// rising edge of -v > thr. Each onset is paired with the next offset and
// the span between them is set high; a trailing onset whose offset was
// never recorded is dropped.
func pulsesFromDeflections(vals []float64, thr float64) trace.Trace {
	out := make(trace.Trace, len(vals))
	var onsets, offsets []int
	for k := 0; k+1 < len(vals); k++ {
		if vals[k] <= thr && vals[k+1] > thr {
			onsets = append(onsets, k+1)
		}
		if -vals[k] <= thr && -vals[k+1] > thr {
			offsets = append(offsets, k+1)
		}
	}
	oi := 0
	for _, onset := range onsets {
		for oi < len(offsets) && offsets[oi] <= onset {
			oi++
		}
		if oi == len(offsets) {
			break
		}
		for k := onset; k < offsets[oi]; k++ {
			out[k] = 1
		}
	}
	return out
}
