package readers

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// AllegoReader reads the sync channel from an Allego XDAT recording: a JSON
// sidecar (the configured source, `<root>_data.xdat.json`) describing the
// channel layout, next to the raw little-endian float32 interleaved payload
// `<root>_data.xdat`. The analog channel is thresholded directly into a
// level trace.
type AllegoReader struct {
	// Path is the `_data.xdat.json` metadata sidecar.
	Path string
	Rate float64
	// Threshold is the voltage threshold; nil means 0.1.
	Threshold *float64
	// Channel is the sync channel index; nil means 32.
	Channel   *int
	TimeStart *float64
	TimeEnd   *float64
}

type allegoMeta struct {
	Status struct {
		SampFreq float64 `json:"samp_freq"`
		Signals  struct {
			Total int `json:"total"`
		} `json:"signals"`
	} `json:"status"`
}

// Source implements align.SignalReader.
func (r *AllegoReader) Source() string { return r.Path }

// SampleRate implements align.SignalReader.
func (r *AllegoReader) SampleRate() float64 { return r.Rate }

// TimeBounds implements align.SignalReader.
func (r *AllegoReader) TimeBounds() (*float64, *float64) { return r.TimeStart, r.TimeEnd }

// RootPath strips the `_data.xdat.json` suffix from the sidecar path.
func (r *AllegoReader) RootPath() string {
	base := filepath.Base(r.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base)) // .json
	base = strings.TrimSuffix(base, filepath.Ext(base)) // .xdat
	base = strings.TrimSuffix(base, "_data")
	return filepath.Join(filepath.Dir(r.Path), base)
}

// LoadTrace implements align.SignalReader. Time bounds are honored by
// seeking to the first in-range sample rather than reading and discarding.
func (r *AllegoReader) LoadTrace() (trace.Trace, error) {
	metaBytes, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read allego metadata %s: %w", r.Path, err)
	}
	var meta allegoMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parse allego metadata %s: %w", r.Path, err)
	}
	nch := meta.Status.Signals.Total
	if nch <= 0 {
		return nil, fmt.Errorf("allego metadata %s: no signals", r.Path)
	}
	if meta.Status.SampFreq != 0 && meta.Status.SampFreq != r.Rate {
		monitoring.Warnf("allego stored sample rate %.1f != configured %.1f", meta.Status.SampFreq, r.Rate)
	}
	ch := intOr(r.Channel, defaultSyncChannel)
	if ch >= nch {
		return nil, fmt.Errorf("allego channel %d out of range (%d channels)", ch, nch)
	}

	dataPath := strings.TrimSuffix(r.Path, ".json")
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open allego data %s: %w", dataPath, err)
	}
	defer f.Close()

	const sampleBytes = 4
	frameSize := nch * sampleBytes
	startSample, endSample, err := r.sampleRange(f, frameSize)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(int64(startSample)*int64(frameSize), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek allego data %s: %w", dataPath, err)
	}

	thr := floatOr(r.Threshold, defaultAnalogThreshold)
	frame := make([]byte, frameSize)
	var vals []float64
	for s := startSample; endSample < 0 || s < endSample; s++ {
		if _, err := io.ReadFull(f, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("read allego data %s: %w", dataPath, err)
		}
		bits := binary.LittleEndian.Uint32(frame[ch*sampleBytes:])
		vals = append(vals, float64(math.Float32frombits(bits)))
	}
	return thresholdAnalog(vals, thr), nil
}

// sampleRange converts the optional time bounds to sample indices. An
// endSample of -1 means read to EOF.
func (r *AllegoReader) sampleRange(f *os.File, frameSize int) (startSample, endSample int, err error) {
	endSample = -1
	if r.TimeStart != nil {
		startSample = int(*r.TimeStart * r.Rate)
	}
	if r.TimeEnd != nil {
		endSample = int(*r.TimeEnd * r.Rate)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat allego data: %w", err)
	}
	total := int(info.Size()) / frameSize
	if startSample > total {
		startSample = total
	}
	if endSample > total {
		endSample = total
	}
	return startSample, endSample, nil
}
