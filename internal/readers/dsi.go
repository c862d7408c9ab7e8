package readers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/camsync/internal/trace"
)

// DSIReader reads a DSI telemetry export: a tab-separated file of
// timestamp and signal columns, one sample per line, with an optional
// header line. The signal column is thresholded into a level trace.
type DSIReader struct {
	Path string
	Rate float64
	// Threshold is the signal threshold; nil means 0.1.
	Threshold *float64
	TimeStart *float64
	TimeEnd   *float64
}

// Source implements align.SignalReader.
func (r *DSIReader) Source() string { return r.Path }

// SampleRate implements align.SignalReader.
func (r *DSIReader) SampleRate() float64 { return r.Rate }

// TimeBounds implements align.SignalReader.
func (r *DSIReader) TimeBounds() (*float64, *float64) { return r.TimeStart, r.TimeEnd }

// RootPath strips the extension and any `_led` export suffix, so QC
// artifacts group with the rest of the session's files.
func (r *DSIReader) RootPath() string {
	base := strings.TrimSuffix(r.Path, filepath.Ext(r.Path))
	return strings.TrimSuffix(base, "_led")
}

// LoadTrace implements align.SignalReader. Time bounds are applied by
// sample index against the nominal rate, matching the other analog
// readers; the file's own timestamp column is not trusted for cropping.
func (r *DSIReader) LoadTrace() (trace.Trace, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("open dsi export %s: %w", r.Path, err)
	}
	defer f.Close()

	start, end := 0, -1
	if r.TimeStart != nil {
		start = int(*r.TimeStart * r.Rate)
	}
	if r.TimeEnd != nil {
		end = int(*r.TimeEnd * r.Rate)
	}

	thr := floatOr(r.Threshold, defaultAnalogThreshold)
	var vals []float64
	sample := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("dsi export %s: malformed line %q", r.Path, line)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			// Header line. Only tolerated before any data.
			if sample == 0 && len(vals) == 0 {
				continue
			}
			return nil, fmt.Errorf("dsi export %s: bad signal value %q", r.Path, fields[1])
		}
		if sample >= start && (end < 0 || sample < end) {
			vals = append(vals, v)
		}
		sample++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dsi export %s: %w", r.Path, err)
	}
	return thresholdAnalog(vals, thr), nil
}
