// Package readers turns raw recordings into binary event traces: a cropped
// video region's brightness, or an analog sync channel from one of several
// electrophysiology containers. Every reader satisfies align.SignalReader.
package readers

import (
	"github.com/banshee-data/camsync/internal/align"
	"github.com/banshee-data/camsync/internal/trace"
)

var (
	_ align.SignalReader = (*VideoReader)(nil)
	_ align.SignalReader = (*AllegoReader)(nil)
	_ align.SignalReader = (*OpenEphysReader)(nil)
	_ align.SignalReader = (*DSIReader)(nil)
)

// defaultAnalogThreshold is the voltage threshold applied when an ephys
// reader is configured without one.
const defaultAnalogThreshold = 0.1

// defaultSyncChannel is the analog channel carrying the sync pulse on both
// Allego and OpenEphys rigs.
const defaultSyncChannel = 32

// thresholdAnalog binarizes an analog series at thr.
func thresholdAnalog(vals []float64, thr float64) trace.Trace {
	out := make(trace.Trace, len(vals))
	for i, v := range vals {
		if v > thr {
			out[i] = 1
		}
	}
	return out
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
