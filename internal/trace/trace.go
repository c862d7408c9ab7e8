// Package trace provides binary event traces and the index-level operations
// the alignment stages are built on: rising-edge extraction, nearest-integer
// resampling, lag-based cropping and pulse segment lookup.
package trace

// Trace is a binary (0/1) signal sampled at a nominal rate. A 1 marks
// detection of a synchronization pulse (LED flash or voltage level).
type Trace []int

// RisingEdges returns the indices immediately before each 0->1 transition,
// in strictly increasing order. An all-zero trace yields an empty result.
func RisingEdges(t Trace) []int {
	var edges []int
	for i := 0; i+1 < len(t); i++ {
		if t[i+1]-t[i] > 0 {
			edges = append(edges, i)
		}
	}
	return edges
}

// Resample converts t from srcRate to dstRate by nearest-integer decimation
// (srcRate > dstRate) or repetition (srcRate < dstRate). Non-integer rate
// ratios truncate to the nearest integer step; this is a deliberate
// approximation used only for coarse cross-correlation.
func Resample(t Trace, srcRate, dstRate float64) Trace {
	if srcRate > dstRate {
		step := int(srcRate / dstRate)
		if step < 1 {
			step = 1
		}
		out := make(Trace, 0, len(t)/step+1)
		for i := 0; i < len(t); i += step {
			out = append(out, t[i])
		}
		return out
	}
	rep := int(dstRate / srcRate)
	if rep < 1 {
		rep = 1
	}
	out := make(Trace, 0, len(t)*rep)
	for _, v := range t {
		for r := 0; r < rep; r++ {
			out = append(out, v)
		}
	}
	return out
}

// CropPair trims the pair of traces down to their overlapping region given a
// lag in seconds relative to the uncropped originals. A positive lag means
// the target recording started first, so the target head is dropped; a
// negative lag drops the reference head.
func CropPair(ref, target Trace, lag, refRate, targetRate float64) (Trace, Trace) {
	if lag > 0 {
		n := int(lag * targetRate)
		if n > len(target) {
			n = len(target)
		}
		target = target[n:]
	} else if lag < 0 {
		n := int(-lag * refRate)
		if n > len(ref) {
			n = len(ref)
		}
		ref = ref[n:]
	}
	return ref, target
}

// PadTo zero-pads the tail of t to length n. Traces already at least n
// samples long are returned unchanged.
func PadTo(t Trace, n int) Trace {
	if len(t) >= n {
		return t
	}
	out := make(Trace, n)
	copy(out, t)
	return out
}

// SegmentKind selects which pulse of a trace Segment locates.
type SegmentKind int

const (
	// FirstSegment is the first contiguous run of ones.
	FirstSegment SegmentKind = iota
	// MidSegment is the run nearest the middle of the pulse sequence.
	MidSegment
	// LastSegment is the final contiguous run of ones.
	LastSegment
)

// Segment returns the [start, end) bounds of the requested pulse. ok is
// false when the trace contains no pulses.
func Segment(t Trace, kind SegmentKind) (start, end int, ok bool) {
	var runs [][2]int
	inRun := false
	for i, v := range t {
		if v != 0 && !inRun {
			inRun = true
			start = i
		} else if v == 0 && inRun {
			inRun = false
			runs = append(runs, [2]int{start, i})
		}
	}
	if inRun {
		runs = append(runs, [2]int{start, len(t)})
	}
	if len(runs) == 0 {
		return 0, 0, false
	}

	var run [2]int
	switch kind {
	case FirstSegment:
		run = runs[0]
	case MidSegment:
		run = runs[len(runs)/2]
	default:
		run = runs[len(runs)-1]
	}
	return run[0], run[1], true
}
