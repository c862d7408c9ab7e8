// Package align estimates the deterministic mapping from a target
// recording's clock to a reference recording's clock: an offset (lag), a
// clock-rate correction (slope / corrected sample rate) and a validity
// verdict, refined over an ordered sequence of alignment stages.
package align

// Params is the immutable alignment estimate passed between stages. Each
// stage derives a fresh value; nothing mutates a Params in place, which
// keeps the pipeline's "last good value wins" commit policy trivially
// correct.
//
// Sign convention for Lag: positive means the target recording started
// before the reference (the target head must be truncated to align);
// negative means the reference started first. Lag is always expressed in
// seconds relative to the uncropped original signals.
type Params struct {
	Lag        *float64
	Slope      *float64
	SampleRate *float64
	Good       *bool
}

// NewParams seeds the initial estimate with the target's nominal sample
// rate. Lag, slope and validity stay unset until a stage produces them.
func NewParams(sampleRate float64) Params {
	return Params{SampleRate: ptrFloat64(sampleRate)}
}

// LagOr returns the lag, or def when no stage has set one.
func (p Params) LagOr(def float64) float64 {
	if p.Lag == nil {
		return def
	}
	return *p.Lag
}

// SampleRateOr returns the believed target sample rate, or def when unset.
func (p Params) SampleRateOr(def float64) float64 {
	if p.SampleRate == nil {
		return def
	}
	return *p.SampleRate
}

// IsGood reports whether the producing stage judged its estimate
// trustworthy. Unset counts as not good.
func (p Params) IsGood() bool {
	return p.Good != nil && *p.Good
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
