package align

import (
	"fmt"

	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/trace"
)

// SignalReader is the contract the pipeline requires of an event source:
// produce a binary event trace at a stated nominal rate, optionally bounded
// by time, and resolve the canonical path root used to name persisted
// output. Concrete implementations live in internal/readers.
type SignalReader interface {
	// LoadTrace reads the source and returns its binary event trace. Read
	// errors are fatal to the pipeline.
	LoadTrace() (trace.Trace, error)

	// RootPath is the path stem (directory + base filename, format-specific
	// suffix stripped) all diagnostic/output filenames derive from.
	RootPath() string

	// Source identifies the underlying file or stream.
	Source() string

	// SampleRate is the nominal sample rate of the trace.
	SampleRate() float64

	// TimeBounds returns the optional read bounds in seconds; nil means
	// unbounded on that side.
	TimeBounds() (start, end *float64)
}

// Aligner is one refinement strategy. Each invocation is a pure function of
// the two traces and the current parameters; the returned diagnostic is nil
// when the stage was built without debug plotting.
type Aligner interface {
	Name() string
	Align(ref, target trace.Trace, p Params) (Params, qc.StageDiagnostic)
}

// Stage names accepted in Config.Pipeline.
const (
	StageCrossCorrelation = "crosscorr"
	StageRegression       = "regression"
	StageSampleRate       = "samplerate"
)

// Config carries the constructor-injected tunables for one synchronization
// run. It is explicit state passed at construction, never discovered from
// ambient configuration.
type Config struct {
	// Pipeline is the ordered list of stage names to apply.
	Pipeline []string `json:"pipeline"`

	// LEDThreshold is the video detection threshold fraction.
	LEDThreshold float64 `json:"led_threshold"`

	// MaxRegressionRMSE bounds the regression residual for a stage to be
	// judged valid, in seconds.
	MaxRegressionRMSE float64 `json:"max_regression_rmse"`

	// RefView and RefCrop identify the reference camera view and its crop
	// preset in the surrounding project configuration.
	RefView string `json:"ref_view"`
	RefCrop string `json:"ref_crop"`
}

// DefaultConfig returns the default three-stage refinement protocol.
func DefaultConfig() Config {
	return Config{
		Pipeline:          []string{StageCrossCorrelation, StageRegression, StageSampleRate},
		LEDThreshold:      0.9,
		MaxRegressionRMSE: 1e-2,
		RefView:           "bottomcenter",
		RefCrop:           "default",
	}
}

// BuildStages instantiates the configured aligners for one reference/target
// rate pair. An unknown stage name is a configuration error, caught here at
// construction time.
func (c Config) BuildStages(refRate, targetRate float64, debug bool) ([]Aligner, error) {
	stages := make([]Aligner, 0, len(c.Pipeline))
	for _, name := range c.Pipeline {
		switch name {
		case StageCrossCorrelation:
			stages = append(stages, CrossCorrelationAligner{
				RefRate:    refRate,
				TargetRate: targetRate,
				Debug:      debug,
			})
		case StageRegression:
			maxRMSE := c.MaxRegressionRMSE
			if maxRMSE == 0 {
				maxRMSE = 1e-2
			}
			stages = append(stages, RegressionAligner{
				RefRate:    refRate,
				TargetRate: targetRate,
				MaxRMSE:    maxRMSE,
				Debug:      debug,
			})
		case StageSampleRate:
			stages = append(stages, SampleRateAligner{
				RefRate:    refRate,
				TargetRate: targetRate,
				Debug:      debug,
			})
		default:
			return nil, fmt.Errorf("unknown alignment stage %q (only %q, %q, %q allowed)",
				name, StageCrossCorrelation, StageRegression, StageSampleRate)
		}
	}
	return stages, nil
}

// cropForParams trims both traces down to their overlapping region using
// the currently accepted lag. The target crop uses the believed sample
// rate, falling back to the nominal rate before any stage has refined it.
func cropForParams(ref, target trace.Trace, p Params, refRate, targetNominal float64) (trace.Trace, trace.Trace) {
	return trace.CropPair(ref, target, p.LagOr(0), refRate, p.SampleRateOr(targetNominal))
}
