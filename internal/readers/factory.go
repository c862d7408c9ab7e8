package readers

import (
	"fmt"

	"github.com/banshee-data/camsync/internal/align"
)

// EphysOptions collects the settings shared by all electrophysiology
// readers. Pointer fields fall back to the package defaults when nil.
type EphysOptions struct {
	Path      string
	Rate      float64
	Threshold *float64
	Channel   *int
	TimeStart *float64
	TimeEnd   *float64
}

// NewEphysReader builds the reader for an electrophysiology recording
// format. Known formats are "allego", "openephys", and "dsi".
func NewEphysReader(format string, opts EphysOptions) (align.SignalReader, error) {
	switch format {
	case "allego":
		return &AllegoReader{
			Path:      opts.Path,
			Rate:      opts.Rate,
			Threshold: opts.Threshold,
			Channel:   opts.Channel,
			TimeStart: opts.TimeStart,
			TimeEnd:   opts.TimeEnd,
		}, nil
	case "openephys":
		return &OpenEphysReader{
			Dir:       opts.Path,
			Rate:      opts.Rate,
			Threshold: opts.Threshold,
			Channel:   opts.Channel,
			TimeStart: opts.TimeStart,
			TimeEnd:   opts.TimeEnd,
		}, nil
	case "dsi":
		return &DSIReader{
			Path:      opts.Path,
			Rate:      opts.Rate,
			Threshold: opts.Threshold,
			TimeStart: opts.TimeStart,
			TimeEnd:   opts.TimeEnd,
		}, nil
	default:
		return nil, fmt.Errorf("unknown ephys format %q", format)
	}
}
