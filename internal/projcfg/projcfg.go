// Package projcfg loads the per-project synchronization configuration: the
// reference recording, the target recordings, and the stage protocol. The
// file is JSON, checked twice on load, first against an embedded JSON
// schema and then by typed validation.
package projcfg

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/banshee-data/camsync/internal/align"
	"github.com/banshee-data/camsync/internal/readers"
)

//go:embed config.schema.json
var schemaJSON []byte

// Reader kinds accepted in ReaderConfig.Kind.
const (
	KindVideo     = "video"
	KindAllego    = "allego"
	KindOpenEphys = "openephys"
	KindDSI       = "dsi"
)

// maxConfigSize bounds the config file size (1MB).
const maxConfigSize = 1 * 1024 * 1024

// ReaderConfig describes one recording. Pointer fields fall back to the
// reader defaults when omitted.
type ReaderConfig struct {
	// Kind selects the reader: "video", "allego", "openephys", or "dsi".
	Kind string `json:"kind"`

	// Path is the recording source: a video file, an Allego sidecar, an
	// OpenEphys directory, or a DSI export.
	Path string `json:"path"`

	// SampleRate is the nominal sample rate in Hz.
	SampleRate float64 `json:"sample_rate"`

	// Threshold overrides the reader's detection threshold.
	Threshold *float64 `json:"threshold,omitempty"`

	// Channel is the sync channel index for ephys readers.
	Channel *int `json:"channel,omitempty"`

	TimeStart *float64 `json:"time_start,omitempty"`
	TimeEnd   *float64 `json:"time_end,omitempty"`

	// Crop is the LED region for video readers.
	Crop *readers.Crop `json:"crop,omitempty"`
}

// SyncConfig carries the stage protocol tunables. Omitted fields take the
// align package defaults.
type SyncConfig struct {
	Pipeline          []string `json:"pipeline,omitempty"`
	LEDThreshold      *float64 `json:"led_threshold,omitempty"`
	MaxRegressionRMSE *float64 `json:"max_regression_rmse,omitempty"`
	RefView           *string  `json:"ref_view,omitempty"`
	RefCrop           *string  `json:"ref_crop,omitempty"`
}

// Config is the root project configuration.
type Config struct {
	// RunID labels this session in the database and report; empty means
	// the CLI generates one.
	RunID string `json:"run_id,omitempty"`

	Sync      SyncConfig     `json:"sync"`
	Reference ReaderConfig   `json:"reference"`
	Targets   []ReaderConfig `json:"targets"`
}

// Load reads, schema-checks, and validates a project configuration.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse config JSON: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// Validate checks the typed constraints the schema cannot express.
func (c *Config) Validate() error {
	if err := c.Reference.validate("reference"); err != nil {
		return err
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i := range c.Targets {
		if err := c.Targets[i].validate(fmt.Sprintf("targets[%d]", i)); err != nil {
			return err
		}
	}
	if c.Sync.LEDThreshold != nil {
		if *c.Sync.LEDThreshold <= 0 || *c.Sync.LEDThreshold > 1 {
			return fmt.Errorf("led_threshold must be in (0, 1], got %f", *c.Sync.LEDThreshold)
		}
	}
	if c.Sync.MaxRegressionRMSE != nil && *c.Sync.MaxRegressionRMSE <= 0 {
		return fmt.Errorf("max_regression_rmse must be positive, got %f", *c.Sync.MaxRegressionRMSE)
	}
	return nil
}

func (rc *ReaderConfig) validate(where string) error {
	switch rc.Kind {
	case KindVideo, KindAllego, KindOpenEphys, KindDSI:
	case "":
		return fmt.Errorf("%s: kind is required", where)
	default:
		return fmt.Errorf("%s: unknown kind %q", where, rc.Kind)
	}
	if rc.Path == "" {
		return fmt.Errorf("%s: path is required", where)
	}
	if rc.SampleRate <= 0 {
		return fmt.Errorf("%s: sample_rate must be positive, got %f", where, rc.SampleRate)
	}
	if rc.Crop != nil && rc.Kind != KindVideo {
		return fmt.Errorf("%s: crop only applies to video readers", where)
	}
	if rc.Channel != nil && rc.Kind != KindAllego && rc.Kind != KindOpenEphys {
		return fmt.Errorf("%s: channel only applies to allego and openephys readers", where)
	}
	if rc.TimeStart != nil && rc.TimeEnd != nil && *rc.TimeStart >= *rc.TimeEnd {
		return fmt.Errorf("%s: time_start must be before time_end", where)
	}
	return nil
}

// AlignConfig resolves the stage protocol to an align.Config, filling
// omitted fields from the defaults.
func (c *Config) AlignConfig() align.Config {
	cfg := align.DefaultConfig()
	if len(c.Sync.Pipeline) > 0 {
		cfg.Pipeline = c.Sync.Pipeline
	}
	if c.Sync.LEDThreshold != nil {
		cfg.LEDThreshold = *c.Sync.LEDThreshold
	}
	if c.Sync.MaxRegressionRMSE != nil {
		cfg.MaxRegressionRMSE = *c.Sync.MaxRegressionRMSE
	}
	if c.Sync.RefView != nil {
		cfg.RefView = *c.Sync.RefView
	}
	if c.Sync.RefCrop != nil {
		cfg.RefCrop = *c.Sync.RefCrop
	}
	return cfg
}

// BuildReader instantiates the reader a ReaderConfig describes. The video
// detection threshold defaults to the protocol's LED threshold when the
// reader does not set its own.
func (c *Config) BuildReader(rc ReaderConfig) (align.SignalReader, error) {
	switch rc.Kind {
	case KindVideo:
		threshold := rc.Threshold
		if threshold == nil && c.Sync.LEDThreshold != nil {
			threshold = c.Sync.LEDThreshold
		}
		var crop readers.Crop
		if rc.Crop != nil {
			crop = *rc.Crop
		}
		return &readers.VideoReader{
			Path:      rc.Path,
			Rate:      rc.SampleRate,
			Threshold: threshold,
			TimeStart: rc.TimeStart,
			TimeEnd:   rc.TimeEnd,
			Crop:      crop,
		}, nil
	default:
		return readers.NewEphysReader(rc.Kind, readers.EphysOptions{
			Path:      rc.Path,
			Rate:      rc.SampleRate,
			Threshold: rc.Threshold,
			Channel:   rc.Channel,
			TimeStart: rc.TimeStart,
			TimeEnd:   rc.TimeEnd,
		})
	}
}
