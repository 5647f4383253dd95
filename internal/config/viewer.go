package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical viewer defaults file.
const DefaultConfigPath = "config/viewer.defaults.json"

// DefaultMediaURLTemplate is where scaled session videos are published.
const DefaultMediaURLTemplate = "https://viz.internationalbrainlab.org/WebGL/{session}_{camera}_scaled.mp4"

// ViewerConfig is the root configuration for the trial viewer. Every field is
// optional; the Get* methods supply defaults for anything omitted.
type ViewerConfig struct {
	// Playback
	TickInterval            *string  `json:"tick_interval,omitempty"` // duration string like "16ms"
	GoCueDuration           *string  `json:"go_cue_duration,omitempty"`
	OutcomeCueDuration      *string  `json:"outcome_cue_duration,omitempty"`
	WheelUnitsPerRevolution *float64 `json:"wheel_units_per_revolution,omitempty"`
	LoadTimeout             *string  `json:"load_timeout,omitempty"`

	// Simulated media
	PreparePolls     *int     `json:"prepare_polls,omitempty"`
	VideoFPS         *float64 `json:"video_fps,omitempty"`
	MediaURLTemplate *string  `json:"media_url_template,omitempty"`

	// Serving
	Listen      *string `json:"listen,omitempty"`
	GRPCListen  *string `json:"grpc_listen,omitempty"`
	CatalogPath *string `json:"catalog_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyViewerConfig returns a ViewerConfig with all fields unset.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// DefaultViewerConfig returns a config with every field set to its default.
func DefaultViewerConfig() *ViewerConfig {
	return &ViewerConfig{
		TickInterval:            ptrString("16ms"),
		GoCueDuration:           ptrString("200ms"),
		OutcomeCueDuration:      ptrString("500ms"),
		WheelUnitsPerRevolution: ptrFloat64(2 * math.Pi),
		LoadTimeout:             ptrString("30s"),
		PreparePolls:            ptrInt(3),
		VideoFPS:                ptrFloat64(60),
		MediaURLTemplate:        ptrString(DefaultMediaURLTemplate),
		Listen:                  ptrString(":8080"),
		GRPCListen:              ptrString(":50051"),
		CatalogPath:             ptrString("trialviewer.db"),
	}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file. Fields omitted from
// the file fall back to defaults, so partial configs are safe.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// a parent. Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *ViewerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/ and cmd/trialviewer/
	}
	for _, path := range candidates {
		if cfg, err := LoadViewerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ViewerConfig) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"tick_interval", c.TickInterval},
		{"go_cue_duration", c.GoCueDuration},
		{"outcome_cue_duration", c.OutcomeCueDuration},
		{"load_timeout", c.LoadTimeout},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.v)
		}
	}

	if c.WheelUnitsPerRevolution != nil && *c.WheelUnitsPerRevolution <= 0 {
		return fmt.Errorf("wheel_units_per_revolution must be positive, got %f", *c.WheelUnitsPerRevolution)
	}
	if c.PreparePolls != nil && *c.PreparePolls < 0 {
		return fmt.Errorf("prepare_polls must be non-negative, got %d", *c.PreparePolls)
	}
	if c.VideoFPS != nil && *c.VideoFPS <= 0 {
		return fmt.Errorf("video_fps must be positive, got %f", *c.VideoFPS)
	}
	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetTickInterval returns the playback tick interval.
func (c *ViewerConfig) GetTickInterval() time.Duration {
	return parseDurationOr(c.TickInterval, 16*time.Millisecond)
}

// GetGoCueDuration returns how long the go cue stays visible.
func (c *ViewerConfig) GetGoCueDuration() time.Duration {
	return parseDurationOr(c.GoCueDuration, 200*time.Millisecond)
}

// GetOutcomeCueDuration returns how long the outcome cue stays visible.
func (c *ViewerConfig) GetOutcomeCueDuration() time.Duration {
	return parseDurationOr(c.OutcomeCueDuration, 500*time.Millisecond)
}

// GetLoadTimeout bounds the wait for tracks to prepare at load.
func (c *ViewerConfig) GetLoadTimeout() time.Duration {
	return parseDurationOr(c.LoadTimeout, 30*time.Second)
}

// GetWheelUnitsPerRevolution returns the encoder units in one wheel turn.
func (c *ViewerConfig) GetWheelUnitsPerRevolution() float64 {
	if c.WheelUnitsPerRevolution == nil {
		return 2 * math.Pi // radians
	}
	return *c.WheelUnitsPerRevolution
}

// GetPreparePolls returns the number of readiness polls a simulated track
// needs after a seek.
func (c *ViewerConfig) GetPreparePolls() int {
	if c.PreparePolls == nil {
		return 3
	}
	return *c.PreparePolls
}

// GetVideoFPS returns the simulated video frame rate.
func (c *ViewerConfig) GetVideoFPS() float64 {
	if c.VideoFPS == nil {
		return 60
	}
	return *c.VideoFPS
}

// GetMediaURLTemplate returns the per-session video URL template.
func (c *ViewerConfig) GetMediaURLTemplate() string {
	if c.MediaURLTemplate == nil || *c.MediaURLTemplate == "" {
		return DefaultMediaURLTemplate
	}
	return *c.MediaURLTemplate
}

// GetListen returns the HTTP listen address.
func (c *ViewerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetGRPCListen returns the host bridge listen address.
func (c *ViewerConfig) GetGRPCListen() string {
	if c.GRPCListen == nil || *c.GRPCListen == "" {
		return ":50051"
	}
	return *c.GRPCListen
}

// GetCatalogPath returns the sqlite catalog path.
func (c *ViewerConfig) GetCatalogPath() string {
	if c.CatalogPath == nil || *c.CatalogPath == "" {
		return "trialviewer.db"
	}
	return *c.CatalogPath
}
