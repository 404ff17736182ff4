// Package config - YAML configuration for the live pipeline.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/yolo"
	"github.com/nvr-ai/go-yolo/profiler"
)

// Config represents the application configuration.
type Config struct {
	Log        logger.LogConfig `yaml:"log"`
	Camera     CameraConfig     `yaml:"camera"`
	Engine     providers.Config `yaml:"engine"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Models     []model.Config   `yaml:"models"`
	// Active names the model loaded at startup.
	Active  model.Name    `yaml:"active"`
	Decode  DecodeConfig  `yaml:"decode"`
	Server  ServerConfig  `yaml:"server"`
	Profile ProfileConfig `yaml:"profile"`
}

// ProfileConfig enables the periodic runtime report.
type ProfileConfig struct {
	Enabled          bool `yaml:"enabled"`
	profiler.Options `yaml:",inline"`
}

// CameraConfig selects and configures the capture device.
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	// Resolution is a preset such as "720p"; explicit Width and Height take precedence.
	Resolution string `yaml:"resolution"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
}

// PreprocessConfig contains frame preparation settings.
type PreprocessConfig struct {
	// Filter is one of nearest, bilinear, catmullrom, lanczos.
	Filter string `yaml:"filter"`
}

// ServerConfig contains the results API settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DecodeOverrides replaces individual decode defaults. Nil fields keep the default.
type DecodeOverrides struct {
	ConfidenceThreshold *float32 `yaml:"confidence_threshold"`
	IoUThreshold        *float32 `yaml:"iou_threshold"`
	MinBoxSize          *float32 `yaml:"min_box_size"`
	MaskThreshold       *float32 `yaml:"mask_threshold"`
	KeypointVisibility  *float32 `yaml:"keypoint_visibility"`
	MaxDetections       *int     `yaml:"max_detections"`
}

// DecodeConfig holds decode overrides per model type.
type DecodeConfig struct {
	Detection    DecodeOverrides `yaml:"detection"`
	Segmentation DecodeOverrides `yaml:"segmentation"`
	Pose         DecodeOverrides `yaml:"pose"`
}

// For returns the decode parameters for t: yolo.DefaultConfig with the overrides applied.
func (d DecodeConfig) For(t model.Type) yolo.Config {
	cfg := yolo.DefaultConfig(t)

	var o DecodeOverrides
	switch t {
	case model.TypeDetection:
		o = d.Detection
	case model.TypeSegmentation:
		o = d.Segmentation
	case model.TypePose:
		o = d.Pose
	}

	if o.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *o.ConfidenceThreshold
	}
	if o.IoUThreshold != nil {
		cfg.IoUThreshold = *o.IoUThreshold
	}
	if o.MinBoxSize != nil {
		cfg.MinBoxSize = *o.MinBoxSize
	}
	if o.MaskThreshold != nil {
		cfg.MaskThreshold = *o.MaskThreshold
	}
	if o.KeypointVisibility != nil {
		cfg.KeypointVisibility = *o.KeypointVisibility
	}
	if o.MaxDetections != nil {
		cfg.MaxDetections = *o.MaxDetections
	}
	return cfg
}

// Load reads, defaults and validates the configuration file. An empty path yields the defaults.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - *Config: The configuration.
//   - error: An error if the file cannot be read or parsed, or fails validation.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read configuration file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse configuration")
		}
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Camera.Resolution == "" {
		c.Camera.Resolution = string(images.ResolutionTypeHD720p)
	}
	if res, err := images.GetResolutionByType(c.Camera.Resolution); err == nil {
		if c.Camera.Width == 0 {
			c.Camera.Width = res.Width
		}
		if c.Camera.Height == 0 {
			c.Camera.Height = res.Height
		}
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 30
	}

	if c.Engine.Backend == "" {
		c.Engine.Backend = providers.CPUProviderBackend
	}
	if c.Engine.DeviceType == "" {
		c.Engine.DeviceType = "CPU"
	}
	if c.Engine.Precision == "" {
		c.Engine.Precision = model.PrecisionFP32
	}

	if c.Preprocess.Filter == "" {
		c.Preprocess.Filter = images.BilinearFilter.String()
	}

	if len(c.Models) == 0 {
		c.Models = append([]model.Config(nil), models.Catalogue...)
	}
	for i := range c.Models {
		if c.Models[i].Family == "" {
			c.Models[i].Family = model.ModelFamilyYOLO
		}
	}
	if c.Active == "" {
		c.Active = c.Models[0].Name
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		problems = append(problems, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		problems = append(problems, fmt.Sprintf("invalid log.format: %s (must be: json or console)", c.Log.Format))
	}

	if c.Camera.DeviceID < 0 {
		problems = append(problems, fmt.Sprintf("camera.device_id must be >= 0, got: %d", c.Camera.DeviceID))
	}
	if _, err := images.GetResolutionByType(c.Camera.Resolution); err != nil {
		problems = append(problems, "camera: "+err.Error())
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 || c.Camera.FPS < 0 {
		problems = append(problems, "camera width, height and fps must be >= 0")
	}

	if err := c.Engine.Validate(); err != nil {
		problems = append(problems, "engine: "+err.Error())
	}
	if _, err := images.ParseResampleFilter(c.Preprocess.Filter); err != nil {
		problems = append(problems, "preprocess: "+err.Error())
	}

	seen := make(map[model.Name]bool, len(c.Models))
	for i, m := range c.Models {
		if err := m.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("models[%d]: %v", i, err))
		}
		if seen[m.Name] {
			problems = append(problems, fmt.Sprintf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
	}
	if !seen[c.Active] {
		problems = append(problems, fmt.Sprintf("active model %q is not configured", c.Active))
	}

	for _, t := range model.Types {
		d := c.Decode.For(t)
		if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
			problems = append(problems, fmt.Sprintf("decode.%s.confidence_threshold must be between 0 and 1, got: %.2f", t, d.ConfidenceThreshold))
		}
		if d.IoUThreshold <= 0 || d.IoUThreshold > 1 {
			problems = append(problems, fmt.Sprintf("decode.%s.iou_threshold must be in (0, 1], got: %.2f", t, d.IoUThreshold))
		}
		if d.MinBoxSize < 0 || d.MaxDetections < 0 {
			problems = append(problems, fmt.Sprintf("decode.%s: min_box_size and max_detections must be >= 0", t))
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		problems = append(problems, "server.addr is required when the server is enabled")
	}

	if len(problems) > 0 {
		return errors.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// ActiveModel returns the configuration of the startup model.
func (c *Config) ActiveModel() (model.Config, error) {
	m, ok := models.Lookup(c.Models, c.Active)
	if !ok {
		return model.Config{}, errors.Errorf("active model %q is not configured", c.Active)
	}
	return m, nil
}

// Filter returns the parsed preprocessing filter.
func (c *Config) Filter() images.ResampleFilter {
	f, err := images.ParseResampleFilter(c.Preprocess.Filter)
	if err != nil {
		return images.BilinearFilter
	}
	return f
}
