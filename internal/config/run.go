// Package config loads the JSON run configuration. All fields are pointers
// so the same file works for partial overrides: anything omitted falls back
// to the Get* defaults, which match the CLI flag defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capgrid/captrack/internal/dsp"
)

// maxConfigFileSize bounds config reads (1 MB).
const maxConfigFileSize = 1 * 1024 * 1024

// RunConfig is the root configuration for a streaming run. The schema covers
// the transport, the conditioning pipeline and the tracker selection.
type RunConfig struct {
	// Transport
	Port         *string `json:"port,omitempty"`
	BaudRate     *int    `json:"baud_rate,omitempty"`
	DevicePrefix *string `json:"device_prefix,omitempty"`

	// Conditioning pipeline
	MAEnabled    *bool    `json:"ma_enabled,omitempty"`
	MAWindow     *int     `json:"ma_window,omitempty"`
	EMAEnabled   *bool    `json:"ema_enabled,omitempty"`
	EMAAlpha     *float64 `json:"ema_alpha,omitempty"`
	NotchEnabled *bool    `json:"notch_enabled,omitempty"`
	SampleRateHz *float64 `json:"sample_rate_hz,omitempty"`
	NotchFreqHz  *float64 `json:"notch_freq_hz,omitempty"`
	NotchQ       *float64 `json:"notch_q,omitempty"`
	BiasEnabled  *bool    `json:"bias_enabled,omitempty"`
	BiasFrames   *int     `json:"bias_frames,omitempty"`

	// Linear head
	ModelEnabled *bool    `json:"model_enabled,omitempty"`
	ModelBias    *float64 `json:"model_bias,omitempty"`
	WeightsPath  *string  `json:"weights_path,omitempty"`

	// Sinks and tracking
	CSVPath   *string `json:"csv_path,omitempty"`
	TrackerID *string `json:"tracker_id,omitempty"`
}

// Load reads a RunConfig from a JSON file. The path must carry a .json
// extension and stay under the size bound. Omitted fields keep defaults, so
// partial configs are safe.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configured values. Pipeline coefficients (alpha,
// fs/f0/Q) are not range-checked here; the DSP stages clamp or substitute
// defaults themselves. Counts that must be positive (baud rate, MA window,
// bias frames) fail when they are not.
func (c *RunConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.MAWindow != nil && *c.MAWindow < 1 {
		return fmt.Errorf("ma_window must be at least 1, got %d", *c.MAWindow)
	}
	if c.BiasFrames != nil && *c.BiasFrames < 1 {
		return fmt.Errorf("bias_frames must be at least 1, got %d", *c.BiasFrames)
	}
	return nil
}

// GetPort returns the serial port path, or "" to request auto-scan.
func (c *RunConfig) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return *c.Port
}

// GetBaudRate returns the serial baud rate or the device default.
func (c *RunConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetDevicePrefix returns the device name prefix used during scanning.
func (c *RunConfig) GetDevicePrefix() string {
	if c.DevicePrefix == nil {
		return ""
	}
	return *c.DevicePrefix
}

// GetBiasFrames returns the bias capture length in frames.
func (c *RunConfig) GetBiasFrames() int {
	if c.BiasFrames == nil {
		return 200
	}
	return *c.BiasFrames
}

// GetWeightsPath returns the optional weights CSV path.
func (c *RunConfig) GetWeightsPath() string {
	if c.WeightsPath == nil {
		return ""
	}
	return *c.WeightsPath
}

// GetCSVPath returns the optional frame recording path.
func (c *RunConfig) GetCSVPath() string {
	if c.CSVPath == nil {
		return ""
	}
	return *c.CSVPath
}

// GetTrackerID returns the selected tracker id, or "".
func (c *RunConfig) GetTrackerID() string {
	if c.TrackerID == nil {
		return ""
	}
	return *c.TrackerID
}

// PipelineConfig assembles the dsp.Config this run configuration describes,
// starting from the stage defaults.
func (c *RunConfig) PipelineConfig() dsp.Config {
	cfg := dsp.DefaultConfig()

	if c.MAEnabled != nil {
		cfg.EnableMA = *c.MAEnabled
	}
	if c.MAWindow != nil {
		cfg.MAWin = *c.MAWindow
	}
	if c.EMAEnabled != nil {
		cfg.EnableEMA = *c.EMAEnabled
	}
	if c.EMAAlpha != nil {
		cfg.EMAAlpha = *c.EMAAlpha
	}
	if c.NotchEnabled != nil {
		cfg.EnableNotch = *c.NotchEnabled
	}
	if c.SampleRateHz != nil {
		cfg.FsHz = *c.SampleRateHz
	}
	if c.NotchFreqHz != nil {
		cfg.NotchF0 = *c.NotchFreqHz
	}
	if c.NotchQ != nil {
		cfg.NotchQ = *c.NotchQ
	}
	if c.BiasEnabled != nil {
		cfg.EnableBias = *c.BiasEnabled
	}
	if c.ModelEnabled != nil {
		cfg.EnableModel = *c.ModelEnabled
	}
	if c.ModelBias != nil {
		cfg.ModelBias = *c.ModelBias
	}
	return cfg
}
