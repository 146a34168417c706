package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"ema_alpha": 0.5, "notch_enabled": true}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	pc := cfg.PipelineConfig()
	assert.True(t, pc.EnableNotch)
	assert.InDelta(t, 0.5, pc.EMAAlpha, 1e-12)
	assert.InDelta(t, 200.0, pc.FsHz, 1e-12)
	assert.Equal(t, 5, pc.MAWin)
	assert.Equal(t, 115200, cfg.GetBaudRate())
	assert.Equal(t, 200, cfg.GetBiasFrames())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, body := range []string{
		`{"baud_rate": -9600}`,
		`{"ma_window": 0}`,
		`{"bias_frames": 0}`,
		`{"ema_alpha": `,
	} {
		path := writeConfig(t, body)
		_, err := Load(path)
		assert.Error(t, err, body)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestPipelineConfigFull(t *testing.T) {
	path := writeConfig(t, `{
		"ma_enabled": true, "ma_window": 8,
		"ema_enabled": true, "ema_alpha": 0.1,
		"notch_enabled": true, "sample_rate_hz": 250, "notch_freq_hz": 50, "notch_q": 25,
		"bias_enabled": true, "bias_frames": 50,
		"model_enabled": true, "model_bias": 0.25,
		"tracker_id": "BruteForce_16x2"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	pc := cfg.PipelineConfig()
	assert.True(t, pc.EnableMA)
	assert.Equal(t, 8, pc.MAWin)
	assert.True(t, pc.EnableEMA)
	assert.InDelta(t, 0.1, pc.EMAAlpha, 1e-12)
	assert.True(t, pc.EnableNotch)
	assert.InDelta(t, 250.0, pc.FsHz, 1e-12)
	assert.InDelta(t, 50.0, pc.NotchF0, 1e-12)
	assert.InDelta(t, 25.0, pc.NotchQ, 1e-12)
	assert.True(t, pc.EnableBias)
	assert.Equal(t, 50, cfg.GetBiasFrames())
	assert.True(t, pc.EnableModel)
	assert.InDelta(t, 0.25, pc.ModelBias, 1e-12)
	assert.Equal(t, "BruteForce_16x2", cfg.GetTrackerID())
}
