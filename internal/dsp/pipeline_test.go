package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineLatchesChannelCount(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	out := p.Process(1, []float64{1, 2, 3})
	require.True(t, out.OK)
	assert.Equal(t, 3, p.ChannelCount())

	// A mismatched frame is rejected and stage state stays untouched.
	out = p.Process(2, []float64{1, 2})
	assert.False(t, out.OK)
	assert.Equal(t, 3, p.ChannelCount())
}

func TestPipelineResetRelatches(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	p.Process(1, []float64{1, 2, 3})
	p.Reset()
	assert.Equal(t, 0, p.ChannelCount())

	out := p.Process(2, []float64{1, 2})
	require.True(t, out.OK)
	assert.Equal(t, 2, p.ChannelCount())
}

func TestPipelineDisabledStagesPassThrough(t *testing.T) {
	p := NewPipeline(Config{MAWin: 5, EMAAlpha: 0.2, FsHz: 200, NotchF0: 60, NotchQ: 30})

	in := []float64{1.5, -2.5}
	out := p.Process(7, in)
	require.True(t, out.OK)
	assert.Equal(t, int64(7), out.Frame.TNanos)
	assert.InDeltaSlice(t, in, out.Frame.X, 1e-12)
	assert.False(t, out.ModelValid)
}

func TestPipelineInputNotMutated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableMA = true
	cfg.MAWin = 4
	p := NewPipeline(cfg)

	in := []float64{8, 8}
	p.Process(1, in)
	assert.InDeltaSlice(t, []float64{8, 8}, in, 0)
}

func TestPipelineBiasCapturedPostFilter(t *testing.T) {
	// With MA enabled and a constant input, the conditioned frame converges
	// to the input, so the captured bias matches the conditioned domain.
	cfg := DefaultConfig()
	cfg.EnableMA = true
	cfg.MAWin = 2
	cfg.EnableBias = true
	p := NewPipeline(cfg)

	p.Process(1, []float64{4, 4}) // latch
	p.BeginBiasCapture(2)
	p.Process(2, []float64{4, 4})
	out := p.Process(3, []float64{4, 4})
	require.True(t, out.OK)

	has, capturing := p.BiasState()
	require.True(t, has)
	require.False(t, capturing)

	// ring warm-up: frame2 mean = 4, frame3 mean = 4 → bias = 4 per channel
	assert.InDeltaSlice(t, []float64{4, 4}, p.Bias(), 1e-12)

	out = p.Process(4, []float64{4, 4})
	assert.InDeltaSlice(t, []float64{0, 0}, out.Frame.X, 1e-12)
}

func TestPipelineConfigSwapKeepsFilterState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableEMA = true
	cfg.EMAAlpha = 0.5
	p := NewPipeline(cfg)

	p.Process(1, []float64{10}) // seeds EMA state at 10

	cfg.EMAAlpha = 0.25
	p.SetConfig(cfg)

	out := p.Process(2, []float64{0})
	require.True(t, out.OK)
	// state was kept: 0.25*0 + 0.75*10 = 7.5
	assert.InDelta(t, 7.5, out.Frame.X[0], 1e-12)
}

func TestPipelineMAWindowChangeReallocates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableMA = true
	cfg.MAWin = 2
	p := NewPipeline(cfg)

	p.Process(1, []float64{6})

	cfg.MAWin = 3
	p.SetConfig(cfg)

	out := p.Process(2, []float64{6})
	require.True(t, out.OK)
	// fresh zero-padded 3-ring: first sample → 6/3
	assert.InDelta(t, 2, out.Frame.X[0], 1e-12)
}

func TestPipelineModelOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableModel = true
	cfg.ModelBias = 0.5
	p := NewPipeline(cfg)

	p.Process(1, []float64{1, 2}) // latch
	p.SetModelWeights([]float64{2, 3})

	out := p.Process(2, []float64{1, 2})
	require.True(t, out.OK)
	require.True(t, out.ModelValid)
	assert.InDelta(t, 0.5+2*1+3*2, out.ModelOut, 1e-12)
}

func TestPipelineWeightsIgnoredBeforeLatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableModel = true
	p := NewPipeline(cfg)

	p.SetModelWeights([]float64{1, 1}) // no latched N: ignored

	out := p.Process(1, []float64{3, 3})
	require.True(t, out.OK)
	require.True(t, out.ModelValid)
	assert.InDelta(t, 0, out.ModelOut, 1e-12)
}
