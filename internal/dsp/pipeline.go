package dsp

import "sync"

// Config selects and parameterises the conditioning stages. It is a plain
// value: coefficient-only changes (alpha, fs/f0/Q, same MA window) apply
// live without resetting filter state; a new MA window reallocates the MA
// ring only.
type Config struct {
	EnableMA bool
	MAWin    int

	EnableEMA bool
	EMAAlpha  float64

	EnableNotch bool
	FsHz        float64
	NotchF0     float64
	NotchQ      float64

	EnableBias bool

	EnableModel bool
	ModelBias   float64
}

// DefaultConfig returns the stage defaults used when the host supplies none.
func DefaultConfig() Config {
	return Config{
		MAWin:    5,
		EMAAlpha: 0.2,
		FsHz:     defaultNotchFs,
		NotchF0:  defaultNotchF0,
		NotchQ:   defaultNotchQ,
	}
}

// Frame is one multi-channel sample with a monotonic timestamp.
type Frame struct {
	TNanos int64
	X      []float64
}

// Result carries a conditioned frame and the optional linear head output.
type Result struct {
	Frame      Frame
	ModelValid bool
	ModelOut   float64
	OK         bool
}

// Pipeline owns the per-stage filter state and runs each accepted frame
// through Notch → MA → EMA, then bias capture/subtraction, then the linear
// head. Filtering happens before bias so that the captured offset and the
// later correction live in the same signal domain.
//
// The channel count latches from the first accepted frame; frames of any
// other length are rejected without touching stage state. All mutators and
// Process serialise on one mutex.
type Pipeline struct {
	mu sync.Mutex

	cfg Config
	nCh int

	ma    MAFilter
	ema   EMAFilter
	notch NotchFilter
	bias  BiasCorrector
	model LinearModel
}

// NewPipeline returns a pipeline with the given configuration and no latched
// channel count.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{}
	p.SetConfig(cfg)
	return p
}

// Reset discards all stage state and the latched channel count. The
// configuration itself is kept; the next accepted frame relatches.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nCh = 0
	p.ma.Reset()
	p.ema.Reset()
	p.notch.Reset()
	p.bias.Reset()
	p.model.Reset()
}

// SetConfig swaps the active configuration. With a latched channel count,
// stages reconfigure only as far as the change requires: a new MA window
// reallocates the MA ring, while alpha and notch coefficient changes apply
// to live state.
func (p *Pipeline) SetConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg = cfg
	if p.nCh == 0 {
		return
	}

	if !p.ma.Ready() || p.ma.WinLen() != cfg.MAWin {
		p.ma.Configure(p.nCh, cfg.MAWin)
	}

	if !p.ema.Ready() {
		p.ema.Configure(p.nCh, cfg.EMAAlpha)
	} else {
		p.ema.SetAlpha(cfg.EMAAlpha)
	}

	if !p.notch.Ready() {
		p.notch.Configure(p.nCh, cfg.FsHz, cfg.NotchF0, cfg.NotchQ)
	} else {
		p.notch.SetParams(cfg.FsHz, cfg.NotchF0, cfg.NotchQ)
	}

	// Bias state is allocated at latch time and survives config swaps.

	p.model.Configure(p.nCh)
	p.model.SetBias(cfg.ModelBias)
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// ChannelCount returns the latched channel count, or 0 before latching.
func (p *Pipeline) ChannelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nCh
}

// EnsureInitialized latches nCh and (re)allocates every stage. Calling it
// with the already-latched count is a no-op.
func (p *Pipeline) EnsureInitialized(nCh int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureInitializedLocked(nCh)
}

func (p *Pipeline) ensureInitializedLocked(nCh int) {
	if p.nCh == nCh && p.nCh > 0 {
		return
	}
	p.nCh = nCh

	p.ma.Configure(nCh, p.cfg.MAWin)
	p.ema.Configure(nCh, p.cfg.EMAAlpha)
	p.notch.Configure(nCh, p.cfg.FsHz, p.cfg.NotchF0, p.cfg.NotchQ)
	p.bias.Configure(nCh)
	p.model.Configure(nCh)
	p.model.SetBias(p.cfg.ModelBias)
}

// BeginBiasCapture starts a bias capture over the given number of frames.
// It is ignored until a channel count has latched.
func (p *Pipeline) BeginBiasCapture(frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nCh == 0 {
		return
	}
	p.bias.BeginCapture(frames)
}

// SetModelWeights installs weights for the linear head. Ignored until a
// channel count has latched.
func (p *Pipeline) SetModelWeights(w []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nCh == 0 {
		return
	}
	p.model.SetWeights(w)
}

// BiasState reports (hasBias, capturing) in one consistent snapshot.
func (p *Pipeline) BiasState() (has, capturing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bias.HasBias(), p.bias.Capturing()
}

// Bias returns a copy of the stored bias vector, or nil if none is stored.
func (p *Pipeline) Bias() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bias.Bias()
}

// SetBias installs a bias vector directly (aborting any capture).
func (p *Pipeline) SetBias(vec []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nCh == 0 {
		return
	}
	p.bias.SetBias(vec)
}

// Process conditions one frame. The input slice is copied, never mutated.
// The first call latches the channel count; later frames of a different
// length return OK=false and leave every stage untouched.
func (p *Pipeline) Process(tNanos int64, xIn []float64) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Result{Frame: Frame{TNanos: tNanos, X: append([]float64(nil), xIn...)}}

	if p.nCh == 0 {
		p.ensureInitializedLocked(len(out.Frame.X))
	}
	if len(out.Frame.X) != p.nCh {
		return out
	}

	x := out.Frame.X
	if p.cfg.EnableNotch {
		p.notch.ProcessInPlace(x)
	}
	if p.cfg.EnableMA {
		p.ma.ProcessInPlace(x)
	}
	if p.cfg.EnableEMA {
		p.ema.ProcessInPlace(x)
	}

	if p.bias.Capturing() {
		p.bias.UpdateCapture(x)
	}
	if p.cfg.EnableBias {
		p.bias.ApplyInPlace(x)
	}

	if p.cfg.EnableModel && p.model.Ready() {
		out.ModelOut = p.model.Eval(x)
		out.ModelValid = true
	}

	out.OK = true
	return out
}
