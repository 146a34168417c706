package dsp

// EMAFilter is a per-channel single-pole smoother: y = α·x + (1−α)·y.
// The first frame after Configure seeds the state directly, so there is no
// warm-up transient. α may be retuned live without resetting state.
type EMAFilter struct {
	ready  bool
	seeded bool
	nCh    int
	alpha  float64
	y      []float64
}

// Reset returns the filter to the unconfigured state.
func (e *EMAFilter) Reset() {
	e.ready = false
	e.seeded = false
	e.nCh = 0
	e.alpha = 0.2
	e.y = nil
}

// Configure allocates per-channel state and sets the smoothing factor.
func (e *EMAFilter) Configure(nCh int, alpha float64) {
	e.nCh = nCh
	e.SetAlpha(alpha)
	e.y = make([]float64, nCh)
	e.seeded = false
	e.ready = true
}

// Ready reports whether the filter has been configured.
func (e *EMAFilter) Ready() bool { return e.ready }

// SetAlpha clamps alpha to [0,1] and applies it without touching state.
func (e *EMAFilter) SetAlpha(alpha float64) {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	e.alpha = alpha
}

// ProcessInPlace replaces each sample with its smoothed value.
func (e *EMAFilter) ProcessInPlace(x []float64) {
	if !e.ready || len(x) != e.nCh {
		return
	}

	if !e.seeded {
		copy(e.y, x)
		e.seeded = true
		return
	}

	a := e.alpha
	b := 1 - a

	for i, v := range x {
		e.y[i] = a*v + b*e.y[i]
		x[i] = e.y[i]
	}
}
