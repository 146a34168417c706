// Package dsp implements the per-channel conditioning stages applied to
// sensor frames before tracking: bias capture/correction, moving-average,
// exponential-moving-average and notch filtering, a linear scoring head, and
// the Pipeline that sequences them.
package dsp

// BiasCorrector captures a per-channel offset by averaging N frames and then
// subtracts the stored offset from every subsequent frame. Capture and
// application operate on the same (conditioned) signal domain, so the stored
// bias means the same thing as the correction it later performs.
type BiasCorrector struct {
	nCh       int
	capturing bool
	hasBias   bool
	capTarget int
	capCount  int
	acc       []float64
	bias      []float64
}

// Reset returns the corrector to the unconfigured state.
func (b *BiasCorrector) Reset() {
	b.nCh = 0
	b.capturing = false
	b.hasBias = false
	b.capTarget = 0
	b.capCount = 0
	b.acc = nil
	b.bias = nil
}

// Configure allocates state for nCh channels. Any in-flight capture and any
// stored bias are discarded; a channel-count change invalidates both.
func (b *BiasCorrector) Configure(nCh int) {
	b.nCh = nCh
	b.capturing = false
	b.hasBias = false
	b.capTarget = 0
	b.capCount = 0
	b.acc = make([]float64, nCh)
	b.bias = make([]float64, nCh)
}

// BeginCapture starts accumulating frames toward a new bias. A frames value
// below 1 is treated as 1.
func (b *BiasCorrector) BeginCapture(frames int) {
	if b.nCh == 0 {
		return
	}
	if frames < 1 {
		frames = 1
	}
	b.capturing = true
	b.hasBias = false
	b.capTarget = frames
	b.capCount = 0
	for i := range b.acc {
		b.acc[i] = 0
	}
}

// UpdateCapture folds one frame into the running accumulator. On reaching the
// capture target the bias freezes to the accumulated mean, capture ends and
// HasBias becomes true.
func (b *BiasCorrector) UpdateCapture(x []float64) {
	if !b.capturing || len(x) != b.nCh {
		return
	}
	for i, v := range x {
		b.acc[i] += v
	}
	b.capCount++

	if b.capCount >= b.capTarget {
		inv := 1.0 / float64(b.capCount)
		for i := range b.bias {
			b.bias[i] = b.acc[i] * inv
		}
		b.capturing = false
		b.hasBias = true
	}
}

// ApplyInPlace subtracts the stored bias from x when one is present.
func (b *BiasCorrector) ApplyInPlace(x []float64) {
	if !b.hasBias || len(x) != b.nCh {
		return
	}
	for i := range x {
		x[i] -= b.bias[i]
	}
}

// SetBias installs a bias vector directly, aborting any capture in progress.
// Vectors of the wrong length are ignored.
func (b *BiasCorrector) SetBias(vec []float64) {
	if len(vec) != b.nCh {
		return
	}
	copy(b.bias, vec)
	b.capturing = false
	b.hasBias = true
}

// HasBias reports whether a stored bias is available.
func (b *BiasCorrector) HasBias() bool { return b.hasBias }

// Capturing reports whether a capture is in progress.
func (b *BiasCorrector) Capturing() bool { return b.capturing }

// Bias returns a copy of the stored bias vector, or nil if none is stored.
func (b *BiasCorrector) Bias() []float64 {
	if !b.hasBias {
		return nil
	}
	out := make([]float64, len(b.bias))
	copy(out, b.bias)
	return out
}
