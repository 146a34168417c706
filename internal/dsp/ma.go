package dsp

// MAFilter is a per-channel moving average over a fixed window, maintained as
// a ring buffer with a running sum. The ring starts zero-filled, so the first
// W-1 outputs are averaged against zero padding; consumers that care about
// warm-up gate on the pipeline's ok/bad counters instead of the filter.
type MAFilter struct {
	ready  bool
	nCh    int
	winLen int
	idx    int
	sum    []float64
	ring   []float64 // winLen rows of nCh samples
}

// Reset returns the filter to the unconfigured state.
func (m *MAFilter) Reset() {
	m.ready = false
	m.nCh = 0
	m.winLen = 1
	m.idx = 0
	m.sum = nil
	m.ring = nil
}

// Configure allocates per-channel state for a window of winLen samples.
// Window lengths below 1 are treated as 1.
func (m *MAFilter) Configure(nCh, winLen int) {
	if winLen < 1 {
		winLen = 1
	}
	m.nCh = nCh
	m.winLen = winLen
	m.idx = 0
	m.sum = make([]float64, nCh)
	m.ring = make([]float64, nCh*winLen)
	m.ready = true
}

// Ready reports whether the filter has been configured.
func (m *MAFilter) Ready() bool { return m.ready }

// WinLen returns the configured window length.
func (m *MAFilter) WinLen() int { return m.winLen }

// ProcessInPlace replaces each sample with the running window mean.
func (m *MAFilter) ProcessInPlace(x []float64) {
	if !m.ready || len(x) != m.nCh {
		return
	}

	inv := 1.0 / float64(m.winLen)
	base := m.idx * m.nCh

	for i, v := range x {
		m.sum[i] += v - m.ring[base+i]
		m.ring[base+i] = v
		x[i] = m.sum[i] * inv
	}

	m.idx++
	if m.idx >= m.winLen {
		m.idx = 0
	}
}
