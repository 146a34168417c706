package dsp

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/capgrid/captrack/internal/stream"
)

// LinearModel is a weighted sum plus bias over a conditioned frame. It is a
// leaf scalar output carried alongside frames, not a tracker.
type LinearModel struct {
	ready bool
	nCh   int
	w     []float64
	b     float64
}

// Reset returns the model to the unconfigured state.
func (l *LinearModel) Reset() {
	l.ready = false
	l.nCh = 0
	l.w = nil
	l.b = 0
}

// Configure allocates a zero weight vector for nCh channels. Reconfiguring
// with the already-configured channel count keeps the current weights.
func (l *LinearModel) Configure(nCh int) {
	if nCh == 0 {
		l.Reset()
		return
	}
	if l.ready && l.nCh == nCh && len(l.w) == nCh {
		return
	}
	l.nCh = nCh
	l.w = make([]float64, nCh)
	l.b = 0
	l.ready = true
}

// Ready reports whether the model has been configured.
func (l *LinearModel) Ready() bool { return l.ready }

// SetBias sets the scalar bias term.
func (l *LinearModel) SetBias(b float64) { l.b = b }

// SetWeights installs a weight vector. Vectors whose length does not match
// the channel count are ignored; the host decides whether to retry.
func (l *LinearModel) SetWeights(w []float64) {
	if !l.ready || len(w) != l.nCh {
		return
	}
	copy(l.w, w)
}

// Eval returns b + w·x, or 0 when unconfigured or mismatched.
func (l *LinearModel) Eval(x []float64) float64 {
	if !l.ready || len(x) != l.nCh {
		return 0
	}
	return l.b + floats.Dot(l.w, x)
}

// LoadWeightsCSV reads a single-line CSV of floats from path. The line uses
// the same separator grammar as the wire format. Length checking against the
// latched channel count is the caller's job (weights may stay pending until
// the stream latches).
func LoadWeightsCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read weights file: %w", err)
		}
		return nil, fmt.Errorf("weights file %s is empty", path)
	}

	line := strings.TrimSpace(sc.Text())
	w, err := stream.ParseLine(line)
	if err != nil {
		return nil, fmt.Errorf("parse weights line: %w", err)
	}
	return w, nil
}
