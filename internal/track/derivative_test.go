package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameIntervalNanos = 10_000_000 // 100 Hz test stream

// pushFrames feeds a sequence of 16-channel frames at a fixed cadence and
// returns the outputs the tracker produced.
func pushFrames(tr Tracker, frames [][]float64) []Output {
	var outs []Output
	for i, f := range frames {
		if out, ok := tr.Push(int64(i+1)*frameIntervalNanos, f); ok {
			outs = append(outs, out)
		}
	}
	return outs
}

// stepFrame returns a frame with one active channel at the given level.
func stepFrame(ch int, level float64) []float64 {
	f := make([]float64, SensorCount)
	f[ch] = level
	return f
}

func TestDerivativeWarmupProducesNothing(t *testing.T) {
	d := NewDerivative16x5()

	for i := 0; i < 4; i++ {
		out, ok := d.Push(int64(i+1)*frameIntervalNanos, stepFrame(0, 10))
		assert.False(t, ok, "frame %d before window fill", i)
		assert.True(t, out.Quiet)
	}

	_, ok := d.Push(5*frameIntervalNanos, stepFrame(0, 10))
	assert.True(t, ok, "fifth frame fills the window")
}

func TestDerivativeCentroidPullsTowardActivePad(t *testing.T) {
	d := NewDerivative16x5()

	// Channel 8 sits at (+1.5d, +1.5d). Ramp it hard while everything else
	// stays flat: the centroid must land in that quadrant.
	var frames [][]float64
	for i := 0; i < 12; i++ {
		frames = append(frames, stepFrame(8, float64(i)*8))
	}

	outs := pushFrames(d, frames)
	require.NotEmpty(t, outs)

	last := outs[len(outs)-1]
	assert.True(t, last.Valid)
	assert.Greater(t, last.X, 0.0)
	assert.Greater(t, last.Y, 0.0)
	assert.Greater(t, last.Confidence, 0.5)
}

func TestDerivativeQuietOnFlatInput(t *testing.T) {
	d := NewDerivative16x5()

	// Sub-noise levels: rounding against noise_round=1 zeroes every delta
	// and the amplitude term stays under its dead-band.
	var frames [][]float64
	for i := 0; i < 10; i++ {
		frames = append(frames, stepFrame(3, 0.4))
	}

	outs := pushFrames(d, frames)
	require.NotEmpty(t, outs)
	for _, out := range outs {
		assert.True(t, out.Quiet)
		assert.False(t, out.Valid)
	}
}

func TestDerivativeBoundsClamp(t *testing.T) {
	d := NewDerivative16x5()

	var frames [][]float64
	for i := 0; i < 12; i++ {
		frames = append(frames, stepFrame(8, float64(i)*100))
	}

	outs := pushFrames(d, frames)
	require.NotEmpty(t, outs)

	minX, maxX, minY, maxY := sensorBounds()
	for _, out := range outs {
		assert.GreaterOrEqual(t, out.X, minX)
		assert.LessOrEqual(t, out.X, maxX)
		assert.GreaterOrEqual(t, out.Y, minY)
		assert.LessOrEqual(t, out.Y, maxY)
	}
}

func TestDerivativeRejectsWrongChannelCount(t *testing.T) {
	d := NewDerivative16x5()
	_, ok := d.Push(frameIntervalNanos, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestDerivativeResetClearsWindow(t *testing.T) {
	d := NewDerivative16x5()
	for i := 0; i < 6; i++ {
		d.Push(int64(i+1)*frameIntervalNanos, stepFrame(8, float64(i)*8))
	}
	d.Reset()

	_, ok := d.Push(100*frameIntervalNanos, stepFrame(8, 5))
	assert.False(t, ok, "window should need refilling after reset")
}

func TestDerivative2HoldsPositionWhenMotionStops(t *testing.T) {
	d := NewDerivative2_16x5()

	// Strong ramp establishes a position…
	var frames [][]float64
	for i := 0; i < 10; i++ {
		frames = append(frames, stepFrame(8, float64(i)*10))
	}
	outs := pushFrames(d, frames)
	require.NotEmpty(t, outs)
	established := outs[len(outs)-1]
	require.True(t, established.Valid)

	// …then the signal disappears: once the window drains to zero the
	// tracker holds the last position and goes quiet.
	var quietOuts []Output
	for i := 0; i < 8; i++ {
		out, ok := d.Push(int64(20+i)*frameIntervalNanos, make([]float64, SensorCount))
		require.True(t, ok)
		quietOuts = append(quietOuts, out)
	}

	for _, out := range quietOuts[5:] {
		assert.True(t, out.Quiet)
		assert.InDelta(t, established.X, out.X, 1e-9)
		assert.InDelta(t, established.Y, out.Y, 1e-9)
	}
}

func TestDerivative2PriorBlendingDampsJumps(t *testing.T) {
	withPrior := NewDerivative2_16x5()
	noPrior := NewDerivative2_16x5()

	vals := noPrior.Defaults()
	vals[6] = 0 // prior_strength off
	noPrior.SetParams(vals)

	// Establish a position in the (+,+) quadrant on both trackers.
	var ramp [][]float64
	for i := 0; i < 10; i++ {
		ramp = append(ramp, stepFrame(8, float64(i)*10))
	}
	pushFrames(withPrior, ramp)
	pushFrames(noPrior, ramp)

	// A single opposite-corner burst (channel 0 at (−1.5d, −1.5d)).
	burst := stepFrame(0, 40)
	outA, okA := withPrior.Push(11*frameIntervalNanos, burst)
	outB, okB := noPrior.Push(11*frameIntervalNanos, burst)
	require.True(t, okA)
	require.True(t, okB)

	// The prior-blended estimate moves less far from the established corner.
	distA := math.Hypot(outA.X-sensorLayout[8].X, outA.Y-sensorLayout[8].Y)
	distB := math.Hypot(outB.X-sensorLayout[8].X, outB.Y-sensorLayout[8].Y)
	assert.Less(t, distA, distB)
}

func TestDerivative2ParamClamps(t *testing.T) {
	d := NewDerivative2_16x5()
	d.SetParams([]float64{100, 5, 100, 0, -3, -1, 1000, -2, 0})

	assert.Equal(t, 5, d.mEffective)
	assert.InDelta(t, 1, d.emaAlpha, 0)
	assert.Equal(t, emaMaxDegree, d.emaDegree)
	assert.InDelta(t, 0.1, d.rangeGain, 1e-12)
	assert.InDelta(t, 0, d.noiseRound, 0)
	assert.InDelta(t, 0, d.motionDeadband, 0)
	assert.InDelta(t, 50, d.priorStrength, 0)
	assert.InDelta(t, 0, d.holdW, 0)
	assert.InDelta(t, 0.1, d.confScale, 1e-12)
}

func TestQuadrantHeuristic(t *testing.T) {
	q := NewQuadrant16x1()

	// Low-index half dominant → positive dx.
	frame := make([]float64, SensorCount)
	for i := 0; i < 8; i++ {
		frame[i] = 4
	}
	out, ok := q.Push(frameIntervalNanos, frame)
	require.True(t, ok)
	assert.True(t, out.Valid)
	assert.Greater(t, out.X, 0.0)
	assert.Greater(t, out.Confidence, 0.5)
	assert.False(t, out.Quiet)

	// Near-zero frame → quiet.
	out, ok = q.Push(2*frameIntervalNanos, make([]float64, SensorCount))
	require.True(t, ok)
	assert.True(t, out.Quiet)
}
