package track

import "math"

// Derivative16x5ID is the registry id of the simpler derivative estimator.
const Derivative16x5ID = "Derivative_16x5"

// Temporal decay constant for derivative weighting and the dt fallback used
// when arrival timestamps are missing or unreasonable.
const (
	derivTauSec        = 0.05
	derivFallbackDtSec = 1.0 / 105.0
	derivMaxDtSec      = 0.2
	emaMaxDegree       = 5
)

func safeExp(x float64) float64 {
	if x < -80 {
		return 0
	}
	if x > 80 {
		return math.Exp(80)
	}
	return math.Exp(x)
}

// quantize rounds v to the nearest multiple of q; q ≤ 0 disables rounding.
func quantize(v, q float64) float64 {
	if !(q > 0) {
		return v
	}
	return math.Round(v/q) * q
}

// derivDt derives the inter-sample interval from arrival timestamps, falling
// back to the nominal device rate when the gap is missing or unreasonable.
func derivDt(lastTNanos, tNanos int64) float64 {
	dt := derivFallbackDtSec
	if lastTNanos != 0 && tNanos > lastTNanos {
		dt = float64(tNanos-lastTNanos) * 1e-9
		if !(dt > 0) || dt > derivMaxDtSec {
			dt = derivFallbackDtSec
		}
	}
	return dt
}

// emaCascade smooths (x, y) through stages[0..degree-1] of a cascaded EMA,
// seeding every stage on first use. Returns the final-stage output.
type emaCascade struct {
	inited bool
	x      [emaMaxDegree]float64
	y      [emaMaxDegree]float64
}

func (c *emaCascade) update(xEst, yEst, alpha float64, degree int) (float64, float64) {
	if degree < 1 {
		degree = 1
	}
	if degree > emaMaxDegree {
		degree = emaMaxDegree
	}

	if !c.inited {
		for i := 0; i < emaMaxDegree; i++ {
			c.x[i] = xEst
			c.y[i] = yEst
		}
		c.inited = true
		return c.x[degree-1], c.y[degree-1]
	}

	if alpha >= 1 {
		c.x[0] = xEst
		c.y[0] = yEst
		for i := 1; i < degree; i++ {
			c.x[i] = c.x[i-1]
			c.y[i] = c.y[i-1]
		}
		return c.x[degree-1], c.y[degree-1]
	}

	c.x[0] += alpha * (xEst - c.x[0])
	c.y[0] += alpha * (yEst - c.y[0])
	for i := 1; i < degree; i++ {
		c.x[i] += alpha * (c.x[i-1] - c.x[i])
		c.y[i] += alpha * (c.y[i-1] - c.y[i])
	}
	return c.x[degree-1], c.y[degree-1]
}

func (c *emaCascade) reset() {
	*c = emaCascade{}
}

// Derivative16x5 estimates position from the temporal derivative of each
// channel over a 5-sample window: channels whose level moved get weight, the
// weighted centroid of their pad positions is the position estimate. An
// amplitude term adds weight for pads with large absolute level so a hovering
// but stationary target is not lost entirely.
type Derivative16x5 struct {
	win        *slidingWindow
	lastTNanos int64

	mEffective int
	emaAlpha   float64
	emaDegree  int
	rangeGain  float64
	noiseRound float64

	ema emaCascade
}

// Fixed conditioning constants of the estimator.
const (
	derivNoiseAmp   = 0.5
	derivNoiseDelta = 0.6
	derivAmpWeight  = 0.25
	derivQuietThr   = 0.35
	derivValidThr   = 0.80
	derivConfScale  = 4.0
)

// NewDerivative16x5 returns an estimator with default parameters.
func NewDerivative16x5() *Derivative16x5 {
	d := &Derivative16x5{win: newSlidingWindow(SensorCount, 5)}
	d.SetParams(d.Defaults())
	return d
}

// ID returns the registry id.
func (d *Derivative16x5) ID() string { return Derivative16x5ID }

// Channels returns the per-frame sample count.
func (d *Derivative16x5) Channels() int { return SensorCount }

// Window returns the sliding window length.
func (d *Derivative16x5) Window() int { return 5 }

// Params returns the ordered parameter schema.
func (d *Derivative16x5) Params() []ParamDesc {
	return []ParamDesc{
		{Key: "m", Label: "M (samples)", Min: 2, Max: 5, Default: 5, Step: 1, Decimals: 0},
		{Key: "ema_alpha", Label: "EMA scale", Min: 0.01, Max: 1, Default: 0.20, Step: 0.01, Decimals: 2},
		{Key: "ema_degree", Label: "EMA degree", Min: 1, Max: 5, Default: 3, Step: 1, Decimals: 0},
		{Key: "range_gain", Label: "Range gain", Min: 0.50, Max: 3, Default: 1, Step: 0.05, Decimals: 2},
		{Key: "noise_round", Label: "Noise rounding", Min: 0, Max: 5, Default: 1, Step: 0.1, Decimals: 1},
	}
}

// Defaults returns the default parameter vector.
func (d *Derivative16x5) Defaults() []float64 {
	return defaultsOf(d.Params())
}

// SetParams applies an ordered value vector, clamping each entry to its
// declared range. Short vectors leave trailing parameters unchanged.
func (d *Derivative16x5) SetParams(values []float64) {
	if len(values) >= 1 {
		d.mEffective = int(clamp(math.Round(values[0]), 2, 5))
	}
	if len(values) >= 2 {
		d.emaAlpha = clamp(values[1], 0.01, 1)
	}
	if len(values) >= 3 {
		d.emaDegree = int(clamp(math.Round(values[2]), 1, emaMaxDegree))
	}
	if len(values) >= 4 {
		d.rangeGain = clamp(values[3], 0.50, 3)
	}
	if len(values) >= 5 {
		d.noiseRound = clamp(values[4], 0, 5)
	}
}

// Reset clears the window and smoothing state, keeping parameters.
func (d *Derivative16x5) Reset() {
	d.win.reset()
	d.lastTNanos = 0
	d.ema.reset()
}

// Push feeds one conditioned frame. Output is produced once the window has
// filled; until then the tracker reports quiet with no pose.
func (d *Derivative16x5) Push(tNanos int64, sample []float64) (Output, bool) {
	if len(sample) != SensorCount {
		return Output{}, false
	}

	dt := derivDt(d.lastTNanos, tNanos)
	d.lastTNanos = tNanos

	if !d.win.push(sample) {
		return Output{Quiet: true}, false
	}

	mEff := d.mEffective
	if mEff < 2 {
		mEff = 2
	}
	if mEff > 5 {
		mEff = 5
	}
	span := mEff - 1

	decay := safeExp(-dt / derivTauSec)
	decaySpan := math.Pow(decay, float64(span))

	newest := d.win.at(1)
	oldest := d.win.at(1 + span)

	q := d.noiseRound

	var sumW, sumX, sumY float64
	for ch := 0; ch < SensorCount; ch++ {
		xNew := quantize(newest[ch], q)
		xOld := quantize(oldest[ch], q)

		delta := quantize(xNew-xOld*decaySpan, q)

		w := math.Abs(delta) - derivNoiseDelta
		if w < 0 {
			w = 0
		}

		amp := math.Abs(xNew) - derivNoiseAmp
		if amp < 0 {
			amp = 0
		}
		w += derivAmpWeight * amp

		if w > 0 {
			sumW += w
			sumX += sensorLayout[ch].X * w
			sumY += sensorLayout[ch].Y * w
		}
	}

	if sumW <= 0 {
		out := Output{Quiet: true}
		if d.ema.inited {
			deg := d.emaDegree
			if deg < 1 {
				deg = 1
			}
			out.X = d.ema.x[deg-1]
			out.Y = d.ema.y[deg-1]
		}
		return out, true
	}

	xEst := sumX / sumW * d.rangeGain
	yEst := sumY / sumW * d.rangeGain

	minX, maxX, minY, maxY := sensorBounds()
	xEst = clamp(xEst, minX*d.rangeGain, maxX*d.rangeGain)
	yEst = clamp(yEst, minY*d.rangeGain, maxY*d.rangeGain)

	conf := clamp01(1 - safeExp(-sumW/derivConfScale))

	xOut, yOut := d.ema.update(xEst, yEst, d.emaAlpha, d.emaDegree)

	return Output{
		Valid:      sumW >= derivValidThr,
		Quiet:      sumW < derivQuietThr,
		X:          xOut,
		Y:          yOut,
		Confidence: conf,
	}, true
}

func init() {
	registerFrom(func() Tracker { return NewDerivative16x5() })
}
