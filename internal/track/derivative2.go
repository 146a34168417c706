package track

import "math"

// Derivative2_16x5ID is the registry id of the fuller derivative estimator.
const Derivative2_16x5ID = "Derivative2_16x5"

// slopeDenom is the least-squares normaliser Σ(k − mean)² for window length L
// with unit index spacing.
func slopeDenom(length int) float64 {
	switch {
	case length <= 1:
		return 1
	case length == 2:
		return 0.5
	case length == 3:
		return 2
	case length == 4:
		return 5
	default:
		return 10
	}
}

// Derivative2_16x5 refines the derivative centroid with a full least-squares
// index slope per channel, a motion dead-band, blending toward the previous
// output weighted by (1−confidence), and a hold state that freezes the pose
// when total channel weight drops below a threshold.
type Derivative2_16x5 struct {
	win        *slidingWindow
	lastTNanos int64

	mEffective     int
	emaAlpha       float64
	emaDegree      int
	rangeGain      float64
	noiseRound     float64
	motionDeadband float64
	priorStrength  float64
	holdW          float64
	confScale      float64

	hasLastPos bool
	lastOutX   float64
	lastOutY   float64

	ema emaCascade
}

// NewDerivative2_16x5 returns an estimator with default parameters.
func NewDerivative2_16x5() *Derivative2_16x5 {
	d := &Derivative2_16x5{win: newSlidingWindow(SensorCount, 5)}
	d.SetParams(d.Defaults())
	return d
}

// ID returns the registry id.
func (d *Derivative2_16x5) ID() string { return Derivative2_16x5ID }

// Channels returns the per-frame sample count.
func (d *Derivative2_16x5) Channels() int { return SensorCount }

// Window returns the sliding window length.
func (d *Derivative2_16x5) Window() int { return 5 }

// Params returns the ordered parameter schema.
func (d *Derivative2_16x5) Params() []ParamDesc {
	return []ParamDesc{
		{Key: "m", Label: "M (samples)", Min: 2, Max: 5, Default: 5, Step: 1, Decimals: 0},
		{Key: "ema_alpha", Label: "EMA scale", Min: 0, Max: 1, Default: 0.20, Step: 0.01, Decimals: 2},
		{Key: "ema_degree", Label: "EMA degree", Min: 0, Max: 5, Default: 1, Step: 1, Decimals: 0},
		{Key: "range_gain", Label: "Range gain", Min: 0.1, Max: 10, Default: 1, Step: 0.05, Decimals: 2},
		{Key: "noise_round", Label: "Noise rounding", Min: 0, Max: 20, Default: 1, Step: 0.1, Decimals: 1},
		{Key: "motion_deadband", Label: "Motion deadband", Min: 0, Max: 20, Default: 1, Step: 0.1, Decimals: 1},
		{Key: "prior_strength", Label: "Prior strength", Min: 0, Max: 50, Default: 6, Step: 0.5, Decimals: 1},
		{Key: "hold_w", Label: "Hold threshold", Min: 0, Max: 10, Default: 0.80, Step: 0.05, Decimals: 2},
		{Key: "conf_scale", Label: "Confidence scale", Min: 0.1, Max: 50, Default: 6, Step: 0.1, Decimals: 1},
	}
}

// Defaults returns the default parameter vector.
func (d *Derivative2_16x5) Defaults() []float64 {
	return defaultsOf(d.Params())
}

// SetParams applies an ordered value vector, clamping each entry to its
// declared range. Short vectors leave trailing parameters unchanged.
func (d *Derivative2_16x5) SetParams(values []float64) {
	if len(values) >= 1 {
		d.mEffective = int(clamp(math.Round(values[0]), 2, 5))
	}
	if len(values) >= 2 {
		d.emaAlpha = clamp01(values[1])
	}
	if len(values) >= 3 {
		d.emaDegree = int(clamp(math.Round(values[2]), 0, emaMaxDegree))
	}
	if len(values) >= 4 {
		d.rangeGain = clamp(values[3], 0.1, 10)
	}
	if len(values) >= 5 {
		d.noiseRound = clamp(values[4], 0, 20)
	}
	if len(values) >= 6 {
		d.motionDeadband = clamp(values[5], 0, 20)
	}
	if len(values) >= 7 {
		d.priorStrength = clamp(values[6], 0, 50)
	}
	if len(values) >= 8 {
		d.holdW = clamp(values[7], 0, 10)
	}
	if len(values) >= 9 {
		d.confScale = clamp(values[8], 0.1, 50)
	}
}

// Reset clears the window, hold state and smoothing, keeping parameters.
func (d *Derivative2_16x5) Reset() {
	d.win.reset()
	d.lastTNanos = 0
	d.hasLastPos = false
	d.lastOutX = 0
	d.lastOutY = 0
	d.ema.reset()
}

func (d *Derivative2_16x5) heldOutput() Output {
	out := Output{Quiet: true}
	if d.hasLastPos {
		out.X = d.lastOutX
		out.Y = d.lastOutY
	}
	return out
}

// Push feeds one conditioned frame.
func (d *Derivative2_16x5) Push(tNanos int64, sample []float64) (Output, bool) {
	if len(sample) != SensorCount {
		return Output{}, false
	}

	dt := derivDt(d.lastTNanos, tNanos)
	d.lastTNanos = tNanos

	if !d.win.push(sample) {
		return d.heldOutput(), false
	}

	mEff := d.mEffective
	if mEff < 2 {
		mEff = 2
	}
	if mEff > 5 {
		mEff = 5
	}
	meanK := 0.5 * float64(mEff-1)
	denom := slopeDenom(mEff)

	decay := safeExp(-dt / derivTauSec)

	q := d.noiseRound
	dead := d.motionDeadband

	var sumW, sumX, sumY float64
	for ch := 0; ch < SensorCount; ch++ {
		var num float64
		p := 1.0

		// Exponentially weighted least-squares index slope: newest sample
		// carries full weight, each older one decays by exp(-dt/τ).
		for k := mEff - 1; k >= 0; k-- {
			age := mEff - k
			xk := quantize(d.win.at(age)[ch], q)
			num += (float64(k) - meanK) * (xk * p)
			p *= decay
		}

		slope := quantize(num/denom, q)

		w := math.Abs(slope) - dead
		if w < 0 {
			w = 0
		}

		if w > 0 {
			sumW += w
			sumX += sensorLayout[ch].X * w
			sumY += sensorLayout[ch].Y * w
		}
	}

	if !(sumW > 0) {
		return d.heldOutput(), true
	}

	conf := clamp01(1 - safeExp(-sumW/d.confScale))

	if d.hasLastPos && sumW < d.holdW {
		out := d.heldOutput()
		out.Confidence = conf
		return out, true
	}

	xEst := sumX / sumW * d.rangeGain
	yEst := sumY / sumW * d.rangeGain

	minX, maxX, minY, maxY := sensorBounds()
	xEst = clamp(xEst, minX*d.rangeGain, maxX*d.rangeGain)
	yEst = clamp(yEst, minY*d.rangeGain, maxY*d.rangeGain)

	if d.hasLastPos {
		pw := d.priorStrength * (1 - conf)
		if total := sumW + pw; total > 0 {
			xEst = (sumW*xEst + pw*d.lastOutX) / total
			yEst = (sumW*yEst + pw*d.lastOutY) / total
		}
	}

	xOut, yOut := xEst, yEst
	if d.emaDegree > 0 && d.emaAlpha > 0 {
		xOut, yOut = d.ema.update(xEst, yEst, d.emaAlpha, d.emaDegree)
	}

	d.lastOutX = xOut
	d.lastOutY = yOut
	d.hasLastPos = true

	return Output{
		Valid:      conf >= 0.35,
		Quiet:      conf < 0.15,
		X:          xOut,
		Y:          yOut,
		Confidence: conf,
	}, true
}

func init() {
	registerFrom(func() Tracker { return NewDerivative2_16x5() })
}
