package track

import "math"

// Quadrant16x1ID is the registry id of the single-frame heuristic baseline.
const Quadrant16x1ID = "Quadrant_16x1"

// Quadrant16x1 is a deliberately lightweight single-frame baseline: it splits
// the channels into index halves and index parities, and maps the normalised
// differences to a position. Useful for sanity-checking a stream before the
// heavier solvers are brought up.
type Quadrant16x1 struct {
	scale   float64
	gain    float64
	minConf float64
}

// NewQuadrant16x1 returns a heuristic with default parameters.
func NewQuadrant16x1() *Quadrant16x1 {
	q := &Quadrant16x1{}
	q.SetParams(q.Defaults())
	return q
}

// ID returns the registry id.
func (q *Quadrant16x1) ID() string { return Quadrant16x1ID }

// Channels returns the per-frame sample count.
func (q *Quadrant16x1) Channels() int { return SensorCount }

// Window returns 1: every frame produces an output.
func (q *Quadrant16x1) Window() int { return 1 }

// Params returns the ordered parameter schema.
func (q *Quadrant16x1) Params() []ParamDesc {
	return []ParamDesc{
		{Key: "scale", Label: "Scale", Min: 0, Max: 0.2, Default: 0.03, Step: 0.001, Decimals: 6},
		{Key: "gain", Label: "Conf gain", Min: 0, Max: 50, Default: 5, Step: 0.1, Decimals: 4},
		{Key: "min_conf", Label: "Min conf", Min: 0, Max: 1, Default: 0.15, Step: 0.01, Decimals: 4},
	}
}

// Defaults returns the default parameter vector.
func (q *Quadrant16x1) Defaults() []float64 {
	return defaultsOf(q.Params())
}

// SetParams applies an ordered value vector with range clamping.
func (q *Quadrant16x1) SetParams(values []float64) {
	if len(values) >= 1 {
		q.scale = math.Max(0, values[0])
	}
	if len(values) >= 2 {
		q.gain = math.Max(0, values[1])
	}
	if len(values) >= 3 {
		q.minConf = clamp01(values[2])
	}
}

// Reset is a no-op: the heuristic holds no cross-frame state.
func (q *Quadrant16x1) Reset() {}

// Push evaluates one frame.
func (q *Quadrant16x1) Push(tNanos int64, sample []float64) (Output, bool) {
	_ = tNanos
	if len(sample) != SensorCount {
		return Output{}, false
	}

	var lowHalf, highHalf, even, odd, sumAbs float64
	for i, v := range sample {
		sumAbs += math.Abs(v)
		if i < 8 {
			lowHalf += v
		} else {
			highHalf += v
		}
		if i&1 == 0 {
			even += v
		} else {
			odd += v
		}
	}

	dx := (lowHalf - highHalf) / (math.Abs(lowHalf) + math.Abs(highHalf) + 1e-9)
	dy := (even - odd) / (math.Abs(even) + math.Abs(odd) + 1e-9)

	meanAbs := sumAbs / SensorCount
	conf := clamp01(1 - math.Exp(-q.gain*meanAbs))

	return Output{
		Valid:      true,
		Quiet:      conf < q.minConf,
		X:          q.scale * dx,
		Y:          q.scale * dy,
		Confidence: conf,
		Q1:         dx,
		Q2:         dy,
		Err:        1 - conf,
	}, true
}

func init() {
	registerFrom(func() Tracker { return NewQuadrant16x1() })
}
