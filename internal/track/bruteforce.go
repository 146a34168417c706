package track

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BruteForceID is the registry id of the two-charge grid solver.
const BruteForceID = "BruteForce_16x2"

// gridPoint is one candidate position with its precomputed inverse distances
// to every pad. Candidates are addressed by index into the arena, never by
// reference.
type gridPoint struct {
	pos Vec3
	inv [SensorCount]float64
}

// BruteForce16x2 jointly estimates two time-adjacent charge states and a 3D
// position by dense search over a configurable lattice. Per-sensor voltages
// follow the coupled-RC dipole model: each charge contributes a term
// proportional to its inverse distance, and consecutive frames are linked by
// y = (V1+V2)/(2·R·C) + (V2−V1).
type BruteForce16x2 struct {
	// runtime params
	rcR       float64
	rcC       float64
	emaAlpha  float64
	quietErr  float64
	gridMin   Vec3
	gridMax   Vec3
	gridStep  float64
	paramVals []float64

	grid []gridPoint

	// state machine
	prevV       [SensorCount]float64
	hasPrevV    bool
	prevGridIdx int
	hasPrevIdx  bool

	emaInit  [2]bool
	emaState [2]Vec3

	hasLastSmoothed bool
	lastSmoothed    Vec3
}

// NewBruteForce16x2 returns a solver with default parameters and a built
// grid arena.
func NewBruteForce16x2() *BruteForce16x2 {
	s := &BruteForce16x2{}
	s.SetParams(s.Defaults())
	s.Reset()
	return s
}

// ID returns the registry id.
func (s *BruteForce16x2) ID() string { return BruteForceID }

// Channels returns the per-frame sample count the solver accepts.
func (s *BruteForce16x2) Channels() int { return SensorCount }

// Window returns the number of consecutive frames inspected per output.
func (s *BruteForce16x2) Window() int { return 2 }

// Params returns the ordered parameter schema.
func (s *BruteForce16x2) Params() []ParamDesc {
	return []ParamDesc{
		{Key: "rc_r", Label: "RC_R (Ohm)", Min: 1e3, Max: 1e14, Default: 1e8, Step: 1e6, Decimals: 0, Scientific: true},
		{Key: "rc_c", Label: "RC_C (F)", Min: 1e-18, Max: 1e-3, Default: 5e-10, Step: 1e-11, Decimals: 0, Scientific: true},
		{Key: "ema_a", Label: "EMA alpha", Min: 0, Max: 1, Default: 0.2, Step: 0.01, Decimals: 2},
		{Key: "quiet", Label: "Quiet err thresh", Min: 0, Max: 1e6, Default: 0.3, Step: 0.01, Decimals: 2},

		{Key: "xmin", Label: "Grid x min", Min: -1, Max: 1, Default: -0.06, Step: 0.01, Decimals: 2},
		{Key: "xmax", Label: "Grid x max", Min: -1, Max: 1, Default: 0.06, Step: 0.01, Decimals: 2},
		{Key: "ymin", Label: "Grid y min", Min: -1, Max: 1, Default: -0.06, Step: 0.01, Decimals: 2},
		{Key: "ymax", Label: "Grid y max", Min: -1, Max: 1, Default: 0.06, Step: 0.01, Decimals: 2},
		{Key: "zmin", Label: "Grid z min", Min: -1, Max: 1, Default: 0.01, Step: 0.01, Decimals: 2},
		{Key: "zmax", Label: "Grid z max", Min: -1, Max: 1, Default: 0.10, Step: 0.01, Decimals: 2},
		{Key: "step", Label: "Grid step", Min: 1e-6, Max: 0.1, Default: 0.01, Step: 0.001, Decimals: 3},
	}
}

// Defaults returns the default parameter vector.
func (s *BruteForce16x2) Defaults() []float64 {
	return defaultsOf(s.Params())
}

// SetParams applies an ordered value vector. Short vectors leave trailing
// parameters unchanged; grid changes rebuild the arena and reset tracking.
func (s *BruteForce16x2) SetParams(values []float64) {
	if s.paramVals == nil {
		s.paramVals = s.Defaults()
	}
	copy(s.paramVals, values)

	rcR := s.paramVals[0]
	if rcR < 1 {
		rcR = 1
	}
	rcC := s.paramVals[1]
	if rcC < 1e-18 {
		rcC = 1e-18
	}
	s.rcR = rcR
	s.rcC = rcC
	s.emaAlpha = clamp01(s.paramVals[2])
	s.quietErr = math.Max(0, s.paramVals[3])

	xmin, xmax := s.paramVals[4], s.paramVals[5]
	ymin, ymax := s.paramVals[6], s.paramVals[7]
	zmin, zmax := s.paramVals[8], s.paramVals[9]
	step := s.paramVals[10]
	if step <= 0 {
		step = 0.01
	}
	if xmin > xmax {
		xmin, xmax = xmax, xmin
	}
	if ymin > ymax {
		ymin, ymax = ymax, ymin
	}
	if zmin > zmax {
		zmin, zmax = zmax, zmin
	}

	newMin := Vec3{xmin, ymin, zmin}
	newMax := Vec3{xmax, ymax, zmax}
	if s.grid == nil || newMin != s.gridMin || newMax != s.gridMax || step != s.gridStep {
		s.gridMin = newMin
		s.gridMax = newMax
		s.gridStep = step
		s.rebuildGrid()
		s.Reset()
	}
}

// Reset drops the tracking state machine and smoothing, keeping parameters
// and the grid arena.
func (s *BruteForce16x2) Reset() {
	s.hasPrevV = false
	s.prevV = [SensorCount]float64{}
	s.prevGridIdx = -1
	s.hasPrevIdx = false

	s.emaInit = [2]bool{}
	s.emaState = [2]Vec3{}

	s.hasLastSmoothed = false
	s.lastSmoothed = Vec3{}
}

// GridSize returns the number of candidate positions in the arena.
func (s *BruteForce16x2) GridSize() int { return len(s.grid) }

func (s *BruteForce16x2) rebuildGrid() {
	s.grid = s.grid[:0]

	const eps = 1e-12
	for x := s.gridMin.X; x <= s.gridMax.X+eps; x += s.gridStep {
		for y := s.gridMin.Y; y <= s.gridMax.Y+eps; y += s.gridStep {
			for z := s.gridMin.Z; z <= s.gridMax.Z+eps; z += s.gridStep {
				g := gridPoint{pos: Vec3{x, y, z}}
				for j, sp := range sensorLayout {
					dx := x - sp.X
					dy := y - sp.Y
					dz := z - sp.Z
					d := math.Sqrt(dx*dx + dy*dy + dz*dz)
					if d < 1e-9 {
						d = 1e-9
					}
					g.inv[j] = 1 / d
				}
				s.grid = append(s.grid, g)
			}
		}
	}
}

// solveStatic finds the single grid point and charge best explaining one
// frame by per-point least squares: q = Σ V·inv / Σ inv², residual Σ(V−q·inv)².
func (s *BruteForce16x2) solveStatic(v []float64) (idx int, q, err float64) {
	bestErr := math.MaxFloat64
	bestIdx := -1
	bestQ := 0.0

	for gi := range s.grid {
		inv := s.grid[gi].inv[:]

		num := floats.Dot(v, inv)
		den := floats.Dot(inv, inv)
		if den < 1e-18 {
			continue
		}
		q := num / den

		var resid float64
		for j, invj := range inv {
			diff := v[j] - q*invj
			resid += diff * diff
		}

		if resid < bestErr {
			bestErr = resid
			bestIdx = gi
			bestQ = q
		}
	}

	return bestIdx, bestQ, bestErr
}

// solveDynamic searches every candidate second position given the previous
// position index, solving the 2×2 normal equations for the two charges at
// each candidate and keeping the residual arg-min.
func (s *BruteForce16x2) solveDynamic(v1, v2 []float64, idxR1 int) (idx int, q1, q2, err float64) {
	if idxR1 < 0 || idxR1 >= len(s.grid) {
		return -1, 0, 0, math.MaxFloat64
	}

	inv1 := s.grid[idxR1].inv[:]

	var y [SensorCount]float64
	k := 1 / (2 * s.rcR * s.rcC)
	for j := range y {
		y[j] = (v1[j]+v2[j])*k + (v2[j] - v1[j])
	}

	bestErr := math.MaxFloat64
	bestIdx := -1
	var bestQ1, bestQ2 float64

	for gi := range s.grid {
		inv2 := s.grid[gi].inv[:]

		var a11, a22, a12, b1, b2 float64
		for j := 0; j < SensorCount; j++ {
			phi1 := -inv1[j]
			phi2 := inv2[j]

			a11 += phi1 * phi1
			a22 += phi2 * phi2
			a12 += phi1 * phi2

			b1 += phi1 * y[j]
			b2 += phi2 * y[j]
		}

		det := a11*a22 - a12*a12
		if math.Abs(det) < 1e-18 {
			continue
		}

		q1k := (a22*b1 - a12*b2) / det
		q2k := (-a12*b1 + a11*b2) / det

		var resid float64
		for j := 0; j < SensorCount; j++ {
			diff := y[j] - (-inv1[j])*q1k - inv2[j]*q2k
			resid += diff * diff
		}

		if resid < bestErr {
			bestErr = resid
			bestIdx = gi
			bestQ1 = q1k
			bestQ2 = q2k
		}
	}

	return bestIdx, bestQ1, bestQ2, bestErr
}

// smooth runs the raw position through the two-stage EMA cascade.
func (s *BruteForce16x2) smooth(x Vec3) Vec3 {
	in := x
	for stage := 0; stage < 2; stage++ {
		if !s.emaInit[stage] {
			s.emaState[stage] = in
			s.emaInit[stage] = true
		} else {
			a := s.emaAlpha
			s.emaState[stage].X = a*in.X + (1-a)*s.emaState[stage].X
			s.emaState[stage].Y = a*in.Y + (1-a)*s.emaState[stage].Y
			s.emaState[stage].Z = a*in.Z + (1-a)*s.emaState[stage].Z
		}
		in = s.emaState[stage]
	}
	return s.emaState[1]
}

// Push feeds one conditioned frame. The first frame only buffers; each later
// frame bootstraps a static solve when no prior index exists, then runs the
// dynamic two-charge solve against the previous frame.
func (s *BruteForce16x2) Push(tNanos int64, sample []float64) (Output, bool) {
	_ = tNanos
	if len(sample) != SensorCount {
		return Output{}, false
	}

	var cur [SensorCount]float64
	copy(cur[:], sample)

	if !s.hasPrevV {
		s.prevV = cur
		s.hasPrevV = true
		s.prevGridIdx = -1
		s.hasPrevIdx = false
		return Output{}, false
	}

	v1 := s.prevV[:]
	v2 := cur[:]

	if !s.hasPrevIdx {
		idx1, _, _ := s.solveStatic(v1)
		s.prevGridIdx = idx1
		s.hasPrevIdx = idx1 >= 0
	}

	haveR2 := false
	var rawPos Vec3
	var q1, q2 float64
	errDyn := math.MaxFloat64

	if s.hasPrevIdx && s.prevGridIdx >= 0 {
		idx2, dq1, dq2, derr := s.solveDynamic(v1, v2, s.prevGridIdx)
		if idx2 >= 0 {
			haveR2 = true
			rawPos = s.grid[idx2].pos
			q1, q2, errDyn = dq1, dq2, derr
			s.prevGridIdx = idx2
		} else {
			s.hasPrevIdx = false
			s.prevGridIdx = -1
		}
	}

	quiet := haveR2 && errDyn <= s.quietErr

	var out Output
	switch {
	case haveR2 && !quiet:
		smoothed := s.smooth(rawPos)
		s.lastSmoothed = smoothed
		s.hasLastSmoothed = true

		out.Valid = true
		out.X, out.Y, out.Z = smoothed.X, smoothed.Y, smoothed.Z
		out.Q1, out.Q2, out.Err = q1, q2, errDyn
		out.Confidence = 1 / (1 + errDyn)

	case haveR2 && quiet:
		// Quiet frame: republish the last smoothed position unchanged;
		// q1/q2/err still describe the attempt.
		out.Quiet = true
		out.Q1, out.Q2, out.Err = q1, q2, errDyn
		out.Confidence = 1 / (1 + errDyn)
		if s.hasLastSmoothed {
			out.Valid = true
			out.X, out.Y, out.Z = s.lastSmoothed.X, s.lastSmoothed.Y, s.lastSmoothed.Z
		}

	default:
		if s.hasLastSmoothed {
			out.Valid = true
			out.X, out.Y, out.Z = s.lastSmoothed.X, s.lastSmoothed.Y, s.lastSmoothed.Z
		}
	}

	if quiet {
		// Re-bootstrap from a static solve on the next frame.
		s.hasPrevIdx = false
		s.prevGridIdx = -1
	}

	s.prevV = cur
	s.hasPrevV = true

	return out, out.Valid || out.Quiet
}
