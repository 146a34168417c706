package engine

// streamStats accumulates per-session stream telemetry: total accepted
// samples, elapsed time between first and last sample, a rolling one-second
// sample window and the last inter-sample delta. Session timestamps start at
// zero, so state is tracked with flags rather than zero sentinels.
type streamStats struct {
	started      bool
	firstNanos   int64
	prevNanos    int64
	lastNanos    int64
	lastDtNanos  int64
	totalSamples uint64
	emitted      bool
	lastEmit     int64
	lastSecond   []int64
}

const (
	statsEmitIntervalNanos  = 200_000_000
	countsEmitIntervalNanos = 500_000_000
	rollingWindowNanos      = 1_000_000_000
)

func (s *streamStats) reset() {
	s.started = false
	s.firstNanos = 0
	s.prevNanos = 0
	s.lastNanos = 0
	s.lastDtNanos = 0
	s.totalSamples = 0
	s.emitted = false
	s.lastEmit = 0
	s.lastSecond = s.lastSecond[:0]
}

// record folds one accepted sample timestamp in and reports whether an emit
// is due, returning the snapshot to publish when it is.
func (s *streamStats) record(tNanos int64) (StatsEvent, bool) {
	s.totalSamples++

	if !s.started {
		s.started = true
		s.firstNanos = tNanos
		s.lastDtNanos = 0
	} else {
		s.lastDtNanos = tNanos - s.prevNanos
	}
	s.prevNanos = tNanos
	s.lastNanos = tNanos

	s.lastSecond = append(s.lastSecond, tNanos)
	for len(s.lastSecond) > 0 && tNanos-s.lastSecond[0] > rollingWindowNanos {
		s.lastSecond = s.lastSecond[1:]
	}

	if s.emitted && tNanos-s.lastEmit < statsEmitIntervalNanos {
		return StatsEvent{}, false
	}
	s.emitted = true
	s.lastEmit = tNanos

	elapsed := 0.0
	if s.lastNanos > s.firstNanos {
		elapsed = float64(s.lastNanos-s.firstNanos) * 1e-9
	}
	return StatsEvent{
		TotalSamples:      s.totalSamples,
		ElapsedSec:        elapsed,
		LastSecondSamples: len(s.lastSecond),
		LastDtSec:         float64(s.lastDtNanos) * 1e-9,
	}, true
}
