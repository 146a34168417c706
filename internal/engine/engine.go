// Package engine wires the line framer, parser, conditioning pipeline and
// the selected tracker into one streaming session. Transports feed it raw
// byte chunks; subscribers receive frame, pose, stats and status events.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/capgrid/captrack/internal/dsp"
	"github.com/capgrid/captrack/internal/monitoring"
	"github.com/capgrid/captrack/internal/stream"
	"github.com/capgrid/captrack/internal/timeutil"
	"github.com/capgrid/captrack/internal/track"
)

// subscriberBuffer is the per-subscriber channel depth. Slow subscribers drop
// events rather than stall the producer callback.
const subscriberBuffer = 64

// Engine is the core streaming session. One exclusive lock serialises all
// pipeline and tracker mutations with the chunk-processing path, so filter
// delay lines, tracker windows and bias accumulators are never observed
// half-updated. The engine itself never blocks on I/O beyond its sinks.
type Engine struct {
	clock timeutil.Clock

	connected atomic.Bool

	mu sync.Mutex

	framer   stream.Framer
	pipeline *dsp.Pipeline

	tracker   track.Tracker
	trackerID string

	base    time.Time
	syncing bool

	ok  uint64
	bad uint64

	stats streamStats

	lastBiasHas        bool
	lastBiasCapturing  bool
	countsEmitted      bool
	lastCountsEmit     int64
	trackerStatusShown bool
	lastTrackerStatus  int64

	weights        []float64
	weightsPending bool

	csv *csvSink

	subMu sync.Mutex
	subs  map[string]chan Event
}

// New returns an engine with the given clock and pipeline configuration.
func New(clock timeutil.Clock, cfg dsp.Config) *Engine {
	return &Engine{
		clock:    clock,
		pipeline: dsp.NewPipeline(cfg),
		subs:     make(map[string]chan Event),
	}
}

// Subscribe registers an event channel and returns its id. Events are
// dropped, never blocked on, when a subscriber falls behind.
func (e *Engine) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	e.subMu.Lock()
	e.subs[id] = ch
	e.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (e *Engine) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if ch, ok := e.subs[id]; ok {
		close(ch)
		delete(e.subs, id)
	}
}

func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) status(format string, v ...interface{}) {
	text := fmt.Sprintf(format, v...)
	monitoring.Logf("engine: %s", text)
	e.publish(StatusEvent{Text: text})
}

// StartSession begins a new streaming session. discardFirstLine enables the
// serial sync policy: bytes up to and including the first line terminator are
// discarded, because serial opens commonly land mid-line. Stream state,
// counters, stage state and the channel latch all reset; weights loaded
// earlier return to pending and re-apply when the new stream latches a
// matching channel count.
func (e *Engine) StartSession(discardFirstLine bool) {
	e.mu.Lock()
	e.framer.Clear()
	e.pipeline.Reset()
	e.base = e.clock.Now()
	e.weightsPending = len(e.weights) > 0
	e.syncing = discardFirstLine
	e.ok = 0
	e.bad = 0
	e.stats.reset()
	e.countsEmitted = false
	e.lastCountsEmit = 0
	e.trackerStatusShown = false
	e.lastTrackerStatus = 0
	e.lastBiasHas, e.lastBiasCapturing = e.pipeline.BiasState()
	if e.tracker != nil {
		e.tracker.Reset()
	}
	e.mu.Unlock()

	e.connected.Store(true)
	e.publish(StatsEvent{})
	e.publish(BiasEvent{HasBias: e.lastBiasHas, Capturing: e.lastBiasCapturing})
}

// Disconnect ends the session. It is idempotent; after it returns, producer
// callbacks become no-ops. The CSV sink closes, the framer drops partial
// bytes, and stream state is released.
func (e *Engine) Disconnect() {
	if !e.connected.CompareAndSwap(true, false) {
		return
	}

	e.StopCSV()

	e.mu.Lock()
	e.framer.Clear()
	e.stats.reset()
	e.mu.Unlock()

	e.publish(StatusEvent{Text: "disconnected"})
}

// Connected reports whether a session is live.
func (e *Engine) Connected() bool {
	return e.connected.Load()
}

// PushChunk processes one transport byte chunk. Outside a session it is a
// no-op.
func (e *Engine) PushChunk(chunk []byte) {
	if !e.connected.Load() {
		return
	}

	e.mu.Lock()
	lines := e.framer.Push(chunk)
	if e.syncing && len(lines) > 0 {
		lines = lines[1:]
		e.syncing = false
	}
	e.mu.Unlock()

	for _, line := range lines {
		e.processLine(line)
	}
}

func (e *Engine) processLine(line string) {
	vals, err := stream.ParseLine(line)
	if err != nil {
		e.countBad()
		return
	}

	e.mu.Lock()

	latched := e.pipeline.ChannelCount()
	if latched == 0 {
		// First accepted frame of the session latches N and clears the
		// derived stream stats.
		e.stats.reset()
	} else if len(vals) != latched {
		e.bad++
		e.mu.Unlock()
		return
	}

	tNanos := e.clock.Since(e.base).Nanoseconds()
	out := e.pipeline.Process(tNanos, vals)
	if !out.OK {
		e.bad++
		e.mu.Unlock()
		return
	}
	e.ok++
	okNow, badNow := e.ok, e.bad

	if latched == 0 && e.weightsPending && len(e.weights) == len(vals) {
		e.pipeline.SetModelWeights(e.weights)
		e.weightsPending = false
	}

	biasHas, biasCapturing := e.pipeline.BiasState()
	biasChanged := biasHas != e.lastBiasHas || biasCapturing != e.lastBiasCapturing
	e.lastBiasHas, e.lastBiasCapturing = biasHas, biasCapturing

	statsEv, emitStats := e.stats.record(tNanos)

	emitCounts := false
	if !e.countsEmitted || tNanos-e.lastCountsEmit >= countsEmitIntervalNanos {
		e.countsEmitted = true
		e.lastCountsEmit = tNanos
		emitCounts = true
	}

	if e.csv != nil {
		if err := e.csv.writeFrame(out.Frame.TNanos, out.Frame.X, out.ModelValid, out.ModelOut); err != nil {
			e.csv.close()
			e.csv = nil
			e.status("csv write failed: %v; recording stopped", err)
		}
	}

	frameX := append([]float64(nil), out.Frame.X...)

	var poseEv *PoseEvent
	var mismatch bool
	if e.tracker != nil {
		trOut, produced := e.tracker.Push(out.Frame.TNanos, out.Frame.X)
		if produced {
			poseEv = &PoseEvent{TNanos: out.Frame.TNanos, TrackerID: e.trackerID, Output: trOut}
		} else if len(out.Frame.X) != e.tracker.Channels() {
			if !e.trackerStatusShown || tNanos-e.lastTrackerStatus >= countsEmitIntervalNanos {
				e.trackerStatusShown = true
				e.lastTrackerStatus = tNanos
				mismatch = true
			}
		}
	}
	trackerID := e.trackerID
	trackerCh := 0
	if e.tracker != nil {
		trackerCh = e.tracker.Channels()
	}

	e.mu.Unlock()

	if biasChanged {
		e.publish(BiasEvent{HasBias: biasHas, Capturing: biasCapturing})
	}

	e.publish(FrameEvent{
		TNanos:     out.Frame.TNanos,
		X:          frameX,
		ModelValid: out.ModelValid,
		ModelOut:   out.ModelOut,
	})

	if poseEv != nil {
		e.publish(*poseEv)
	}
	if mismatch {
		e.status("tracker %s expects %d channels, stream has %d", trackerID, trackerCh, len(frameX))
	}

	if emitStats {
		e.publish(statsEv)
	}
	if emitCounts {
		e.publish(CountsEvent{OK: okNow, Bad: badNow})
	}
}

func (e *Engine) countBad() {
	e.mu.Lock()
	e.bad++
	e.mu.Unlock()
}

// Counts returns the accepted and rejected frame counters.
func (e *Engine) Counts() (ok, bad uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ok, e.bad
}

// SetPipelineConfig swaps the conditioning configuration at a frame boundary.
func (e *Engine) SetPipelineConfig(cfg dsp.Config) {
	e.mu.Lock()
	e.pipeline.SetConfig(cfg)
	has, capturing := e.pipeline.BiasState()
	e.lastBiasHas, e.lastBiasCapturing = has, capturing
	e.mu.Unlock()

	e.publish(BiasEvent{HasBias: has, Capturing: capturing})
}

// PipelineConfig returns the active conditioning configuration.
func (e *Engine) PipelineConfig() dsp.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Config()
}

// BeginBiasCapture starts a bias capture over max(1, frames) frames. It has
// no effect before the channel count latches.
func (e *Engine) BeginBiasCapture(frames int) {
	e.mu.Lock()
	if e.pipeline.ChannelCount() == 0 {
		e.mu.Unlock()
		e.status("bias capture ignored: no frames seen yet")
		return
	}
	e.pipeline.BeginBiasCapture(frames)
	has, capturing := e.pipeline.BiasState()
	e.lastBiasHas, e.lastBiasCapturing = has, capturing
	e.mu.Unlock()

	e.publish(BiasEvent{HasBias: has, Capturing: capturing})
	e.status("bias capture started")
}

// BiasState reports (hasBias, capturing).
func (e *Engine) BiasState() (has, capturing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.BiasState()
}

// SaveBiasCSV writes the stored bias to path. A missing bias or a resource
// failure surfaces as a status string and an error; the session continues.
func (e *Engine) SaveBiasCSV(path string) error {
	e.mu.Lock()
	bias := e.pipeline.Bias()
	e.mu.Unlock()

	if bias == nil {
		e.status("no stored bias")
		return fmt.Errorf("no stored bias")
	}
	if err := writeBiasCSV(path, bias); err != nil {
		e.status("bias csv save failed: %v", err)
		return err
	}
	e.status("bias csv saved")
	return nil
}

// LoadWeights reads a single-line weights CSV. If the stream has latched a
// matching channel count the weights apply immediately; otherwise they stay
// pending and apply when the count latches.
func (e *Engine) LoadWeights(path string) error {
	w, err := dsp.LoadWeightsCSV(path)
	if err != nil {
		e.status("weights load failed: %v", err)
		return err
	}

	e.mu.Lock()
	e.weights = w
	e.weightsPending = true
	applied := false
	if n := e.pipeline.ChannelCount(); n != 0 && len(w) == n {
		e.pipeline.SetModelWeights(w)
		e.weightsPending = false
		applied = true
	}
	e.mu.Unlock()

	if applied {
		e.status("weights applied")
	} else {
		e.status("weights loaded (pending)")
	}
	return nil
}

// StartCSV begins streaming conditioned frames to a CSV file. A failure to
// open the file disables the feature and surfaces as a status string.
func (e *Engine) StartCSV(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.csv != nil {
		e.csv.close()
		e.csv = nil
	}

	baseNanos := e.clock.Since(e.base).Nanoseconds()
	sink, err := newCSVSink(path, e.pipeline.Config().EnableModel, baseNanos)
	if err != nil {
		e.status("csv open failed: %v", err)
		return err
	}
	e.csv = sink
	return nil
}

// StopCSV flushes and closes the CSV sink, if recording.
func (e *Engine) StopCSV() {
	e.mu.Lock()
	sink := e.csv
	e.csv = nil
	e.mu.Unlock()

	if sink != nil {
		if err := sink.close(); err != nil {
			e.status("csv close failed: %v", err)
		}
	}
}

// SelectTracker instantiates the registered tracker id for this session,
// replacing any previous tracker. An empty id deselects.
func (e *Engine) SelectTracker(id string) error {
	if id == "" {
		e.mu.Lock()
		e.tracker = nil
		e.trackerID = ""
		e.mu.Unlock()
		return nil
	}

	tr, err := track.New(id)
	if err != nil {
		e.status("select tracker: %v", err)
		return err
	}

	e.mu.Lock()
	e.tracker = tr
	e.trackerID = id
	e.trackerStatusShown = false
	e.lastTrackerStatus = 0
	e.mu.Unlock()

	e.status("tracker %s selected", id)
	return nil
}

// TrackerID returns the selected tracker id, or "".
func (e *Engine) TrackerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trackerID
}

// SetTrackerParams applies an ordered parameter vector to the selected
// tracker. Values are clamped inside the tracker.
func (e *Engine) SetTrackerParams(values []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker != nil {
		e.tracker.SetParams(values)
	}
}

// ResetTracker clears the selected tracker's windows and smoothing state.
func (e *Engine) ResetTracker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker != nil {
		e.tracker.Reset()
	}
}
