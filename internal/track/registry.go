package track

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTracker reports a tracker id with no registry entry.
var ErrUnknownTracker = errors.New("unknown tracker")

// Registration binds a tracker description to its factory.
type Registration struct {
	Info    Info
	Factory func() Tracker
}

var (
	registryMu  sync.Mutex
	registry    = make(map[string]Registration)
	builtinOnce sync.Once
)

// Register adds a tracker to the process-wide registry. Registration is
// idempotent: a duplicate id leaves the existing entry in place. Tracker
// compilation units self-register from init.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[reg.Info.ID]; ok {
		return
	}
	registry[reg.Info.ID] = reg
}

// registerFrom builds a Registration by instantiating the tracker once for
// its schema, then registers the factory.
func registerFrom(factory func() Tracker) {
	probe := factory()
	Register(Registration{
		Info: Info{
			ID:       probe.ID(),
			Channels: probe.Channels(),
			Window:   probe.Window(),
			Params:   probe.Params(),
			Defaults: probe.Defaults(),
		},
		Factory: factory,
	})
}

// ensureBuiltins lazily registers the trackers that do not self-register
// from init. Safe to call from every registry entry point.
func ensureBuiltins() {
	builtinOnce.Do(func() {
		registerFrom(func() Tracker { return NewBruteForce16x2() })
	})
}

// List returns every registered tracker description sorted by id.
func List() []Info {
	ensureBuiltins()
	registryMu.Lock()
	defer registryMu.Unlock()

	out := make([]Info, 0, len(registry))
	for _, reg := range registry {
		out = append(out, reg.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the description for id without instantiating the tracker.
func Lookup(id string) (Info, error) {
	ensureBuiltins()
	registryMu.Lock()
	defer registryMu.Unlock()

	reg, ok := registry[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownTracker, id)
	}
	return reg.Info, nil
}

// New instantiates the tracker registered under id with default parameters.
func New(id string) (Tracker, error) {
	ensureBuiltins()
	registryMu.Lock()
	reg, ok := registry[id]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTracker, id)
	}
	return reg.Factory(), nil
}
