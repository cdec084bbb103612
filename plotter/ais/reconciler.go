// Package ais merges partial AIS updates into per-vessel state.
//
// The Reconciler is not safe for concurrent use: it belongs to the plotter
// loop, which also delivers snapshot results fetched in the background.
package ais

import (
	"sort"

	"marine/plotter/log"
	"marine/plotter/signalk"
)

var tr = log.GetTracer("ais")

// Registry maps vessel ids to their merged state.
type Registry map[string]signalk.VesselState

// Delta is the outcome of one fold step. Changed holds only the paths that
// were written, already merged. Full is the reconciler registry itself and
// is only valid until the next call into the Reconciler. Removed lists
// vessels dropped from the registry because they turned out to be self.
type Delta struct {
	Changed Registry
	Full    Registry
	Removed []string
}

// SeedRequest asks the owner to fetch a snapshot and hand it to Seed with
// the same Generation.
type SeedRequest struct {
	Generation int
}

type Reconciler struct {
	isSelf func(id string) bool

	enabled    bool
	seeded     bool
	generation int
	pending    []signalk.Partial
	full       Registry

	watches map[string][]*Watch
}

// NewReconciler creates a disabled reconciler. isSelf filters the own
// vessel out of every update.
func NewReconciler(isSelf func(id string) bool) *Reconciler {
	if isSelf == nil {
		isSelf = func(string) bool { return false }
	}
	return &Reconciler{
		isSelf:  isSelf,
		watches: make(map[string][]*Watch),
	}
}

func (r *Reconciler) Enabled() bool {
	return r.enabled
}

// Seeded reports whether the current generation received its snapshot.
func (r *Reconciler) Seeded() bool {
	return r.seeded
}

// Enable starts a new generation. Partials are buffered until Seed
// delivers its snapshot. Enabling twice is a no-op.
func (r *Reconciler) Enable() (SeedRequest, bool) {
	if r.enabled {
		return SeedRequest{}, false
	}
	r.enabled = true
	r.seeded = false
	r.generation++
	r.pending = nil
	r.full = make(Registry)
	tr.Logf("enabled generation %v", r.generation)
	return SeedRequest{Generation: r.generation}, true
}

// Disable discards the registry and any buffered partials.
func (r *Reconciler) Disable() {
	if !r.enabled {
		return
	}
	r.enabled = false
	r.seeded = false
	r.pending = nil
	r.full = nil
	for _, ws := range r.watches {
		for _, w := range ws {
			w.offer(nil)
		}
	}
	tr.Logf("disabled")
}

// Seed installs the snapshot of generation gen and folds every partial that
// arrived since Enable, in arrival order. A failed snapshot seeds nothing.
// Results of a stale generation are ignored.
func (r *Reconciler) Seed(gen int, vessels map[string]signalk.VesselState, err error) (Delta, bool) {
	if !r.enabled || r.seeded || gen != r.generation {
		return Delta{}, false
	}
	if err != nil {
		log.Warn("AIS snapshot failed, starting empty: %v", err)
		vessels = nil
	}
	r.seeded = true
	changed := make(Registry)
	for id, state := range vessels {
		if r.isSelf(id) || len(state) == 0 {
			continue
		}
		r.full[id] = state.Clone()
		changed[id] = state.Clone()
	}
	pending := r.pending
	r.pending = nil
	for _, p := range pending {
		r.fold(p, changed)
	}
	for id := range changed {
		r.notify(id)
	}
	tr.Logf("seeded %v vessels, replayed %v partials", len(vessels), len(pending))
	return Delta{Changed: changed, Full: r.full, Removed: r.dropSelf()}, true
}

// Apply folds one partial. Nothing is emitted while disabled or before the
// snapshot arrived.
func (r *Reconciler) Apply(p signalk.Partial) (Delta, bool) {
	if !r.enabled {
		return Delta{}, false
	}
	if !r.seeded {
		r.pending = append(r.pending, p)
		return Delta{}, false
	}
	removed := r.dropSelf()
	changed := make(Registry)
	r.fold(p, changed)
	if len(changed) == 0 && len(removed) == 0 {
		return Delta{}, false
	}
	for id := range changed {
		r.notify(id)
	}
	return Delta{Changed: changed, Full: r.full, Removed: removed}, true
}

// dropSelf removes vessels folded before the self id was known.
func (r *Reconciler) dropSelf() []string {
	var removed []string
	for id := range r.full {
		if r.isSelf(id) {
			delete(r.full, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		tr.Logf("dropped self %v", removed)
	}
	return removed
}

// fold merges p last write wins; timestamps are not compared.
func (r *Reconciler) fold(p signalk.Partial, changed Registry) {
	for id, update := range p {
		if r.isSelf(id) || len(update) == 0 {
			continue
		}
		state := r.full[id]
		if state == nil {
			state = make(signalk.VesselState)
			r.full[id] = state
		}
		state.Merge(update)
		c := changed[id]
		if c == nil {
			c = make(signalk.VesselState)
			changed[id] = c
		}
		c.Merge(update)
	}
}

// Vessel is the merged state of id.
func (r *Reconciler) Vessel(id string) (signalk.VesselState, bool) {
	state, ok := r.full[id]
	if !ok {
		return nil, false
	}
	return state.Clone(), true
}

// Len is the number of vessels in the registry.
func (r *Reconciler) Len() int {
	return len(r.full)
}

// Watch follows the merged state of one vessel.
func (r *Reconciler) Watch(id string) *Watch {
	w := &Watch{id: id, c: make(chan signalk.VesselState, 1), r: r}
	r.watches[id] = append(r.watches[id], w)
	if state, ok := r.full[id]; ok {
		w.offer(state.Clone())
	}
	return w
}

func (r *Reconciler) notify(id string) {
	ws := r.watches[id]
	if len(ws) == 0 {
		return
	}
	state := r.full[id]
	for _, w := range ws {
		w.offer(state.Clone())
	}
}

func (r *Reconciler) unwatch(w *Watch) {
	ws := r.watches[w.id]
	for i, x := range ws {
		if x == w {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(r.watches, w.id)
	} else {
		r.watches[w.id] = ws
	}
}

// Watch delivers the latest state of a vessel; unread states are replaced.
// A nil state means the registry was discarded.
type Watch struct {
	id string
	c  chan signalk.VesselState
	r  *Reconciler
}

func (w *Watch) ID() string {
	return w.id
}

func (w *Watch) C() <-chan signalk.VesselState {
	return w.c
}

// Close must be called from the reconciler owner.
func (w *Watch) Close() {
	if w.r != nil {
		w.r.unwatch(w)
		w.r = nil
	}
}

func (w *Watch) offer(state signalk.VesselState) {
	select {
	case w.c <- state:
		return
	default:
	}
	select {
	case <-w.c:
	default:
	}
	w.c <- state
}
