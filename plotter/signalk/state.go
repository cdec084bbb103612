package signalk

import (
	"sync"
)

// State is the transport lifecycle of a telemetry provider.
type State int

const (
	Connecting State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateWatch receives the state transitions published after it was created,
// in publish order. A watcher that falls behind loses its oldest pending
// transitions, never the latest one.
type StateWatch struct {
	fanout *StateFanout
	out    chan State
	once   sync.Once
}

// C delivers the transitions. It is closed after Close or once the fanout
// is closed and the pending transitions were read.
func (w *StateWatch) C() <-chan State {
	return w.out
}

func (w *StateWatch) Close() {
	w.fanout.remove(w)
}

// offer is called with the fanout lock held, which makes it the only sender.
func (w *StateWatch) offer(s State) {
	for {
		select {
		case w.out <- s:
			return
		default:
		}
		select {
		case <-w.out:
		default:
		}
	}
}

func (w *StateWatch) end() {
	w.once.Do(func() { close(w.out) })
}

// StateFanout delivers state transitions to every watcher in order. Publish
// never blocks.
type StateFanout struct {
	mu      sync.Mutex
	closed  bool
	watches map[*StateWatch]struct{}
}

const stateBacklog = 8

func NewStateFanout() *StateFanout {
	return &StateFanout{watches: map[*StateWatch]struct{}{}}
}

// Publish is a no-op once the fanout is closed.
func (f *StateFanout) Publish(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for w := range f.watches {
		w.offer(s)
	}
}

func (f *StateFanout) Watch() *StateWatch {
	w := &StateWatch{fanout: f, out: make(chan State, stateBacklog)}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		w.end()
		return w
	}
	f.watches[w] = struct{}{}
	return w
}

func (f *StateFanout) remove(w *StateWatch) {
	f.mu.Lock()
	delete(f.watches, w)
	f.mu.Unlock()
	w.end()
}

// Close ends every watch after the transitions already published.
func (f *StateFanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for w := range f.watches {
		delete(f.watches, w)
		w.end()
	}
}
