package signalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(w *StateWatch) []State {
	var got []State
	for s := range w.C() {
		got = append(got, s)
	}
	return got
}

func TestStateFanoutOrder(t *testing.T) {
	for i := 0; i < 2000; i++ {
		f := NewStateFanout()
		a, b := f.Watch(), f.Watch()
		done := make(chan []State)
		go func() { done <- drain(a) }()
		f.Publish(Connecting)
		f.Publish(Connected)
		f.Publish(Disconnected)
		f.Close()
		require.Equal(t, []State{Connecting, Connected, Disconnected}, <-done)
		require.Equal(t, []State{Connecting, Connected, Disconnected}, drain(b))
	}
}

func TestStateFanoutSlowWatcher(t *testing.T) {
	f := NewStateFanout()
	w := f.Watch()
	for i := 0; i < 3*stateBacklog; i++ {
		f.Publish(Connected)
	}
	f.Publish(Disconnected)
	f.Close()

	got := drain(w)
	assert.Len(t, got, stateBacklog)
	assert.Equal(t, Disconnected, got[len(got)-1])
}

func TestStateFanoutClose(t *testing.T) {
	f := NewStateFanout()
	w := f.Watch()
	w.Close()
	f.Publish(Connected)
	assert.Empty(t, drain(w))
	w.Close()

	f.Close()
	f.Publish(Disconnected)
	late := f.Watch()
	assert.Empty(t, drain(late))
	late.Close()
	f.Close()
}
