package ais

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marine/gogroup"
	"marine/plotter/signalk"
)

const selfID = "urn:mrn:imo:mmsi:230000001"

func isSelf(id string) bool { return id == selfID || id == "self" }

func pv(v interface{}) signalk.PathValue {
	return signalk.PathValue{Value: v}
}

func partial(id, path string, v interface{}) signalk.Partial {
	return signalk.Partial{id: {path: pv(v)}}
}

func TestApplyBeforeEnable(t *testing.T) {
	r := NewReconciler(isSelf)
	_, ok := r.Apply(partial("a", "x", 1.0))
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestSeedThenPartials(t *testing.T) {
	r := NewReconciler(isSelf)
	req, ok := r.Enable()
	require.True(t, ok)
	_, again := r.Enable()
	assert.False(t, again)

	// arrives before the snapshot
	_, ok = r.Apply(partial("a", "navigation.speedOverGround", 2.0))
	assert.False(t, ok)

	delta, ok := r.Seed(req.Generation, map[string]signalk.VesselState{
		"a":    {"navigation.speedOverGround": pv(1.0), "name": pv("Alpha")},
		"b":    {"name": pv("Bravo")},
		selfID: {"name": pv("Me")},
	}, nil)
	require.True(t, ok)
	assert.Len(t, delta.Changed, 2)
	assert.Equal(t, 2.0, delta.Full["a"]["navigation.speedOverGround"].Value)
	assert.Equal(t, "Alpha", delta.Full["a"]["name"].Value)
	assert.NotContains(t, delta.Full, selfID)

	delta, ok = r.Apply(signalk.Partial{
		"b":    {"navigation.courseOverGroundTrue": pv(1.5)},
		selfID: {"name": pv("Me again")},
	})
	require.True(t, ok)
	assert.Equal(t, Registry{"b": {"navigation.courseOverGroundTrue": pv(1.5)}}, delta.Changed)
	assert.Equal(t, "Bravo", delta.Full["b"]["name"].Value)

	_, ok = r.Apply(signalk.Partial{selfID: {"name": pv("x")}})
	assert.False(t, ok)
}

func TestLastWriteWinsIgnoresTimestamps(t *testing.T) {
	r := NewReconciler(nil)
	req, _ := r.Enable()
	r.Seed(req.Generation, nil, nil)
	newer := time.Date(2019, 5, 1, 10, 0, 10, 0, time.UTC)
	older := newer.Add(-time.Minute)
	r.Apply(signalk.Partial{"a": {"x": {Value: 2.0, Timestamp: newer}}})
	r.Apply(signalk.Partial{"a": {"x": {Value: 1.0, Timestamp: older}}})
	state, ok := r.Vessel("a")
	require.True(t, ok)
	assert.Equal(t, 1.0, state["x"].Value)
}

func TestSelfLatchedLater(t *testing.T) {
	self := ""
	r := NewReconciler(func(id string) bool { return id == self })
	req, _ := r.Enable()
	r.Apply(partial("own", "x", 1.0))
	r.Apply(partial("other", "x", 1.0))
	delta, ok := r.Seed(req.Generation, nil, nil)
	require.True(t, ok)
	assert.Empty(t, delta.Removed)
	assert.Equal(t, 2, r.Len())

	self = "own"
	delta, ok = r.Apply(partial("other", "x", 2.0))
	require.True(t, ok)
	assert.Equal(t, []string{"own"}, delta.Removed)
	assert.NotContains(t, delta.Full, "own")
	_, ok = r.Vessel("own")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	// nothing left to drop and nothing changed
	_, ok = r.Apply(partial("own", "x", 3.0))
	assert.False(t, ok)
}

func TestSeedFailureStartsEmpty(t *testing.T) {
	r := NewReconciler(nil)
	req, _ := r.Enable()
	r.Apply(partial("a", "x", 1.0))
	delta, ok := r.Seed(req.Generation, map[string]signalk.VesselState{"b": {"x": pv(1.0)}}, errors.New("boom"))
	require.True(t, ok)
	assert.Equal(t, Registry{"a": {"x": pv(1.0)}}, delta.Changed)
}

func TestStaleSeedIgnored(t *testing.T) {
	r := NewReconciler(nil)
	first, _ := r.Enable()
	r.Disable()
	second, _ := r.Enable()
	assert.NotEqual(t, first.Generation, second.Generation)

	_, ok := r.Seed(first.Generation, map[string]signalk.VesselState{"old": {"x": pv(1.0)}}, nil)
	assert.False(t, ok)
	delta, ok := r.Seed(second.Generation, map[string]signalk.VesselState{"new": {"x": pv(1.0)}}, nil)
	require.True(t, ok)
	assert.Contains(t, delta.Full, "new")
	assert.NotContains(t, delta.Full, "old")

	_, ok = r.Seed(second.Generation, nil, nil)
	assert.False(t, ok, "a generation is seeded once")
}

func TestDisableDiscards(t *testing.T) {
	r := NewReconciler(nil)
	req, _ := r.Enable()
	r.Seed(req.Generation, map[string]signalk.VesselState{"a": {"x": pv(1.0)}}, nil)
	assert.Equal(t, 1, r.Len())

	r.Disable()
	assert.False(t, r.Enabled())
	assert.Zero(t, r.Len())
	_, ok := r.Apply(partial("a", "x", 2.0))
	assert.False(t, ok)

	req, _ = r.Enable()
	delta, _ := r.Seed(req.Generation, map[string]signalk.VesselState{}, nil)
	assert.Empty(t, delta.Full)
	_, ok = r.Vessel("a")
	assert.False(t, ok)
}

// The merged state after any interleaving of seed arrival and partials equals
// seed first, then partials in arrival order.
func TestSeedOrderingProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c"}
	paths := []string{"p1", "p2"}
	for run := 0; run < 200; run++ {
		var partials []signalk.Partial
		n := rnd.Intn(20)
		for i := 0; i < n; i++ {
			partials = append(partials, partial(ids[rnd.Intn(len(ids))], paths[rnd.Intn(len(paths))], float64(i)))
		}
		seed := map[string]signalk.VesselState{
			"a": {"p1": pv(-1.0)},
			"c": {"p2": pv(-2.0), "p3": pv(-3.0)},
		}

		want := Registry{}
		for id, s := range seed {
			want[id] = s.Clone()
		}
		for _, p := range partials {
			for id, u := range p {
				if want[id] == nil {
					want[id] = signalk.VesselState{}
				}
				want[id].Merge(u)
			}
		}

		r := NewReconciler(nil)
		req, _ := r.Enable()
		arrival := rnd.Intn(len(partials) + 1)
		for i, p := range partials {
			if i == arrival {
				r.Seed(req.Generation, seed, nil)
			}
			r.Apply(p)
		}
		if arrival == len(partials) {
			r.Seed(req.Generation, seed, nil)
		}
		for _, id := range ids {
			got, _ := r.Vessel(id)
			assert.Equal(t, want[id], got, fmt.Sprintf("run %d vessel %s", run, id))
		}
	}
}

func TestWatch(t *testing.T) {
	r := NewReconciler(nil)
	req, _ := r.Enable()
	w := r.Watch("a")
	select {
	case <-w.C():
		t.Fatal("no data yet")
	default:
	}
	r.Seed(req.Generation, map[string]signalk.VesselState{"a": {"x": pv(1.0)}}, nil)
	r.Apply(partial("a", "y", 2.0))
	r.Apply(partial("b", "y", 2.0))
	state := <-w.C()
	assert.Len(t, state, 2, "only the latest state is kept")

	w2 := r.Watch("a")
	assert.Len(t, <-w2.C(), 2)
	w2.Close()

	r.Disable()
	assert.Nil(t, <-w.C())
	w.Close()
	w.Close()
	assert.Empty(t, r.watches)
}

type stubSnapshot struct {
	vessels map[string]signalk.VesselState
	err     error
}

func (s stubSnapshot) Vessels(ctx context.Context) (map[string]signalk.VesselState, error) {
	return s.vessels, s.err
}

func TestFetch(t *testing.T) {
	ctxt := gogroup.New(context.Background(), "test")
	defer ctxt.Cancel(nil)
	out := make(chan SeedResult)
	Fetch(ctxt, stubSnapshot{vessels: map[string]signalk.VesselState{"a": {}}}, SeedRequest{Generation: 3}, out)
	res := <-out
	assert.Equal(t, 3, res.Generation)
	assert.NoError(t, res.Err)
	assert.Len(t, res.Vessels, 1)
}
