package settings

import (
	"bytes"
	"sync"

	"github.com/jinzhu/copier"

	"marine/plotter/charts"
	"marine/plotter/log"
	"marine/plotter/navigation"
)

// Store owns the live settings. Mutators apply under a lock, notify
// subscribers with a copy and persist the stored subset when it changed.
type Store struct {
	mu   sync.Mutex
	s    Settings
	gen  uint64
	subs map[*Subscription]struct{}

	persister Persister
	saveMu    sync.Mutex
	savedGen  uint64
	lastBlob  []byte
}

func NewStore(initial Settings, persister Persister) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	st := &Store{
		s:         initial,
		subs:      make(map[*Subscription]struct{}),
		persister: persister,
	}
	st.lastBlob, _ = st.s.persistedBlob()
	return st
}

// Subscription delivers the latest settings after every change.
type Subscription struct {
	st *Store
	c  chan Settings
}

func (sub *Subscription) C() <-chan Settings {
	return sub.c
}

func (sub *Subscription) Close() {
	sub.st.mu.Lock()
	delete(sub.st.subs, sub)
	sub.st.mu.Unlock()
}

func (st *Store) Subscribe() *Subscription {
	sub := &Subscription{st: st, c: make(chan Settings, 1)}
	st.mu.Lock()
	st.subs[sub] = struct{}{}
	st.mu.Unlock()
	return sub
}

// Get returns a deep copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.clone()
}

func (s Settings) clone() Settings {
	var out Settings
	if err := copier.CopyWithOption(&out, &s, copier.Option{DeepCopy: true}); err != nil {
		log.Error("copying settings: %v", err)
		return s
	}
	return out
}

func (st *Store) update(f func(s *Settings)) {
	st.mu.Lock()
	f(&st.s)
	st.gen++
	gen := st.gen
	snapshot := st.s.clone()
	for sub := range st.subs {
		select {
		case <-sub.c:
		default:
		}
		sub.c <- snapshot.clone()
	}
	st.mu.Unlock()

	st.persist(gen, snapshot)
}

func (st *Store) persist(gen uint64, s Settings) {
	blob, err := s.persistedBlob()
	if err != nil {
		log.Error("encoding settings: %v", err)
		return
	}
	st.saveMu.Lock()
	defer st.saveMu.Unlock()
	if gen <= st.savedGen {
		return
	}
	st.savedGen = gen
	if bytes.Equal(blob, st.lastBlob) {
		return
	}
	if err := st.persister.Save(blob); err != nil {
		log.Warn("saving settings: %v", err)
		return
	}
	st.lastBlob = blob
}

func (s Settings) persistedBlob() ([]byte, error) {
	var p Persisted
	if err := copier.Copy(&p, &s); err != nil {
		return nil, err
	}
	p.HiddenChartProviders = s.Hidden()
	return json.Marshal(p)
}

// Clear drops the persisted settings. The live settings are unchanged.
func (st *Store) Clear() error {
	st.saveMu.Lock()
	defer st.saveMu.Unlock()
	st.lastBlob = nil
	return st.persister.Clear()
}

func (st *Store) SetZoom(zoom int) {
	st.update(func(s *Settings) { s.Zoom = clampZoom(zoom) })
}

func (st *Store) SetFullscreen(on bool) {
	st.update(func(s *Settings) { s.Fullscreen = on })
}

func (st *Store) ToggleFullscreen() {
	st.update(func(s *Settings) { s.Fullscreen = !s.Fullscreen })
}

func (st *Store) SetDrawMode(on bool) {
	st.update(func(s *Settings) { s.DrawMode = on })
}

func (st *Store) ToggleDrawMode() {
	st.update(func(s *Settings) { s.DrawMode = !s.DrawMode })
}

// ToggleCourse switches the vessel rotation source between COG and HDG.
func (st *Store) ToggleCourse() {
	st.update(func(s *Settings) {
		if s.Course == CourseCOG {
			s.Course = CourseHDG
		} else {
			s.Course = CourseCOG
		}
	})
}

func (st *Store) SetFollow(on bool) {
	st.update(func(s *Settings) { s.Follow = on })
}

func (st *Store) ToggleFollow() {
	st.update(func(s *Settings) { s.Follow = !s.Follow })
}

func (st *Store) ToggleMenu() {
	st.update(func(s *Settings) { s.ShowMenu = !s.ShowMenu })
}

func (st *Store) ToggleInstruments() {
	st.update(func(s *Settings) { s.ShowInstruments = !s.ShowInstruments })
}

func (st *Store) SetInstruments(keys []string) {
	st.update(func(s *Settings) { s.Instruments = append([]string{}, keys...) })
}

// CycleExtensionLine steps Off, 2, 5, 10 min and back to Off.
func (st *Store) CycleExtensionLine() {
	st.update(func(s *Settings) { s.ExtensionLine = navigation.NextExtensionLine(s.ExtensionLine) })
}

func (st *Store) SetAISEnabled(on bool) {
	st.update(func(s *Settings) { s.AIS.Enabled = on })
}

func (st *Store) ToggleAIS() {
	st.update(func(s *Settings) { s.AIS.Enabled = !s.AIS.Enabled })
}

func (st *Store) SetWorldBaseChart(on bool) {
	st.update(func(s *Settings) { s.WorldBaseChart = on })
}

// SetChartProviders installs the resolved chart providers and ends loading.
func (st *Store) SetChartProviders(providers []charts.Provider) {
	st.update(func(s *Settings) {
		s.ChartProviders = append([]charts.Provider{}, providers...)
		s.LoadingChartProviders = false
		s.HiddenChartProviders = s.Hidden()
	})
}

// SetChartEnabled reports false when no provider has id.
func (st *Store) SetChartEnabled(id string, enabled bool) bool {
	found := false
	st.update(func(s *Settings) {
		for i := range s.ChartProviders {
			if s.ChartProviders[i].ID == id {
				s.ChartProviders[i].Enabled = enabled
				found = true
			}
		}
		if !s.LoadingChartProviders {
			s.HiddenChartProviders = s.Hidden()
		}
	})
	return found
}

func (st *Store) SetWaypointMode(on bool) {
	st.update(func(s *Settings) { s.Waypoint = on })
}
