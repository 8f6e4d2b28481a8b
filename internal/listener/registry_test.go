package listener

import (
	"sync"
	"testing"
	"time"
)

type kind int

const (
	kindA kind = iota
	kindB
	kindC
)

type recorder struct {
	mu     sync.Mutex
	events []kind
}

func (r *recorder) record(k kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, k)
}

func (r *recorder) seen() []kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kind(nil), r.events...)
}

func fire(reg *Registry[*recorder, kind], k kind) {
	reg.Fire(k, func(l *recorder) { l.record(k) })
}

func TestAddAndFilter(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()

	filtered := &recorder{}
	unfiltered := &recorder{}

	if !reg.Add(filtered, kindA) {
		t.Error("Add() of new listener should report a change")
	}
	if !reg.Add(unfiltered) {
		t.Error("Add() of new unfiltered listener should report a change")
	}

	// Mixed stream of kinds
	fire(reg, kindA)
	fire(reg, kindB)
	fire(reg, kindA)

	if got := filtered.seen(); len(got) != 2 || got[0] != kindA || got[1] != kindA {
		t.Errorf("filtered listener saw %v, want only kindA events", got)
	}
	if got := unfiltered.seen(); len(got) != 3 {
		t.Errorf("unfiltered listener saw %d events, want 3", len(got))
	}
}

func TestReAddMergesKinds(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	l := &recorder{}

	reg.Add(l, kindA)
	if !reg.Add(l, kindB) {
		t.Error("Add() with a new kind should report a change")
	}
	if reg.Add(l, kindA, kindB) {
		t.Error("Add() with already-present kinds should report no change")
	}

	fire(reg, kindA)
	fire(reg, kindB)
	fire(reg, kindC)

	if got := l.seen(); len(got) != 2 {
		t.Errorf("listener saw %v, want kindA and kindB only", got)
	}

	if reg.Size() != 1 {
		t.Errorf("Size() = %d, re-adding must not duplicate the listener", reg.Size())
	}
}

func TestReAddWithZeroKindsClearsFilter(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	l := &recorder{}

	reg.Add(l, kindA)
	if !reg.Add(l) {
		t.Error("clearing an existing filter should report a change")
	}

	fire(reg, kindC)

	if got := l.seen(); len(got) != 1 {
		t.Errorf("listener saw %v, cleared filter should admit every kind", got)
	}
}

func TestAddAllCountsChanges(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	a, b := &recorder{}, &recorder{}

	reg.Add(a, kindA)

	count := reg.AddAll([]*recorder{a, b}, kindA)
	if count != 1 {
		t.Errorf("AddAll() = %d, want 1 (only b changed)", count)
	}
}

func TestRemove(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	a, b := &recorder{}, &recorder{}

	reg.Add(a, kindA)
	reg.Add(b)

	if !reg.Remove(a) {
		t.Error("Remove() of registered listener should report true")
	}
	if reg.Remove(a) {
		t.Error("Remove() of absent listener should report false")
	}
	if reg.Contains(a) {
		t.Error("Contains() should be false after Remove()")
	}

	fire(reg, kindA)
	if len(a.seen()) != 0 {
		t.Error("removed listener still received events")
	}
	if len(b.seen()) != 1 {
		t.Error("remaining listener should still receive events")
	}

	if !reg.RemoveAll([]*recorder{a, b}) {
		t.Error("RemoveAll() should report true when any listener was present")
	}
	if !reg.IsEmpty() {
		t.Error("registry should be empty after RemoveAll()")
	}
}

func TestFilterDroppedWithListener(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	l := &recorder{}

	reg.Add(l, kindA)
	reg.Remove(l)

	// Registration identity starts fresh after a remove: the old filter
	// must not resurrect
	reg.Add(l)
	fire(reg, kindB)

	if len(l.seen()) != 1 {
		t.Error("stale filter survived a remove/re-add cycle")
	}
}

func TestFireOrderIsRegistrationOrder(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()

	var order []int
	listeners := []*recorder{{}, {}, {}}
	for _, l := range listeners {
		reg.Add(l)
	}

	reg.Fire(kindA, func(l *recorder) {
		for i, candidate := range listeners {
			if candidate == l {
				order = append(order, i)
			}
		}
	})

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("dispatch order = %v, want registration order [0 1 2]", order)
	}
}

func TestSnapshotIterationUnderMutation(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	first := &recorder{}
	late := &recorder{}
	reg.Add(first)

	delivered := 0
	reg.Fire(kindA, func(l *recorder) {
		// Mutations during an in-flight broadcast must neither error nor
		// join this snapshot
		reg.Add(late)
		reg.Remove(first)
		delivered++
	})

	if delivered != 1 {
		t.Errorf("delivered = %d, snapshot should contain exactly the pre-fire listener", delivered)
	}
	if !reg.Contains(late) {
		t.Error("listener added during fire should be registered for later broadcasts")
	}
}

func TestConcurrentMutationAndFire(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Hammer registration from many goroutines while firing continuously;
	// the race detector is the real assertion here
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := &recorder{}
			for {
				select {
				case <-stop:
					return
				default:
					reg.Add(l, kindA)
					reg.Remove(l)
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		fire(reg, kindA)
	}
	close(stop)
	wg.Wait()
}

func TestFireAsyncSurvivesPanickingListener(t *testing.T) {
	reg := NewRegistry[*recorder, kind]()
	healthy := &recorder{}
	bad := &recorder{}

	reg.Add(bad)
	reg.Add(healthy)

	done := make(chan struct{})
	reg.FireAsync(kindA, func(l *recorder) {
		if l == bad {
			panic("listener blew up")
		}
		l.record(kindA)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking listener aborted delivery to the rest of the snapshot")
	}

	if len(healthy.seen()) != 1 {
		t.Error("healthy listener did not receive the event")
	}
}
