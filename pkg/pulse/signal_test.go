package pulse

import (
	"errors"
	"sync"
	"testing"
)

func TestSignalBasic(t *testing.T) {
	count := NewSignal(0)

	// Initial value
	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	// Set value
	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}

	// Update mutates in place
	count.Update(func(n *int) { *n *= 2 })
	if count.Get() != 10 {
		t.Errorf("expected value 10, got %d", count.Get())
	}
}

func TestSignalEffectSubscription(t *testing.T) {
	count := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	// Effect runs once at creation
	if runs != 1 {
		t.Fatalf("expected 1 initial run, got %d", runs)
	}

	// Writing re-runs the effect synchronously
	count.Set(1)
	if runs != 2 {
		t.Errorf("expected 2 runs after write, got %d", runs)
	}

	// A signal write always propagates, even for an equal value; the
	// equality gate lives on memos
	count.Set(1)
	if runs != 3 {
		t.Errorf("expected 3 runs after same-value write, got %d", runs)
	}
}

func TestSignalGetUntracked(t *testing.T) {
	count := NewSignal(42)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.GetUntracked()
		runs++
		return nil
	})

	// Untracked read must not subscribe
	count.Set(100)
	if runs != 1 {
		t.Errorf("GetUntracked should not subscribe, got %d runs", runs)
	}
}

func TestSignalWith(t *testing.T) {
	user := NewSignal("alice")

	var seen string
	user.With(func(v string) { seen = v })
	if seen != "alice" {
		t.Errorf("expected With to see %q, got %q", "alice", seen)
	}

	// With tracks like Get
	runs := 0
	NewEffect(func() Cleanup {
		user.With(func(string) {})
		runs++
		return nil
	})
	user.Set("bob")
	if runs != 2 {
		t.Errorf("expected With to subscribe, got %d runs", runs)
	}

	// WithUntracked does not
	user.WithUntracked(func(v string) { seen = v })
	if seen != "bob" {
		t.Errorf("expected WithUntracked to see %q, got %q", "bob", seen)
	}
}

func TestSignalUntrackedInsideEffect(t *testing.T) {
	tracked := NewSignal(0)
	untracked := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = tracked.Get()
		Untracked(func() {
			_ = untracked.Get()
		})
		runs++
		return nil
	})

	untracked.Set(1)
	if runs != 1 {
		t.Errorf("read inside Untracked must not subscribe, got %d runs", runs)
	}
	tracked.Set(1)
	if runs != 2 {
		t.Errorf("tracked read should still subscribe, got %d runs", runs)
	}
}

func TestSignalMultipleSubscribers(t *testing.T) {
	count := NewSignal(0)

	var runs [3]int
	for i := 0; i < 3; i++ {
		i := i
		NewEffect(func() Cleanup {
			_ = count.Get()
			runs[i]++
			return nil
		})
	}

	count.Set(1)
	for i, n := range runs {
		if n != 2 {
			t.Errorf("subscriber %d expected 2 runs, got %d", i, n)
		}
	}
}

func TestSignalSplit(t *testing.T) {
	get, set := NewSignal(1).Split()

	if get() != 1 {
		t.Errorf("expected getter to return 1, got %d", get())
	}
	set(7)
	if get() != 7 {
		t.Errorf("expected getter to return 7 after set, got %d", get())
	}
}

func TestSignalDisposedAccessPanics(t *testing.T) {
	var sig *Signal[int]
	Root(func(dispose func()) {
		sig = NewSignal(1)
		dispose()
	})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic reading a disposed signal")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDisposedAccess) {
			t.Errorf("expected ErrDisposedAccess, got %v", r)
		}
	}()
	_ = sig.Get()
}

func TestSignalConcurrentAccess(t *testing.T) {
	count := NewSignal(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				count.Update(func(n *int) { *n++ })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = count.Get()
			}
		}()
	}
	wg.Wait()

	if count.Get() != 800 {
		t.Errorf("expected 800 after concurrent updates, got %d", count.Get())
	}
}

func TestSignalIDsUnique(t *testing.T) {
	a := NewSignal(0)
	b := NewSignal(0)
	if a.ID() == b.ID() {
		t.Errorf("expected distinct IDs, both got %d", a.ID())
	}
}
