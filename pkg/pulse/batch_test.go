package pulse

import (
	"fmt"
	"testing"
)

func TestBatchCoalesces(t *testing.T) {
	first := NewSignal("John")
	last := NewSignal("Smith")

	var names []string
	NewEffect(func() Cleanup {
		names = append(names, fmt.Sprintf("%s %s", first.Get(), last.Get()))
		return nil
	})

	Batch(func() {
		first.Set("Jane")
		last.Set("Doe")
	})

	// One run, seeing both final values; never the torn "Jane Smith"
	if len(names) != 2 {
		t.Fatalf("expected 2 runs total, got %v", names)
	}
	if names[1] != "Jane Doe" {
		t.Errorf("expected final run to see Jane Doe, got %q", names[1])
	}
}

func TestBatchRepeatedWrites(t *testing.T) {
	count := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	Batch(func() {
		count.Set(1)
		count.Set(2)
		count.Set(3)
	})

	if runs != 2 {
		t.Errorf("expected repeated writes to coalesce into 1 run, got %d total", runs)
	}
	if count.Get() != 3 {
		t.Errorf("expected 3, got %d", count.Get())
	}
}

func TestBatchNested(t *testing.T) {
	count := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	Batch(func() {
		count.Set(1)
		Batch(func() {
			count.Set(2)
		})
		// The inner batch end must not flush
		if runs != 1 {
			t.Errorf("inner batch must not flush, got %d runs", runs)
		}
		count.Set(3)
	})

	if runs != 2 {
		t.Errorf("expected flush only at outermost batch end, got %d runs", runs)
	}
}

func TestBatchMemoSeesFinalValues(t *testing.T) {
	width := NewSignal(2)
	height := NewSignal(3)
	area := NewMemo(func() int { return width.Get() * height.Get() })

	var areas []int
	NewEffect(func() Cleanup {
		areas = append(areas, area.Get())
		return nil
	})

	Batch(func() {
		width.Set(10)
		height.Set(10)
	})

	if len(areas) != 2 || areas[1] != 100 {
		t.Errorf("expected [6 100], got %v", areas)
	}
}

func TestBatchWriteInsideEffect(t *testing.T) {
	input := NewSignal(1)
	derived := NewSignal(0)

	NewEffect(func() Cleanup {
		derived.Set(input.Get() * 10)
		return nil
	})

	var seen []int
	NewEffect(func() Cleanup {
		seen = append(seen, derived.Get())
		return nil
	})

	Batch(func() {
		input.Set(2)
	})

	if derived.Get() != 20 {
		t.Errorf("expected derived 20, got %d", derived.Get())
	}
	if seen[len(seen)-1] != 20 {
		t.Errorf("expected downstream effect to see 20, got %v", seen)
	}
}

func TestTx(t *testing.T) {
	count := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	Tx(func() {
		count.Set(1)
		count.Set(2)
	})
	if runs != 2 {
		t.Errorf("expected Tx to batch, got %d runs", runs)
	}

	TxNamed("bulk-update", func() {
		count.Set(3)
	})
	if runs != 3 {
		t.Errorf("expected TxNamed to batch, got %d runs", runs)
	}
}

func TestBatchPanicStillFlushes(t *testing.T) {
	count := NewSignal(0)

	runs := 0
	NewEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	func() {
		defer func() { recover() }()
		Batch(func() {
			count.Set(1)
			panic("write failed")
		})
	}()

	// The batch depth is unwound and the queued effect still runs, so a
	// panicking transaction cannot wedge the goroutine's queue
	if runs != 2 {
		t.Errorf("expected queued effect to run after panic, got %d runs", runs)
	}

	count.Set(2)
	if runs != 3 {
		t.Errorf("expected normal operation after panic, got %d runs", runs)
	}
}
