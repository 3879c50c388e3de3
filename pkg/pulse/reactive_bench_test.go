package pulse

import "testing"

func BenchmarkSignalGet(b *testing.B) {
	sig := NewSignal(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sig.Get()
	}
}

func BenchmarkSignalSet(b *testing.B) {
	sig := NewSignal(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sig.Set(i)
	}
}

func BenchmarkSignalTrackedGet(b *testing.B) {
	sig := NewSignal(1)
	NewEffect(func() Cleanup {
		_ = sig.Get()
		return nil
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sig.Get()
	}
}

func BenchmarkMemoGetClean(b *testing.B) {
	sig := NewSignal(1)
	memo := NewMemo(func() int { return sig.Get() * 2 })
	_ = memo.Get()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = memo.Get()
	}
}

func BenchmarkMemoInvalidateAndGet(b *testing.B) {
	sig := NewSignal(0)
	memo := NewMemo(func() int { return sig.Get() * 2 })
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sig.Set(i)
		_ = memo.Get()
	}
}

func BenchmarkDiamondPropagation(b *testing.B) {
	root := NewSignal(0)
	left := NewMemo(func() int { return root.Get() + 1 })
	right := NewMemo(func() int { return root.Get() * 2 })
	join := NewMemo(func() int { return left.Get() + right.Get() })
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		root.Set(i)
		_ = join.Get()
	}
}

func BenchmarkEffectRerun(b *testing.B) {
	sig := NewSignal(0)
	NewEffect(func() Cleanup {
		_ = sig.Get()
		return nil
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sig.Set(i)
	}
}

func BenchmarkBatchedWrites(b *testing.B) {
	first := NewSignal(0)
	second := NewSignal(0)
	NewEffect(func() Cleanup {
		_ = first.Get()
		_ = second.Get()
		return nil
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Batch(func() {
			first.Set(i)
			second.Set(i)
		})
	}
}
