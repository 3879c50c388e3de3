package pulse

import (
	"errors"
	"testing"
)

type testTheme struct {
	Name string
}

func TestProvideUseContext(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		ProvideContext(testTheme{Name: "dark"})

		theme, ok := UseContext[testTheme]()
		if !ok {
			t.Fatal("expected a provided theme")
		}
		if theme.Name != "dark" {
			t.Errorf("expected dark, got %s", theme.Name)
		}
	})
}

func TestUseContextWalksAncestors(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		ProvideContext("outer")

		Root(func(dispose func()) {
			defer dispose()

			// No provider here; the ancestor's value is found
			v, ok := UseContext[string]()
			if !ok || v != "outer" {
				t.Errorf("expected outer from ancestor, got %q ok=%v", v, ok)
			}
		})
	})
}

func TestContextShadowing(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		ProvideContext("outer")

		Root(func(dispose func()) {
			defer dispose()

			ProvideContext("inner")
			v, _ := UseContext[string]()
			if v != "inner" {
				t.Errorf("expected inner to shadow, got %q", v)
			}
		})

		// Shadowing never leaks upward
		v, _ := UseContext[string]()
		if v != "outer" {
			t.Errorf("expected outer after child scope, got %q", v)
		}
	})
}

func TestUseContextMissing(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		v, ok := UseContext[testTheme]()
		if ok {
			t.Errorf("expected no provider, got %+v", v)
		}
	})

	// No owner at all behaves the same
	if _, ok := UseContext[testTheme](); ok {
		t.Error("expected no provider without an owner")
	}
}

func TestTakeContext(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		ProvideContext(42)

		v, ok := TakeContext[int]()
		if !ok || v != 42 {
			t.Fatalf("expected to take 42, got %d ok=%v", v, ok)
		}

		// The entry is gone after Take
		if _, ok := UseContext[int](); ok {
			t.Error("expected value consumed by TakeContext")
		}
	})
}

func TestExpectContextPanics(t *testing.T) {
	Root(func(dispose func()) {
		defer dispose()

		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic for missing context")
			}
			err, ok := r.(error)
			if !ok || !errors.Is(err, ErrMissingContext) {
				t.Errorf("expected ErrMissingContext, got %v", r)
			}
		}()
		_ = ExpectContext[testTheme]()
	})
}

func TestProvideContextWithoutOwnerPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic without an owner")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrNoOwner) {
			t.Errorf("expected ErrNoOwner, got %v", r)
		}
	}()
	ProvideContext(1)
}

func TestContextObject(t *testing.T) {
	theme := CreateContext("light")

	// Default outside any provider
	if theme.Use() != "light" {
		t.Errorf("expected default light, got %s", theme.Use())
	}
	if theme.Default() != "light" {
		t.Errorf("expected Default light, got %s", theme.Default())
	}

	theme.Provide("dark", func() {
		if theme.Use() != "dark" {
			t.Errorf("expected dark inside provider, got %s", theme.Use())
		}
	})

	// The provider scope is gone
	if theme.Use() != "light" {
		t.Errorf("expected default after provider scope, got %s", theme.Use())
	}
}

func TestContextObjectsIndependent(t *testing.T) {
	primary := CreateContext("blue")
	accent := CreateContext("red")

	primary.Provide("navy", func() {
		// Two contexts of the same underlying type do not collide
		if primary.Use() != "navy" {
			t.Errorf("expected navy, got %s", primary.Use())
		}
		if accent.Use() != "red" {
			t.Errorf("expected accent default red, got %s", accent.Use())
		}
	})
}

func TestContextProvideHere(t *testing.T) {
	limit := CreateContext(10)

	Root(func(dispose func()) {
		defer dispose()

		limit.ProvideHere(99)
		if limit.Use() != 99 {
			t.Errorf("expected 99, got %d", limit.Use())
		}

		Root(func(dispose func()) {
			defer dispose()
			if limit.Use() != 99 {
				t.Errorf("expected 99 in child scope, got %d", limit.Use())
			}
		})
	})
}
