// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"errors"
	"log/slog"
	"testing"
)

func TestBus_FireInvokesInRegistrationOrder(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	var order []int

	b.On(PreInstall, "one", func(args ...any) error { order = append(order, 1); return nil })
	b.On(PreInstall, "two", func(args ...any) error { order = append(order, 2); return nil })
	b.On(PreInstall, "three", func(args ...any) error { order = append(order, 3); return nil })

	b.Fire(PreInstall)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBus_FireContinuesPastHandlerError(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	ran := false

	b.On(PostLoad, "fails", func(args ...any) error { return errors.New("boom") })
	b.On(PostLoad, "succeeds", func(args ...any) error { ran = true; return nil })

	b.Fire(PostLoad)

	if !ran {
		t.Fatal("second handler should still run after first fails")
	}
}

func TestBus_Off(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	called := false
	token := b.On(Ready, "only", func(args ...any) error { called = true; return nil })
	b.Off(Ready, token)

	b.Fire(Ready)

	if called {
		t.Fatal("removed handler should not fire")
	}
}

func TestBus_OnDedupesByKey(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	var calls []int

	b.On(PostInstall, "shared", func(args ...any) error { calls = append(calls, 1); return nil })
	b.On(PostInstall, "shared", func(args ...any) error { calls = append(calls, 2); return nil })

	b.Fire(PostInstall)

	if len(calls) != 1 || calls[0] != 2 {
		t.Fatalf("calls = %v, want a single call to the second registration", calls)
	}
}

func TestBus_OnDedupesInPlace(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	var order []string

	b.On(PreLoad, "first", func(args ...any) error { order = append(order, "first"); return nil })
	b.On(PreLoad, "second", func(args ...any) error { order = append(order, "second"); return nil })
	b.On(PreLoad, "first", func(args ...any) error { order = append(order, "first-again"); return nil })

	b.Fire(PreLoad)

	want := []string{"first-again", "second"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v (re-registering \"first\" keeps its original slot)", order, want)
	}
}

func TestBus_FireWithNoHandlersIsNoop(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	b.Fire(PackageDisabled, "some-pkg")
}

func TestBus_FirePassesArgs(t *testing.T) {
	t.Parallel()

	b := New(slog.Default())
	var got []any
	b.On(PreLoad, "capture", func(args ...any) error {
		got = args
		return nil
	})

	b.Fire(PreLoad, "pkg-name", 42)

	if len(got) != 2 || got[0] != "pkg-name" || got[1] != 42 {
		t.Fatalf("got = %v", got)
	}
}
