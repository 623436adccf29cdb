package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// runStoreContract checks the compare-and-swap semantics every Store shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("get absent", func(t *testing.T) {
		s := newStore(t)
		v, err := s.Get(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if v.Valid {
			t.Fatalf("expected absent value, got %+v", v)
		}
	})

	t.Run("expect any always writes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSwap(t, s, "u1", ExpectAny(), Present("a"))
		mustSwap(t, s, "u1", ExpectAny(), Present("b"))
		mustGet(t, s, "u1", Present("b"))
		mustSwap(t, s, "u1", ExpectAny(), Absent)
		mustGet(t, s, "u1", Absent)
		if ok, err := s.SetIfMatches(ctx, "u1", ExpectAny(), Absent); err != nil || !ok {
			t.Fatalf("clearing an absent value with ExpectAny: ok=%v err=%v", ok, err)
		}
	})

	t.Run("expect absent", func(t *testing.T) {
		s := newStore(t)
		mustSwap(t, s, "u1", Expect(Absent), Present("a"))
		mustConflict(t, s, "u1", Expect(Absent), Present("b"))
		mustGet(t, s, "u1", Present("a"))
	})

	t.Run("expect value swaps once", func(t *testing.T) {
		s := newStore(t)
		mustSwap(t, s, "u1", ExpectAny(), Present("r1"))
		mustSwap(t, s, "u1", Expect(Present("r1")), Present("r2"))
		mustConflict(t, s, "u1", Expect(Present("r1")), Present("r3"))
		mustGet(t, s, "u1", Present("r2"))
	})

	t.Run("expect value against absent conflicts", func(t *testing.T) {
		s := newStore(t)
		mustConflict(t, s, "u1", Expect(Present("r1")), Present("r2"))
		mustGet(t, s, "u1", Absent)
	})

	t.Run("conditional clear", func(t *testing.T) {
		s := newStore(t)
		mustSwap(t, s, "u1", ExpectAny(), Present("r1"))
		mustConflict(t, s, "u1", Expect(Present("other")), Absent)
		mustSwap(t, s, "u1", Expect(Present("r1")), Absent)
		mustGet(t, s, "u1", Absent)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		s := newStore(t)
		mustSwap(t, s, "u1", ExpectAny(), Present("a"))
		mustSwap(t, s, "u2", ExpectAny(), Present("b"))
		mustSwap(t, s, "u1", ExpectAny(), Absent)
		mustGet(t, s, "u2", Present("b"))
	})

	t.Run("empty subject rejected", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), ""); err == nil {
			t.Fatal("expected empty subject to be rejected")
		}
	})

	t.Run("concurrent swap single winner", func(t *testing.T) {
		s := newStore(t)
		mustSwap(t, s, "u1", ExpectAny(), Present("r1"))

		const workers = 32
		var (
			wins  atomic.Int32
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make(chan error, workers)
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				ok, err := s.SetIfMatches(context.Background(), "u1", Expect(Present("r1")), Present("next"))
				if err != nil {
					errs <- err
					return
				}
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		close(start)
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent swap error: %v", err)
		}
		if got := wins.Load(); got != 1 {
			t.Fatalf("expected exactly one winner, got %d", got)
		}
	})
}

func mustSwap(t *testing.T, s Store, subject string, expected Expectation, next Value) {
	t.Helper()
	ok, err := s.SetIfMatches(context.Background(), subject, expected, next)
	if err != nil {
		t.Fatalf("set %s: %v", subject, err)
	}
	if !ok {
		t.Fatalf("expected swap for %s", subject)
	}
}

func mustConflict(t *testing.T, s Store, subject string, expected Expectation, next Value) {
	t.Helper()
	ok, err := s.SetIfMatches(context.Background(), subject, expected, next)
	if err != nil {
		t.Fatalf("set %s: %v", subject, err)
	}
	if ok {
		t.Fatalf("expected conflict for %s", subject)
	}
}

func mustGet(t *testing.T, s Store, subject string, want Value) {
	t.Helper()
	got, err := s.Get(context.Background(), subject)
	if err != nil {
		t.Fatalf("get %s: %v", subject, err)
	}
	if !got.Equal(want) {
		t.Fatalf("get %s: got %+v want %+v", subject, got, want)
	}
}
