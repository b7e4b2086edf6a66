package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOracle reports fixed connectivity answers.
type fakeOracle struct {
	online    bool
	reachable bool
}

func (f *fakeOracle) IsOnline(ctx context.Context) bool          { return f.online }
func (f *fakeOracle) IsServerReachable(ctx context.Context) bool { return f.reachable }

func TestRunExecutesFirstCycleImmediately(t *testing.T) {
	var cycles atomic.Int32
	r := New(time.Hour, &fakeOracle{online: true, reachable: true}, func(ctx context.Context) error {
		cycles.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for cycles.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	st := r.Status()
	if st.SyncCount != 1 {
		t.Errorf("expected 1 completed cycle, got %d", st.SyncCount)
	}
}

func TestOfflineSkipsCycles(t *testing.T) {
	var cycles atomic.Int32
	r := New(time.Hour, &fakeOracle{online: false}, func(ctx context.Context) error {
		cycles.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	if cycles.Load() != 0 {
		t.Errorf("expected no cycles while offline, got %d", cycles.Load())
	}
	if r.Status().SyncCount != 0 {
		t.Errorf("skipped cycles must not count as syncs")
	}
}

func TestFailureTracksAndBacksOff(t *testing.T) {
	r := New(time.Second, &fakeOracle{online: true, reachable: true}, func(ctx context.Context) error {
		return errors.New("remote exploded")
	})

	ctx := context.Background()
	r.tick(ctx)
	r.tick(ctx)

	st := r.Status()
	if st.ErrorCount != 2 {
		t.Fatalf("expected 2 consecutive errors, got %d", st.ErrorCount)
	}
	if st.LastError != "remote exploded" {
		t.Errorf("unexpected last error: %s", st.LastError)
	}
	if got := r.wait(); got != 4*time.Second {
		t.Errorf("expected doubled backoff 4s, got %s", got)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	r := New(time.Second, &fakeOracle{online: true, reachable: true}, func(ctx context.Context) error {
		return errors.New("still broken")
	})

	for i := 0; i < 10; i++ {
		r.tick(context.Background())
	}
	if got := r.wait(); got != 8*time.Second {
		t.Errorf("backoff should cap at 8x interval, got %s", got)
	}
}

func TestSuccessResetsBackoff(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	r := New(time.Second, &fakeOracle{online: true, reachable: true}, func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("transient")
		}
		return nil
	})

	r.tick(context.Background())
	fail.Store(false)
	r.tick(context.Background())

	st := r.Status()
	if st.ErrorCount != 0 {
		t.Errorf("success should reset the error count, got %d", st.ErrorCount)
	}
	if st.LastError != "" {
		t.Errorf("success should clear the last error, got %s", st.LastError)
	}
	if got := r.wait(); got != time.Second {
		t.Errorf("backoff should reset to the base interval, got %s", got)
	}
	if st.LastSync.IsZero() {
		t.Error("last sync time should be recorded")
	}
}
