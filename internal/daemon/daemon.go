// Package daemon runs periodic background sync cycles, so queued changes
// drain and the external mirror converges without the user invoking sync by
// hand.
package daemon

import (
	"context"
	"sync"
	"time"

	"mindmate/internal/connectivity"
	"mindmate/internal/utils"
)

// DefaultInterval is the pause between sync cycles.
const DefaultInterval = 5 * time.Minute

// maxBackoffFactor caps how far consecutive failures stretch the interval.
const maxBackoffFactor = 8

// CycleFunc performs one sync cycle: drain the queue, refresh the mirror.
type CycleFunc func(ctx context.Context) error

// Status is a snapshot of the runner's progress.
type Status struct {
	SyncCount  int       // completed cycles
	ErrorCount int       // consecutive failed cycles
	LastSync   time.Time // when the last successful cycle finished
	LastError  string
}

// Runner executes sync cycles on an interval. Cycles are skipped while the
// connectivity oracle reports the remote as unreachable, and consecutive
// failures stretch the interval so a dead server is not hammered.
type Runner struct {
	interval time.Duration
	oracle   connectivity.Oracle
	cycle    CycleFunc
	log      *utils.Logger

	mu     sync.Mutex
	status Status
}

// New creates a runner. A non-positive interval uses DefaultInterval.
func New(interval time.Duration, oracle connectivity.Oracle, cycle CycleFunc) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		interval: interval,
		oracle:   oracle,
		cycle:    cycle,
		log:      utils.GetLogger(),
	}
}

// Status returns a snapshot of the runner's progress.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Run loops until the context is cancelled. The first cycle runs immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.tick(ctx)

	timer := time.NewTimer(r.wait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			r.tick(ctx)
			timer.Reset(r.wait())
		}
	}
}

// wait returns the current pause, stretched by consecutive failures.
func (r *Runner) wait() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	factor := 1 << r.status.ErrorCount
	if factor > maxBackoffFactor {
		factor = maxBackoffFactor
	}
	return r.interval * time.Duration(factor)
}

func (r *Runner) tick(ctx context.Context) {
	if !connectivity.FullyOnline(ctx, r.oracle) {
		r.log.Debug("sync cycle skipped: remote not reachable")
		return
	}

	err := r.cycle(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status.ErrorCount++
		r.status.LastError = err.Error()
		r.log.Warn("sync cycle failed: %v", err)
		return
	}
	r.status.SyncCount++
	r.status.ErrorCount = 0
	r.status.LastError = ""
	r.status.LastSync = time.Now()
	r.log.Debug("sync cycle completed")
}
