// Package shutdown provides graceful shutdown handling for long-running
// commands. It manages signal handling, cleanup function registration, and
// coordinated shutdown so in-flight sync work can finish before exit.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mindmate/internal/utils"
)

// CleanupFunc performs cleanup on shutdown. It receives a context that is
// cancelled when the shutdown grace period runs out.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager coordinates a single shutdown across signal handlers and cleanups.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	log    *utils.Logger
}

// NewManager creates a shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		log:    utils.GetLogger(),
	}
}

// RegisterCleanup registers a cleanup function. Cleanups run in LIFO order,
// so dependents register after their dependencies.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// ListenForSignals triggers shutdown on SIGINT or SIGTERM. A second signal
// while cleanup is running exits immediately.
func (m *Manager) ListenForSignals() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		m.log.Info("shutting down")
		m.Trigger()
		<-ch
		os.Exit(1)
	}()
}

// Trigger initiates shutdown. Safe to call more than once; only the first
// call has effect.
func (m *Manager) Trigger() {
	m.once.Do(m.cancel)
}

// Context is cancelled when shutdown is triggered. Long-running loops watch
// it to know when to stop.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Triggered reports whether shutdown has been initiated.
func (m *Manager) Triggered() bool {
	select {
	case <-m.ctx.Done():
		return true
	default:
		return false
	}
}

// Wait runs all cleanups in LIFO order, bounded by the given context.
// Cleanup errors are logged and do not stop later cleanups.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i].fn(ctx); err != nil {
				m.log.Warn("cleanup %q failed: %v", cleanups[i].name, err)
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
