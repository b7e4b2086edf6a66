// Package notification delivers reminder and background-sync events to the
// user outside the terminal session that caused them.
package notification

import (
	"time"
)

// Type identifies the kind of event being announced.
type Type string

const (
	TypeReminder     Type = "reminder"
	TypeSyncComplete Type = "sync_complete"
	TypeSyncError    Type = "sync_error"
)

// Notification is one event to deliver.
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Timestamp time.Time
}

// Channel delivers notifications over one transport.
type Channel interface {
	Send(n Notification) error
	Close() error
}

// Config selects which channels are active and which events they carry.
type Config struct {
	Enabled        bool
	OnReminder     bool
	OnSyncComplete bool
	OnSyncError    bool
}

// CommandExecutor runs the platform notification command. Injected in tests.
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor records calls instead of running commands.
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option configures a channel or manager.
type Option func(interface{})

// WithCommandExecutor sets a custom command executor.
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osChannel); ok {
			ch.executor = executor
		}
	}
}

// WithPlatform overrides the detected platform.
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osChannel); ok {
			ch.platform = platform
		}
	}
}

// Manager fans a notification out to every active channel.
type Manager struct {
	cfg      Config
	channels []Channel
}

// NewManager builds the channel set from configuration.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg}
	if cfg.Enabled {
		m.channels = append(m.channels, newOSChannel(opts...))
	}
	return m
}

// wants reports whether the configuration asks for this event type.
func (m *Manager) wants(t Type) bool {
	if !m.cfg.Enabled {
		return false
	}
	switch t {
	case TypeReminder:
		return m.cfg.OnReminder
	case TypeSyncComplete:
		return m.cfg.OnSyncComplete
	case TypeSyncError:
		return m.cfg.OnSyncError
	}
	return false
}

// Send delivers the notification on every channel. The first channel error
// is returned; remaining channels are still attempted.
func (m *Manager) Send(n Notification) error {
	if !m.wants(n.Type) {
		return nil
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	var firstErr error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases every channel.
func (m *Manager) Close() error {
	var firstErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ChannelCount reports how many channels are active.
func (m *Manager) ChannelCount() int {
	return len(m.channels)
}
