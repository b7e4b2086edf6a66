// Package history records per-cycle sync outcomes in a local SQLite table
// so users can inspect what the engine did and when.
package history

import (
	"os"
	"time"
)

// Trigger identifies what started a sync cycle.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerWatch  Trigger = "watch"
)

// Entry is a single recorded sync cycle.
type Entry struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Trigger      Trigger
	Sent         int
	Halted       bool
	Errored      int
	MirrorPushes int
	Error        string
}

// Succeeded reports whether the cycle completed without halting or errors.
func (e *Entry) Succeeded() bool {
	return !e.Halted && e.Errored == 0 && e.Error == ""
}

// IsEnabledFromEnv checks the MINDMATE_HISTORY_ENABLED environment variable
// and returns the effective enabled state. Environment variable overrides the
// config value.
func IsEnabledFromEnv(configEnabled bool) bool {
	envVal := os.Getenv("MINDMATE_HISTORY_ENABLED")
	if envVal == "" {
		return configEnabled
	}
	return envVal == "true" || envVal == "1"
}
