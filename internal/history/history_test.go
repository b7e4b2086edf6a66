package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T, enabled bool) *Recorder {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	r, err := NewRecorder(dbPath, enabled)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecorder_RecordAndRecent(t *testing.T) {
	r := newTestRecorder(t, true)

	now := time.Now()
	entries := []Entry{
		{StartedAt: now.Add(-2 * time.Minute), FinishedAt: now.Add(-2 * time.Minute), Trigger: TriggerManual, Sent: 3},
		{StartedAt: now.Add(-1 * time.Minute), FinishedAt: now.Add(-1 * time.Minute), Trigger: TriggerWatch, Sent: 1, Halted: true, Error: "remote unreachable"},
		{StartedAt: now, FinishedAt: now, Trigger: TriggerManual, Sent: 0, MirrorPushes: 2},
	}
	for _, e := range entries {
		if err := r.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := r.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	// Most recent first
	if got[0].MirrorPushes != 2 {
		t.Errorf("expected newest entry first, got %+v", got[0])
	}
	if got[1].Trigger != TriggerWatch || !got[1].Halted || got[1].Error != "remote unreachable" {
		t.Errorf("halted entry not preserved: %+v", got[1])
	}
	if got[2].Sent != 3 {
		t.Errorf("expected oldest entry sent = 3, got %d", got[2].Sent)
	}
}

func TestRecorder_DisabledIsNoOp(t *testing.T) {
	r := newTestRecorder(t, false)

	now := time.Now()
	if err := r.Record(Entry{StartedAt: now, FinishedAt: now, Trigger: TriggerManual, Sent: 5}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := r.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries when disabled, got %d", len(got))
	}
}

func TestRecorder_RecentLimit(t *testing.T) {
	r := newTestRecorder(t, true)

	now := time.Now()
	for i := 0; i < 5; i++ {
		e := Entry{StartedAt: now.Add(time.Duration(i) * time.Second), FinishedAt: now, Trigger: TriggerWatch, Sent: i}
		if err := r.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := r.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Sent != 4 {
		t.Errorf("expected newest entry sent = 4, got %d", got[0].Sent)
	}
}

func TestRecorder_Cleanup(t *testing.T) {
	r := newTestRecorder(t, true)

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now()
	if err := r.Record(Entry{StartedAt: old, FinishedAt: old, Trigger: TriggerManual}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Record(Entry{StartedAt: recent, FinishedAt: recent, Trigger: TriggerManual}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	deleted, err := r.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted entry, got %d", deleted)
	}

	got, err := r.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(got))
	}
}

func TestEntry_Succeeded(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"clean", Entry{Sent: 3}, true},
		{"halted", Entry{Halted: true}, false},
		{"errored", Entry{Errored: 1}, false},
		{"cycle error", Entry{Error: "boom"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsEnabledFromEnv(t *testing.T) {
	tests := []struct {
		env    string
		config bool
		want   bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
	}
	for _, tt := range tests {
		t.Setenv("MINDMATE_HISTORY_ENABLED", tt.env)
		if got := IsEnabledFromEnv(tt.config); got != tt.want {
			t.Errorf("IsEnabledFromEnv(%v) with env %q = %v, want %v", tt.config, tt.env, got, tt.want)
		}
	}
}
