package notification

import (
	"errors"
	"strings"
	"testing"
)

func enabledConfig() Config {
	return Config{Enabled: true, OnReminder: true, OnSyncComplete: true, OnSyncError: true}
}

func TestDisabledManagerSendsNothing(t *testing.T) {
	called := false
	m := NewManager(Config{Enabled: false}, WithCommandExecutor(&MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			called = true
			return nil
		},
	}))

	if err := m.Send(Notification{Type: TypeReminder, Title: "T", Message: "M"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("disabled manager must not execute commands")
	}
	if m.ChannelCount() != 0 {
		t.Errorf("expected 0 channels, got %d", m.ChannelCount())
	}
}

func TestTypeFiltering(t *testing.T) {
	var sent []string
	exec := &MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			sent = append(sent, strings.Join(args, " "))
			return nil
		},
	}
	cfg := enabledConfig()
	cfg.OnSyncComplete = false
	m := NewManager(cfg, WithCommandExecutor(exec), WithPlatform("linux"))

	_ = m.Send(Notification{Type: TypeSyncComplete, Title: "done", Message: "all synced"})
	_ = m.Send(Notification{Type: TypeSyncError, Title: "failed", Message: "server down"})

	if len(sent) != 1 {
		t.Fatalf("expected 1 delivered notification, got %d", len(sent))
	}
	if !strings.Contains(sent[0], "server down") {
		t.Errorf("unexpected notification: %s", sent[0])
	}
}

func TestLinuxUsesNotifySend(t *testing.T) {
	var gotCmd string
	var gotArgs []string
	m := NewManager(enabledConfig(), WithCommandExecutor(&MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			gotCmd = cmd
			gotArgs = args
			return nil
		},
	}), WithPlatform("linux"))

	if err := m.Send(Notification{Type: TypeReminder, Title: "Task Reminder", Message: "Buy milk"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCmd != "notify-send" {
		t.Errorf("expected notify-send, got %s", gotCmd)
	}
	if len(gotArgs) != 2 || gotArgs[1] != "Buy milk" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}

func TestDarwinEscapesQuotes(t *testing.T) {
	var script string
	m := NewManager(enabledConfig(), WithCommandExecutor(&MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			script = args[len(args)-1]
			return nil
		},
	}), WithPlatform("darwin"))

	_ = m.Send(Notification{Type: TypeReminder, Title: `say "hi"`, Message: "m"})

	if strings.Contains(script, `say "hi"`) {
		t.Errorf("quotes must be escaped, got: %s", script)
	}
	if !strings.Contains(script, `say \"hi\"`) {
		t.Errorf("expected escaped quotes, got: %s", script)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	m := NewManager(enabledConfig(), WithPlatform("plan9"))
	err := m.Send(Notification{Type: TypeReminder, Title: "T", Message: "M"})
	if err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestExecutorErrorPropagates(t *testing.T) {
	m := NewManager(enabledConfig(), WithCommandExecutor(&MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			return errors.New("no display")
		},
	}), WithPlatform("linux"))

	if err := m.Send(Notification{Type: TypeReminder, Title: "T", Message: "M"}); err == nil {
		t.Fatal("expected executor error to propagate")
	}
}
