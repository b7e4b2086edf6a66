package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorWithSuggestionWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrLocalStore(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should survive errors.Is")
	}

	var sugg *ErrorWithSuggestion
	if !errors.As(err, &sugg) {
		t.Fatal("expected an ErrorWithSuggestion")
	}
	if sugg.GetSuggestion() == "" {
		t.Error("expected a non-empty suggestion")
	}
	if !strings.Contains(err.Error(), "disk full") || !strings.Contains(err.Error(), "Suggestion:") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWrapWithSuggestion(t *testing.T) {
	err := WrapWithSuggestion(errors.New("boom"), "turn it off and on again")

	var sugg *ErrorWithSuggestion
	if !errors.As(err, &sugg) {
		t.Fatal("expected an ErrorWithSuggestion")
	}
	if sugg.GetSuggestion() != "turn it off and on again" {
		t.Errorf("suggestion = %q", sugg.GetSuggestion())
	}
}

func TestRemoteUnreachableSuggestions(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{"dial tcp: lookup api.example.com: no such host", "DNS"},
		{"dial tcp 127.0.0.1:8080: connection refused", "server is running"},
		{"context deadline exceeded (i/o timeout)", "slow or unreachable"},
		{"something else entirely", "internet connection"},
	}
	for _, c := range cases {
		err := ErrRemoteUnreachable(c.reason)
		var sugg *ErrorWithSuggestion
		if !errors.As(err, &sugg) {
			t.Fatalf("reason %q: expected an ErrorWithSuggestion", c.reason)
		}
		if !strings.Contains(sugg.GetSuggestion(), c.want) {
			t.Errorf("reason %q: suggestion = %q, want mention of %q", c.reason, sugg.GetSuggestion(), c.want)
		}
	}
}

func TestTaskNotFoundMentionsID(t *testing.T) {
	err := ErrTaskNotFound("abc-123")
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("message = %q", err.Error())
	}
}
