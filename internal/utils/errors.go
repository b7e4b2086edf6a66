package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrLocalStore wraps a local store failure. Local failures are fatal to the
// operation and never retried: the local write is the one step that must hold.
func ErrLocalStore(err error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("local store write failed: %w", err),
		Suggestion: "Check available disk space and database file permissions",
	}
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(taskID string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %s", taskID),
		Suggestion: "Check the task id or use 'mindmate list' to see all tasks",
	}
}

// ErrReconnectRequired returns the error surfaced when the external service's
// refresh token was rejected. Not retried automatically.
func ErrReconnectRequired() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("external service authorization expired"),
		Suggestion: "Run 'mindmate connect' to re-authorize the external task service",
	}
}

// ErrNotConnected returns an error when no external credential exists.
func ErrNotConnected() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("external task service is not connected"),
		Suggestion: "Run 'mindmate connect' to authorize the external task service",
	}
}

// ErrRemoteUnreachable returns an error when the primary backend is offline,
// with a context-aware suggestion.
func ErrRemoteUnreachable(reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("remote store is unreachable: %s", reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// ErrInvalidPriority returns an error for an invalid priority value.
func ErrInvalidPriority(priority int) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %d", priority),
		Suggestion: "Priority must be between 0 and 9",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-01-15)",
	}
}
