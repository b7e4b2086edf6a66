// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filtered task selection and yes/no confirmation.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mindmate/task"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// TaskSelector provides filtered task selection with metadata display.
// Used when a task reference matches more than one task.
type TaskSelector struct {
	Tasks    []task.Task
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the task selection prompt.
// If NoPrompt is true, returns ErrNoPromptMode.
// If there is exactly one task, auto-selects it.
func (s *TaskSelector) Run() (*task.Task, error) {
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}

	if len(s.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	if len(s.Tasks) == 1 {
		return &s.Tasks[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}

	scanner := bufio.NewScanner(s.Reader)

	_, _ = fmt.Fprintf(writer, "%s\n", s.Prompt)
	for i, t := range s.Tasks {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, formatTaskLine(t))
	}

	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}

	if num == 0 {
		return nil, ErrSelectionCancelled
	}

	if num < 1 || num > len(s.Tasks) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}

	return &s.Tasks[num-1], nil
}

// formatTaskLine formats a task for display with its sync status, priority,
// due date, category, and id.
func formatTaskLine(t task.Task) string {
	parts := []string{t.Title}

	var meta []string
	meta = append(meta, string(t.SyncStatus))

	if t.Priority > 0 {
		meta = append(meta, fmt.Sprintf("P%d", t.Priority))
	}

	if t.DueDate != nil {
		meta = append(meta, fmt.Sprintf("due: %s", t.DueDate.Format("2006-01-02")))
	}

	if t.Category != "" {
		meta = append(meta, fmt.Sprintf("category: %s", t.Category))
	}

	meta = append(meta, fmt.Sprintf("id: %s", t.ID))

	parts = append(parts, fmt.Sprintf("[%s]", strings.Join(meta, ", ")))

	return strings.Join(parts, " ")
}

// Confirm asks a yes/no question. In no-prompt mode it answers yes without
// asking, so scripted invocations proceed.
func Confirm(reader io.Reader, writer io.Writer, question string, noPrompt bool) (bool, error) {
	if noPrompt {
		return true, nil
	}

	if writer == nil {
		writer = io.Discard
	}

	_, _ = fmt.Fprintf(writer, "%s [y/N]: ", question)

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		return false, scanner.Err()
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
