// Package markdown renders tasks as a markdown checklist and parses the
// quick-add metadata syntax in task titles.
package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"mindmate/task"
)

// Organize separates root tasks from sub-tasks.
// Returns root tasks (those without ParentID) and a map of parentID -> children.
func Organize(tasks []task.Task) ([]task.Task, map[string][]task.Task) {
	childrenMap := make(map[string][]task.Task)
	var roots []task.Task

	for _, t := range tasks {
		if t.ParentID == "" {
			roots = append(roots, t)
		} else {
			childrenMap[t.ParentID] = append(childrenMap[t.ParentID], t)
		}
	}

	return roots, childrenMap
}

// Render formats tasks as a markdown document, grouped by category with
// sub-tasks indented under their parent.
func Render(tasks []task.Task) string {
	roots, childrenMap := Organize(tasks)

	byCategory := make(map[string][]task.Task)
	for _, t := range roots {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var sb strings.Builder
	for i, c := range categories {
		if i > 0 {
			sb.WriteString("\n")
		}
		heading := c
		if heading == "" {
			heading = "Tasks"
		}
		sb.WriteString("## ")
		sb.WriteString(heading)
		sb.WriteString("\n\n")
		for j := range byCategory[c] {
			writeTaskTree(&sb, &byCategory[c][j], childrenMap, 0)
		}
	}

	return sb.String()
}

// writeTaskTree writes a task and its sub-tasks with indentation.
func writeTaskTree(sb *strings.Builder, t *task.Task, childrenMap map[string][]task.Task, level int) {
	sb.WriteString(strings.Repeat("  ", level))
	sb.WriteString("- [")
	sb.WriteString(StatusChar(t))
	sb.WriteString("] ")
	sb.WriteString(FormatTask(t))
	sb.WriteString("\n")

	if children, ok := childrenMap[t.ID]; ok {
		for i := range children {
			writeTaskTree(sb, &children[i], childrenMap, level+1)
		}
	}
}

// StatusChar returns the markdown checkbox character for a task.
// "x" for completed, "-" for archived, " " otherwise.
func StatusChar(t *task.Task) string {
	switch {
	case t.Completed():
		return "x"
	case t.Archived:
		return "-"
	default:
		return " "
	}
}

// FormatTask formats a task as markdown quick-add text.
func FormatTask(t *task.Task) string {
	parts := []string{t.Title}

	if t.Priority > 0 {
		parts = append(parts, fmt.Sprintf("!%d", t.Priority))
	}

	if t.DueDate != nil {
		parts = append(parts, "@"+t.DueDate.Format("2006-01-02"))
	}

	if t.Category != "" {
		parts = append(parts, "#"+strings.TrimSpace(t.Category))
	}

	return strings.Join(parts, " ")
}

var (
	priorityPattern = regexp.MustCompile(`!(\d)`)
	dueDatePattern  = regexp.MustCompile(`@(\d{4}-\d{2}-\d{2})`)
	tagPattern      = regexp.MustCompile(`#([\w-]+)`)
)

// ParseQuickAdd extracts priority, due date, and category from quick-add text.
// Format: "Buy milk !2 @2026-01-15 #errands"
func ParseQuickAdd(text string) (title string, priority int, dueDate *time.Time, category string) {
	title = text

	if matches := priorityPattern.FindStringSubmatch(text); len(matches) == 2 {
		_, _ = fmt.Sscanf(matches[1], "%d", &priority)
		title = strings.TrimSpace(priorityPattern.ReplaceAllString(title, ""))
	}

	if matches := dueDatePattern.FindStringSubmatch(text); len(matches) == 2 {
		if t, err := time.Parse("2006-01-02", matches[1]); err == nil {
			dueDate = &t
		}
		title = strings.TrimSpace(dueDatePattern.ReplaceAllString(title, ""))
	}

	if matches := tagPattern.FindStringSubmatch(text); len(matches) == 2 {
		category = matches[1]
		title = strings.TrimSpace(tagPattern.ReplaceAllString(title, ""))
	}

	title = strings.Join(strings.Fields(title), " ")
	return title, priority, dueDate, category
}
