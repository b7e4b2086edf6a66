// Package tui provides a read-only terminal view of tasks and their sync
// status.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mindmate/task"
)

// TaskLister is the subset of the orchestrator the view needs.
type TaskLister interface {
	Tasks(ctx context.Context, userID string) ([]task.Task, error)
}

// refreshInterval is how often the view re-reads task state, so sync status
// transitions show up without user input.
const refreshInterval = 2 * time.Second

// Model represents the TUI state
type Model struct {
	lister TaskLister
	userID string
	ctx    context.Context

	table table.Model
	err   error

	baseStyle   lipgloss.Style
	statusStyle lipgloss.Style
}

type tasksLoadedMsg struct {
	tasks []task.Task
}

type tickMsg time.Time

type errMsg struct {
	err error
}

// New creates a new TUI model
func New(lister TaskLister, userID string) *Model {
	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "Title", Width: 32},
		{Title: "Category", Width: 14},
		{Title: "Due", Width: 16},
		{Title: "Sync", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("212")).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		lister: lister,
		userID: userID,
		ctx:    context.Background(),
		table:  t,
		baseStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadTasks, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) loadTasks() tea.Msg {
	tasks, err := m.lister.Tasks(m.ctx, m.userID)
	if err != nil {
		return errMsg{err}
	}
	return tasksLoadedMsg{tasks}
}

// statusGlyph marks completion state.
func statusGlyph(t *task.Task) string {
	if t.Completed() {
		return "✓"
	}
	return " "
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.loadTasks
		}

	case tickMsg:
		return m, tea.Batch(m.loadTasks, tick())

	case tasksLoadedMsg:
		rows := make([]table.Row, len(msg.tasks))
		for i := range msg.tasks {
			t := &msg.tasks[i]
			due := ""
			if t.DueDate != nil {
				due = t.DueDate.Format("2006-01-02 15:04")
			}
			title := t.Title
			if t.ParentID != "" {
				title = "  └ " + title
			}
			rows[i] = table.Row{statusGlyph(t), title, t.Category, due, string(t.SyncStatus)}
		}
		m.table.SetRows(rows)
		m.err = nil
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *Model) View() string {
	view := m.baseStyle.Render(m.table.View()) + "\n"
	if m.err != nil {
		view += m.statusStyle.Render("error: "+m.err.Error()) + "\n"
	}
	view += m.statusStyle.Render("r: refresh • q: quit") + "\n"
	return view
}

// Run starts the TUI program.
func Run(lister TaskLister, userID string) error {
	p := tea.NewProgram(New(lister, userID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
