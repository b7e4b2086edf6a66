package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"
	"testing"

	"mindmate/gtasks"
	"mindmate/store/sqlite"
	"mindmate/task"
)

// newTestStore opens a throwaway SQLite store, so engine tests exercise the
// real persistence path.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var errRemoteDown = errors.New("remote store unavailable")

// mockRemote implements RemoteService with per-call failure injection.
type mockRemote struct {
	mu gosync.Mutex

	failCreates bool
	failUpdates bool
	failDeletes bool

	creates []string
	updates []string
	deletes []string
}

func (m *mockRemote) CreateTask(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates {
		return errRemoteDown
	}
	m.creates = append(m.creates, t.ID)
	return nil
}

func (m *mockRemote) UpdateTask(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates {
		return errRemoteDown
	}
	m.updates = append(m.updates, t.ID)
	return nil
}

func (m *mockRemote) DeleteTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeletes {
		return errRemoteDown
	}
	m.deletes = append(m.deletes, taskID)
	return nil
}

// stubOracle answers reachability without probing.
type stubOracle struct {
	online bool
}

func (o *stubOracle) IsOnline(ctx context.Context) bool          { return o.online }
func (o *stubOracle) IsServerReachable(ctx context.Context) bool { return o.online }

// mockListService implements ListService over an in-memory roster.
type mockListService struct {
	mu gosync.Mutex

	lists       []gtasks.List
	getCalls    int
	createCalls int
	failCreates bool
	nextID      int
}

func (m *mockListService) GetLists(ctx context.Context, userID string) ([]gtasks.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	out := make([]gtasks.List, len(m.lists))
	copy(out, m.lists)
	return out, nil
}

func (m *mockListService) CreateList(ctx context.Context, userID, title string) (*gtasks.List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failCreates {
		return nil, errors.New("list creation rejected")
	}
	m.nextID++
	l := gtasks.List{ID: fmt.Sprintf("list-%d", m.nextID), Title: title}
	m.lists = append(m.lists, l)
	return &l, nil
}

func (m *mockListService) removeList(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.lists[:0]
	for _, l := range m.lists {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	m.lists = kept
}

// mockTaskService implements TaskService over in-memory records keyed by
// list, mimicking the external service's 404 behavior.
type mockTaskService struct {
	mu gosync.Mutex

	tasks  map[string]map[string]*gtasks.Task // listID -> taskID -> task
	nextID int

	moves   []string // "listID/taskID->parentID"
	deletes []string
}

func newMockTaskService() *mockTaskService {
	return &mockTaskService{tasks: map[string]map[string]*gtasks.Task{}}
}

func (m *mockTaskService) CreateTask(ctx context.Context, userID, listID string, t *gtasks.Task) (*gtasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := *t
	created.ID = fmt.Sprintf("ext-%d", m.nextID)
	if m.tasks[listID] == nil {
		m.tasks[listID] = map[string]*gtasks.Task{}
	}
	m.tasks[listID][created.ID] = &created
	return &created, nil
}

func (m *mockTaskService) UpdateTask(ctx context.Context, userID, listID string, t *gtasks.Task) (*gtasks.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tasks[listID][t.ID]
	if !ok {
		return nil, gtasks.ErrNotFound
	}
	*existing = *t
	return existing, nil
}

func (m *mockTaskService) DeleteTask(ctx context.Context, userID, listID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[listID][taskID]; !ok {
		return gtasks.ErrNotFound
	}
	delete(m.tasks[listID], taskID)
	m.deletes = append(m.deletes, listID+"/"+taskID)
	return nil
}

func (m *mockTaskService) MoveTask(ctx context.Context, userID, listID, taskID, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[listID][taskID]; !ok {
		return gtasks.ErrNotFound
	}
	m.moves = append(m.moves, listID+"/"+taskID+"->"+parentID)
	return nil
}

func (m *mockTaskService) get(listID, taskID string) *gtasks.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[listID][taskID]
}

func (m *mockTaskService) dropRecord(listID, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks[listID], taskID)
}
