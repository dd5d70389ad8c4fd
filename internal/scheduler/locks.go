package scheduler

import (
	"sort"
	"sync"
)

// TaskLockManager serializes writers per task ID. Writers touching disjoint
// task sets proceed in parallel; writers sharing a task wait for each other.
type TaskLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-task mutexes
}

// NewTaskLockManager creates an empty lock manager.
func NewTaskLockManager() *TaskLockManager {
	return &TaskLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *TaskLockManager) get(taskID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[taskID] = l
	}
	return l
}

// Lock acquires the mutex of a single task.
func (m *TaskLockManager) Lock(taskID string) {
	m.get(taskID).Lock()
}

// Unlock releases the mutex of a single task.
func (m *TaskLockManager) Unlock(taskID string) {
	m.mu.Lock()
	l, ok := m.locks[taskID]
	m.mu.Unlock()

	if ok {
		l.Unlock()
	}
}

// LockAll acquires every task mutex in ascending ID order so that two
// cascades over overlapping task sets cannot deadlock. Duplicate IDs are
// locked once. It returns the sorted, de-duplicated IDs for UnlockAll.
func (m *TaskLockManager) LockAll(taskIDs []string) []string {
	sorted := uniqueSorted(taskIDs)
	for _, id := range sorted {
		m.Lock(id)
	}
	return sorted
}

// UnlockAll releases the mutexes returned by LockAll, in reverse order.
func (m *TaskLockManager) UnlockAll(sorted []string) {
	for i := len(sorted) - 1; i >= 0; i-- {
		m.Unlock(sorted[i])
	}
}

func uniqueSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
