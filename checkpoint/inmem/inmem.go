// Package inmem implements task.CheckpointStore in process memory, for
// tests and single-process deployments (§6.9, C10).
package inmem

import (
	"sort"
	"sync"

	"github.com/flowcraft/execore/task"
)

// Store is a mutex-guarded map of workflowID to its checkpoint history.
type Store struct {
	mu    sync.Mutex
	byRun map[string][]task.Checkpoint
}

var _ task.CheckpointStore = (*Store)(nil)

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{byRun: make(map[string][]task.Checkpoint)}
}

// Save appends cp to workflowID's history. "Latest wins" is resolved by
// List returning entries ordered by Timestamp; callers that only want
// the latest should take the last element.
func (s *Store) Save(workflowID string, cp task.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRun[workflowID] = append(s.byRun[workflowID], cp)
	return nil
}

// List returns every checkpoint saved for workflowID, oldest first.
func (s *Store) List(workflowID string) ([]task.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := append([]task.Checkpoint(nil), s.byRun[workflowID]...)
	sort.Slice(cps, func(i, j int) bool { return cps[i].Timestamp.Before(cps[j].Timestamp) })
	return cps, nil
}
