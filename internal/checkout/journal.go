package checkout

import (
	"context"
	"sync"
)

// Journal persists the transition history of checkout sessions
type Journal interface {
	// Record appends a transition
	Record(ctx context.Context, t Transition) error
	// History returns the transitions of a session, oldest first
	History(ctx context.Context, sessionID string) ([]Transition, error)
}

// Publisher announces transitions to other services
type Publisher interface {
	Publish(ctx context.Context, t Transition) error
}

// MemoryJournal is an in-memory Journal for single-instance runs and tests
type MemoryJournal struct {
	mu          sync.RWMutex
	transitions map[string][]Transition
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{transitions: make(map[string][]Transition)}
}

// Record appends a transition
func (j *MemoryJournal) Record(ctx context.Context, t Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.transitions[t.SessionID] = append(j.transitions[t.SessionID], copyTransition(t))
	return nil
}

// History returns a copy of the session's transitions
func (j *MemoryJournal) History(ctx context.Context, sessionID string) ([]Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stored := j.transitions[sessionID]
	result := make([]Transition, len(stored))
	for i, t := range stored {
		result[i] = copyTransition(t)
	}
	return result, nil
}

// Forget drops a session's history
func (j *MemoryJournal) Forget(sessionID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.transitions, sessionID)
}

// Count returns the number of sessions with history
func (j *MemoryJournal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.transitions)
}

func copyTransition(t Transition) Transition {
	if t.ReservationID != nil {
		id := *t.ReservationID
		t.ReservationID = &id
	}
	if t.PurchaseGroupID != nil {
		pg := *t.PurchaseGroupID
		t.PurchaseGroupID = &pg
	}
	return t
}
