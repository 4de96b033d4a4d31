package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultScope is the scope of a process with a single recorder, such as the CLI.
const DefaultScope = ""

// RunTracker remembers which pipeline run is current within each scope. A scope is
// one recorder: starting a run supersedes every earlier run in the same scope, and a
// superseded run can no longer publish. Runs in different scopes never interfere.
type RunTracker struct {
	mu     sync.Mutex
	scopes map[string]*scopeRuns
}

type scopeRuns struct {
	current uuid.UUID
	latest  *Report
}

func NewRunTracker() *RunTracker { return &RunTracker{scopes: make(map[string]*scopeRuns)} }

// get must be called with mu held.
func (t *RunTracker) get(scope string) *scopeRuns {
	s, ok := t.scopes[scope]
	if !ok {
		s = &scopeRuns{}
		t.scopes[scope] = s
	}
	return s
}

func (t *RunTracker) Begin(scope string) uuid.UUID {
	id := uuid.New()
	t.mu.Lock()
	s := t.get(scope)
	s.current = id
	s.latest = nil
	t.mu.Unlock()
	return id
}

func (t *RunTracker) IsCurrent(scope string, id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.scopes[scope]
	return ok && s.current == id
}

// Publish stores r as the scope's latest report if its run is still current.
func (t *RunTracker) Publish(scope string, r *Report) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.scopes[scope]
	if !ok || r.RunID != s.current {
		return false
	}
	s.latest = r
	return true
}

func (t *RunTracker) Latest(scope string) *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.scopes[scope]; ok {
		return s.latest
	}
	return nil
}
