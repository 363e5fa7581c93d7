package profile

import (
	"sync"
	"time"

	"studentportal/internal/student"
)

// Registry keeps one Workspace per session.
type Registry struct {
	mu           sync.Mutex
	items        map[string]*Workspace
	nameSlots    int
	errorTimeout time.Duration
}

// NewRegistry creates an empty registry whose workspaces use nameSlots name
// inputs and clear errors after errorTimeout.
func NewRegistry(nameSlots int, errorTimeout time.Duration) *Registry {
	return &Registry{
		items:        make(map[string]*Workspace),
		nameSlots:    nameSlots,
		errorTimeout: errorTimeout,
	}
}

// Open returns the workspace for sessionID, creating it from rec when absent.
// An existing workspace is refreshed with rec.
func (r *Registry) Open(sessionID string, rec student.Record) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.items[sessionID]; ok && !ws.Closed() {
		ws.Refresh(rec)
		return ws
	}
	ws := NewWorkspace(rec, r.nameSlots, r.errorTimeout)
	r.items[sessionID] = ws
	return ws
}

// Get returns the live workspace for sessionID.
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.items[sessionID]
	if !ok || ws.Closed() {
		return nil, false
	}
	return ws, true
}

// Drop closes and forgets the workspace of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	ws, ok := r.items[sessionID]
	delete(r.items, sessionID)
	r.mu.Unlock()
	if ok {
		ws.Close()
	}
}

// Sweep drops workspaces idle for longer than maxIdle and returns how many
// were closed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*Workspace
	for id, ws := range r.items {
		if ws.idleSince().Before(cutoff) {
			stale = append(stale, ws)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()
	for _, ws := range stale {
		ws.Close()
	}
	return len(stale)
}

// Len is the number of tracked workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Close drops every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range items {
		ws.Close()
	}
}
