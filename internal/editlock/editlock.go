// Package editlock decides whether a student's name and photo may still be changed.
package editlock

import (
	"errors"
	"sync"

	"studentportal/internal/student"
)

// State of the edit lock.
type State int

const (
	Editable State = iota
	Locked
)

func (s State) String() string {
	if s == Locked {
		return "locked"
	}
	return "editable"
}

// ErrLocked is returned by Guard while the profile is locked.
var ErrLocked = errors.New("profile is locked")

// Violation is a mutation attempted while locked.
type Violation struct {
	Action  string
	Message string
}

func (v *Violation) Error() string { return v.Action + ": " + ErrLocked.Error() }

func (v *Violation) Unwrap() error { return ErrLocked }

var lockedMessages = map[string]string{
	"photo":  "The photo cannot be changed without administrator permission.",
	"name":   "The English name cannot be changed without administrator permission.",
	"submit": "Editing your data is not allowed without administrator permission.",
}

// Derive computes the initial state for rec. The backend's can_edit_again flag
// wins; without it a record that already has an English name or a photo is locked.
func Derive(rec student.Record) State {
	if rec.CanEditAgain != nil {
		if *rec.CanEditAgain {
			return Editable
		}
		return Locked
	}
	if len(rec.EnglishName) > 0 || rec.HasPhoto() {
		return Locked
	}
	return Editable
}

// Machine tracks the lock state of one profile.
type Machine struct {
	mu    sync.Mutex
	state State
}

// New starts a machine in the state derived from rec.
func New(rec student.Record) *Machine {
	return &Machine{state: Derive(rec)}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Locked reports whether mutations are rejected.
func (m *Machine) Locked() bool { return m.State() == Locked }

// Lock moves to Locked after an acknowledged submission. It reports whether
// the state changed.
func (m *Machine) Lock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Locked {
		return false
	}
	m.state = Locked
	return true
}

// Refresh applies a freshly fetched record. Only an explicit can_edit_again
// flag may unlock; without it a locked profile stays locked.
func (m *Machine) Refresh(rec student.Record) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CanEditAgain != nil || m.state == Editable {
		m.state = Derive(rec)
	}
	return m.state
}

// Guard returns a *Violation for action while locked, nil otherwise.
func (m *Machine) Guard(action string) error {
	if !m.Locked() {
		return nil
	}
	msg, ok := lockedMessages[action]
	if !ok {
		msg = lockedMessages["submit"]
	}
	return &Violation{Action: action, Message: msg}
}
