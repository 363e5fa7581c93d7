package profile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"studentportal/internal/editlock"
	"studentportal/internal/names"
	"studentportal/internal/photo"
	"studentportal/internal/student"
	"studentportal/internal/transient"
)

// PendingSubmission is the uncommitted edit of one session. It never leaves
// the workspace.
type PendingSubmission struct {
	Photo     *photo.Accepted
	NameParts []string
}

// View is what the rendering layer needs to draw the profile page.
type View struct {
	Record     student.Record    `json:"-"`
	Locked     bool              `json:"locked"`
	Submitting bool              `json:"submitting"`
	Preview    string            `json:"preview"`
	PhotoName  string            `json:"photo_name,omitempty"`
	NameParts  []string          `json:"name_parts"`
	Errors     map[string]string `json:"errors"`
	Notice     string            `json:"notice,omitempty"`
}

const lockedNotice = "Your data has been saved and can no longer be edited."

// Workspace holds one session's record, edit lock, pending edit and transient
// errors.
type Workspace struct {
	mu         sync.Mutex
	record     student.Record
	lock       *editlock.Machine
	pending    PendingSubmission
	errs       *transient.Store
	slots      []names.Slot
	submitting bool
	closed     bool
	lastSeen   time.Time
}

// NewWorkspace opens a workspace for rec with nameSlots name inputs (1..3).
func NewWorkspace(rec student.Record, nameSlots int, errorTimeout time.Duration) *Workspace {
	if nameSlots < 1 || nameSlots > len(names.Slots) {
		nameSlots = len(names.Slots)
	}
	ws := &Workspace{
		record:   rec,
		lock:     editlock.New(rec),
		errs:     transient.New(errorTimeout),
		slots:    names.Slots[:nameSlots],
		lastSeen: time.Now(),
	}
	ws.pending = ws.freshPending()
	return ws
}

func (w *Workspace) freshPending() PendingSubmission {
	parts := make([]string, len(w.slots))
	for i := range parts {
		parts[i] = w.record.NamePart(i)
	}
	return PendingSubmission{NameParts: parts}
}

// Record returns the last committed record.
func (w *Workspace) Record() student.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record
}

// State returns the edit-lock state.
func (w *Workspace) State() editlock.State { return w.lock.State() }

// Pending returns a copy of the pending submission.
func (w *Workspace) Pending() PendingSubmission {
	w.mu.Lock()
	defer w.mu.Unlock()
	return PendingSubmission{
		Photo:     w.pending.Photo,
		NameParts: append([]string(nil), w.pending.NameParts...),
	}
}

// Errors returns the transient error store.
func (w *Workspace) Errors() *transient.Store { return w.errs }

// guard rejects action while locked and surfaces the message in field.
func (w *Workspace) guard(action, field string) error {
	if err := w.lock.Guard(action); err != nil {
		var v *editlock.Violation
		if errors.As(err, &v) {
			w.errs.Set(field, v.Message)
		}
		return err
	}
	return nil
}

// SelectPhoto validates f and makes it the pending photo. A nil file clears
// the selection. A rejected file also drops any earlier selection.
func (w *Workspace) SelectPhoto(f *photo.File) error {
	if f == nil {
		return w.ClearPhoto()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.guard("photo", FieldPhoto); err != nil {
		return err
	}
	acc, err := photo.Check(f)
	if err != nil {
		w.pending.Photo = nil
		msg := photo.Message(err)
		w.errs.Set(FieldPhoto, msg)
		return &ValidationError{Failures: []Failure{{Field: FieldPhoto, Kind: err, Message: msg}}}
	}
	w.pending.Photo = acc
	w.errs.Clear(FieldPhoto)
	return nil
}

// ClearPhoto drops the pending photo; the preview falls back to the committed one.
func (w *Workspace) ClearPhoto() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.guard("photo", FieldPhoto); err != nil {
		return err
	}
	w.pending.Photo = nil
	w.errs.Clear(FieldPhoto)
	return nil
}

// SetNamePart replaces the raw text of one name input.
func (w *Workspace) SetNamePart(slot names.Slot, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.guard("name", string(slot)); err != nil {
		return err
	}
	for i, s := range w.slots {
		if s == slot {
			w.pending.NameParts[i] = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNameSlot, slot)
}

// SetNameParts replaces all name inputs at once. Missing trailing parts are
// left empty.
func (w *Workspace) SetNameParts(parts []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.guard("name", FieldForm); err != nil {
		return err
	}
	if len(parts) == 0 || len(parts) > len(w.slots) {
		return fmt.Errorf("%w: expected 1 to %d parts, got %d", ErrNameSlot, len(w.slots), len(parts))
	}
	next := make([]string, len(w.slots))
	copy(next, parts)
	w.pending.NameParts = next
	return nil
}

// Refresh applies a record fetched on page load.
func (w *Workspace) Refresh(rec student.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.lastSeen = time.Now()
	w.record = rec
	if w.lock.Refresh(rec) == editlock.Locked {
		w.pending = w.freshPending()
	}
}

// View renders the current state.
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	v := View{
		Record:     w.record,
		Locked:     w.lock.Locked(),
		Submitting: w.submitting,
		Preview:    photo.PreviewFor(w.pending.Photo, w.record.PhotoURL),
		NameParts:  append([]string(nil), w.pending.NameParts...),
		Errors:     w.errs.Snapshot(),
	}
	if w.record.HasPhoto() {
		v.PhotoName = w.record.PhotoFilename()
	}
	if v.Locked {
		v.Notice = lockedNotice
	}
	return v
}

// snapshot is what a submission works on, taken under the lock.
type snapshot struct {
	record  student.Record
	pending PendingSubmission
	slots   []names.Slot
}

// beginSubmit marks a submission in flight. Only one may run at a time.
func (w *Workspace) beginSubmit() (snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return snapshot{}, ErrClosed
	}
	if w.submitting {
		return snapshot{}, ErrSubmitInFlight
	}
	if err := w.guard("submit", FieldForm); err != nil {
		return snapshot{}, err
	}
	w.submitting = true
	pending := PendingSubmission{
		Photo:     w.pending.Photo,
		NameParts: append([]string(nil), w.pending.NameParts...),
	}
	return snapshot{record: w.record, pending: pending, slots: w.slots}, nil
}

func (w *Workspace) endSubmit() {
	w.mu.Lock()
	w.submitting = false
	w.mu.Unlock()
}

func (w *Workspace) dropPhoto() {
	w.mu.Lock()
	w.pending.Photo = nil
	w.mu.Unlock()
}

// commit applies an acknowledged submission and runs persist while holding
// the workspace lock, so a concurrent Close either precedes both or waits for
// both. It reports false, without calling persist, when the workspace was
// closed while the request was in flight.
func (w *Workspace) commit(rec student.Record, persist func(student.Record)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	if persist != nil {
		persist(rec)
	}
	w.record = rec
	w.lock.Lock()
	w.pending = w.freshPending()
	for _, s := range w.slots {
		w.errs.Clear(string(s))
	}
	w.errs.Clear(FieldPhoto)
	w.errs.Clear(FieldForm)
	return true
}

// Closed reports whether the workspace was torn down.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close releases the error timers. Pending responses are ignored afterwards.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.errs.Close()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}
