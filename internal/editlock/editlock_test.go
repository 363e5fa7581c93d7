package editlock

import (
	"errors"
	"testing"

	"studentportal/internal/student"
)

func flag(b bool) *bool { return &b }

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		rec  student.Record
		want State
	}{
		{"fresh record", student.Record{}, Editable},
		{"has name", student.Record{EnglishName: []string{"John"}}, Locked},
		{"has photo", student.Record{PhotoURL: "x.jpg"}, Locked},
		{"flag true overrides data", student.Record{EnglishName: []string{"John"}, PhotoURL: "x.jpg", CanEditAgain: flag(true)}, Editable},
		{"flag false overrides empty", student.Record{CanEditAgain: flag(false)}, Locked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.rec); got != tt.want {
				t.Fatalf("Derive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockOnce(t *testing.T) {
	m := New(student.Record{})
	if m.Locked() {
		t.Fatal("should start editable")
	}
	if !m.Lock() {
		t.Fatal("first Lock should change state")
	}
	if m.Lock() {
		t.Fatal("second Lock should be a no-op")
	}
}

func TestRefresh(t *testing.T) {
	m := New(student.Record{})
	m.Lock()

	if got := m.Refresh(student.Record{EnglishName: []string{"John"}}); got != Locked {
		t.Fatalf("refresh without flag unlocked: %v", got)
	}
	if got := m.Refresh(student.Record{}); got != Locked {
		t.Fatalf("refresh with empty data unlocked: %v", got)
	}
	if got := m.Refresh(student.Record{CanEditAgain: flag(true)}); got != Editable {
		t.Fatalf("authoritative flag did not unlock: %v", got)
	}
	if got := m.Refresh(student.Record{CanEditAgain: flag(false)}); got != Locked {
		t.Fatalf("authoritative false did not lock: %v", got)
	}
}

func TestGuard(t *testing.T) {
	m := New(student.Record{})
	if err := m.Guard("photo"); err != nil {
		t.Fatalf("editable guard = %v", err)
	}
	m.Lock()
	for _, action := range []string{"photo", "name", "submit", "other"} {
		err := m.Guard(action)
		if !errors.Is(err, ErrLocked) {
			t.Fatalf("Guard(%q) = %v", action, err)
		}
		var v *Violation
		if !errors.As(err, &v) || v.Message == "" {
			t.Fatalf("Guard(%q) missing message", action)
		}
	}
}
