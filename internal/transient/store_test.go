package transient

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSetExpires(t *testing.T) {
	s := New(30 * time.Millisecond)
	defer s.Close()

	s.Set("photo", "too large")
	if got := s.Get("photo"); got != "too large" {
		t.Fatalf("Get = %q", got)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}
	waitFor(t, func() bool { return s.Get("photo") == "" })
	if s.Pending() != 0 {
		t.Fatalf("Pending after expiry = %d", s.Pending())
	}
}

func TestSetResetsTimer(t *testing.T) {
	s := New(80 * time.Millisecond)
	defer s.Close()

	s.Set("first", "one")
	time.Sleep(50 * time.Millisecond)
	s.Set("first", "two")
	time.Sleep(50 * time.Millisecond)
	if got := s.Get("first"); got != "two" {
		t.Fatalf("message cleared by stale timer: %q", got)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}
	waitFor(t, func() bool { return s.Get("first") == "" })
}

func TestClearIsIdempotent(t *testing.T) {
	s := New(time.Minute)
	defer s.Close()

	s.Set("second", "bad")
	s.Clear("second")
	if s.Get("second") != "" || s.Pending() != 0 {
		t.Fatal("clear did not cancel")
	}
	s.Clear("second")
	s.Set("never-set", "")
	if s.Pending() != 0 || len(s.Snapshot()) != 0 {
		t.Fatalf("second clear left state: pending=%d snapshot=%v", s.Pending(), s.Snapshot())
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	s := New(40 * time.Millisecond)
	defer s.Close()

	s.Set("first", "short-lived")
	time.Sleep(25 * time.Millisecond)
	s.Set("third", "fresh")
	waitFor(t, func() bool { return s.Get("first") == "" })
	if got := s.Get("third"); got != "fresh" {
		t.Fatalf("third expired with first: %q", got)
	}
}

func TestCloseStopsTimers(t *testing.T) {
	s := New(time.Minute)
	s.Set("photo", "x")
	s.Set("first", "y")
	s.Close()
	if s.Pending() != 0 {
		t.Fatalf("Pending after Close = %d", s.Pending())
	}
	s.Set("photo", "after close")
	if got := s.Get("photo"); got != "" {
		t.Fatalf("Set after Close stored %q", got)
	}
	s.Close()
}

func TestDefaultTimeout(t *testing.T) {
	if s := New(0); s.timeout != DefaultTimeout {
		t.Fatalf("timeout = %v", s.timeout)
	}
}
