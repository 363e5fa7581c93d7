package audit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"studentportal/internal/store"
	"studentportal/internal/student"
)

// openTestRepo connects to AUDIT_TEST_DATABASE_URL and skips without it.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("AUDIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUDIT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return repo
}

func TestRepositoryInsertAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	// A fresh 14-digit id keeps runs independent.
	nid := fmt.Sprintf("9%013d", time.Now().UnixNano()%1e13)
	rec := student.Record{NationalID: nid, SeatNumber: "1001", EnglishName: []string{"John", "Q", "Public"}}

	first := NewEvent("s1", rec)
	first.SubmittedAt = time.Now().UTC().Add(-time.Hour)
	second := NewEvent("s2", rec)

	for _, evt := range []Event{first, second, first} {
		if err := repo.Insert(ctx, evt); err != nil {
			t.Fatalf("Insert %s: %v", evt.ID, err)
		}
	}

	got, err := repo.ListByStudent(ctx, nid, 10)
	if err != nil {
		t.Fatalf("ListByStudent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (redelivery must be ignored)", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].EnglishName != "John Q Public" || got[0].CreatedAt.IsZero() {
		t.Fatalf("row = %+v", got[0])
	}
}

func TestRepositoryInsertRequiresStudent(t *testing.T) {
	repo := NewRepository(nil)
	if err := repo.Insert(context.Background(), Event{ID: "x"}); err == nil {
		t.Fatal("event without national id accepted")
	}
}
