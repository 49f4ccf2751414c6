package testutil

import (
	"context"
	"testing"
	"time"

	"marks-go/internal/database"
	"marks-go/internal/marks"
	"marks-go/internal/model"
)

// NewTestStore creates a new in-memory SQLite store with the schema
// applied. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) marks.Store {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTestService wires a MarksService over a fresh in-memory store with
// stubbed clock, id and token generators, so results are deterministic.
func NewTestService(t *testing.T) (*marks.MarksService, marks.Store) {
	t.Helper()

	store := NewTestStore(t)
	svc := marks.NewMarksService(store, marks.NewNopLogger(), FixedClock(),
		NewStubIDGenerator(), NewStubTokenGenerator())
	return svc, store
}

// MustCreateUser creates a user or fails the test.
func MustCreateUser(t *testing.T, svc *marks.MarksService, email string) *model.User {
	t.Helper()

	u, err := svc.CreateUser(context.Background(), email)
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return u
}

// Seed inserts rows directly, bypassing the service layer's permission
// checks. Use it to set up states the engine itself would refuse to create.
func Seed(t *testing.T, store marks.Store, fn func(tx marks.Tx) error) {
	t.Helper()

	if err := store.WriteTx(context.Background(), fn); err != nil {
		t.Fatalf("seeding test data: %v", err)
	}
}

// SeedTime is the timestamp FixedClock reports. Handy for asserting
// deleted_at stamps.
var SeedTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
