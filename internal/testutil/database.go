package testutil

import (
	"context"
	"testing"

	"vfm-go/internal/database"
	"vfm-go/internal/vfm"
)

// NewTestStore creates a fresh in-memory SQLite metadata store with the
// schema applied. The store is closed when the test completes.
func NewTestStore(t *testing.T, clock vfm.Clock) vfm.MetadataStore {
	t.Helper()

	store := database.NewSQLiteStore(":memory:", clock, nil)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if !store.Available() {
		t.Fatal("in-memory store is unavailable")
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
