package testsupport

import (
	"context"
	"testing"

	"meshport/internal/config"
	"meshport/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a new run for tests using the provided store.
func BeginRun(t testing.TB, store *ledger.Store, contractID, tokenID string) *ledger.Record {
	t.Helper()

	record, err := store.Begin(context.Background(), contractID, tokenID, "")
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return record
}
