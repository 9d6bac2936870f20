package duckdbtesting

import (
	"testing"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/duckdb"
	"github.com/foundationallm/foundationallm-sub000/internal/testutil"
)

const (
	defaultTimeout = 5 * time.Second
)

// Open opens a history store at dsn (":memory:" or a file) and closes it
// when the test ends.
func Open(t testing.TB, dsn string) *duckdb.Store {
	t.Helper()
	ctx := testutil.Context(t, defaultTimeout)
	store, err := duckdb.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open duckdb store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
