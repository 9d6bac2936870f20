package duckdb_test

import "testing"

// TestSchemaObjectsExist verifies core tables and views are created.
func TestSchemaObjectsExist(t *testing.T) {
	store, ctx := openTestStore(t)
	for _, table := range []string{"runs", "case_results", "optimizer_iterations"} {
		count := queryInt(t, ctx, store, "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table)
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	viewCount := queryInt(t, ctx, store, "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'v_pass_rate_trend' AND table_type = 'VIEW'")
	if viewCount != 1 {
		t.Fatalf("expected view v_pass_rate_trend to exist")
	}
}
