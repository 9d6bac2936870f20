package testutil

import (
	"testing"
	"time"
)

func TestContextAppliesTimeout(t *testing.T) {
	ctx := Context(t, 50*time.Millisecond)
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline")
	}
	if remaining := time.Until(deadline); remaining > 50*time.Millisecond {
		t.Fatalf("deadline too far out: %s", remaining)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context never expired")
	}
}

func TestContextDefaultsTimeout(t *testing.T) {
	ctx := Context(t, 0)
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > DefaultTimeout {
		t.Fatalf("expected default timeout, got %v %v", deadline, ok)
	}
}

func TestContextWorksForBenchmarks(t *testing.T) {
	result := testing.Benchmark(func(b *testing.B) {
		ctx := Context(b, time.Second)
		if _, ok := ctx.Deadline(); !ok {
			b.Fatalf("expected a deadline")
		}
		for i := 0; i < b.N; i++ {
			_ = ctx.Err()
		}
	})
	if result.N == 0 {
		t.Fatalf("benchmark did not run")
	}
}
