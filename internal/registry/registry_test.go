package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFileRegistryRecordAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	r, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("NewFileRegistry() error = %v", err)
	}
	if r.Has(ctx, "42") {
		t.Fatalf("empty registry should not know user 42")
	}
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := r.Record(ctx, "42", first); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Record(ctx, "42", first.Add(time.Hour)); err != nil {
		t.Fatalf("Record() second error = %v", err)
	}
	if !r.Has(ctx, "42") {
		t.Fatalf("Has(42) = false after Record")
	}

	raw, err := os.ReadFile(r.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), "2024-05-01T10:00:00Z") {
		t.Fatalf("first timestamp should be kept: %s", raw)
	}

	reopened, err := NewFileRegistry(dir)
	if err != nil {
		t.Fatalf("NewFileRegistry() reopen error = %v", err)
	}
	if !reopened.Has(ctx, "42") {
		t.Fatalf("reopened registry lost user 42")
	}
	if reopened.Has(ctx, "43") {
		t.Fatalf("reopened registry invented user 43")
	}
}

func TestFileRegistryRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := NewFileRegistry(" "); err == nil {
		t.Fatalf("NewFileRegistry(empty) should fail")
	}
	r, _ := NewFileRegistry(t.TempDir())
	if err := r.Record(context.Background(), "", time.Now()); err == nil {
		t.Fatalf("Record(empty) should fail")
	}
	if r.Has(context.Background(), "") {
		t.Fatalf("Has(empty) should be false")
	}
}

func TestMemoryRegistryKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	ctx := context.Background()
	t0 := time.Unix(100, 0)
	_ = r.Record(ctx, "u", t0)
	_ = r.Record(ctx, "u", t0.Add(time.Minute))
	got, ok := r.FirstSeen("u")
	if !ok || !got.Equal(t0) {
		t.Fatalf("FirstSeen() = %v, %v", got, ok)
	}
}
