package session

import (
	"context"
	"testing"

	"github.com/sidepanelai/agentcore/pkg/models"
)

func TestMemoryStoreSaveRestoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	snap := &Snapshot{ID: "exec-1", Status: models.StatusRunning, Variables: map[string]any{"a": 1}}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Restore(ctx, "exec-1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.Variables["a"] != 1 {
		t.Fatalf("variables = %v", got.Variables)
	}

	if err := store.Delete(ctx, "exec-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := store.Restore(ctx, "exec-1")
	if err != nil || gone != nil {
		t.Fatalf("restore after delete = %v, %v", gone, err)
	}
}

func TestMemoryStoreRestoreUnknown(t *testing.T) {
	store := NewMemoryStore()
	snap, err := store.Restore(context.Background(), "missing")
	if err != nil || snap != nil {
		t.Fatalf("restore missing = %v, %v", snap, err)
	}
}

func TestMemoryStoreSaveRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Save(context.Background(), &Snapshot{}); err == nil {
		t.Fatal("expected an error for an empty id")
	}
}
