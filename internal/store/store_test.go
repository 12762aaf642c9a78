package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCheckpointStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	cp := Checkpoint{RunID: "run-1", GraphID: "g1", NodeID: "n1", State: map[string]any{"k": "v"}, Timestamp: time.Now()}
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := s.Load(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("expected to load checkpoint, ok=%v err=%v", ok, err)
	}
	if loaded.NodeID != "n1" || loaded.State["k"] != "v" {
		t.Fatalf("unexpected checkpoint: %+v", loaded)
	}
}

func TestMemoryCheckpointStoreMutationIsolation(t *testing.T) {
	s := NewMemoryCheckpointStore()
	ctx := context.Background()

	state := map[string]any{"k": "v"}
	s.Save(ctx, Checkpoint{RunID: "run-1", State: state})
	state["k"] = "mutated"

	loaded, _, _ := s.Load(ctx, "run-1")
	if loaded.State["k"] != "v" {
		t.Fatalf("expected stored checkpoint to be isolated from caller mutation, got %v", loaded.State["k"])
	}
	loaded.State["k"] = "also mutated"

	reloaded, _, _ := s.Load(ctx, "run-1")
	if reloaded.State["k"] != "v" {
		t.Fatalf("expected the store's copy to be isolated from the caller's loaded copy, got %v", reloaded.State["k"])
	}
}

func TestMemoryCheckpointStoreLoadByToken(t *testing.T) {
	s := NewMemoryCheckpointStore()
	ctx := context.Background()
	s.Save(ctx, Checkpoint{RunID: "run-1", PendingResumeToken: "tok-1"})

	loaded, ok, err := s.LoadByToken(ctx, "tok-1")
	if err != nil || !ok || loaded.RunID != "run-1" {
		t.Fatalf("expected to find checkpoint by token, ok=%v err=%v loaded=%+v", ok, err, loaded)
	}

	_, ok, _ = s.LoadByToken(ctx, "missing")
	if ok {
		t.Fatal("expected no checkpoint for an unknown token")
	}
}

func TestMemoryIdempotencyStoreExpiresByTTL(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	fakeNow := time.Now()
	s.now = func() time.Time { return fakeNow }

	ctx := context.Background()
	s.Put(ctx, IdempotencyEntry{Key: "k1", Snapshot: "v1", CreatedAt: fakeNow, TTL: time.Second})

	if _, found, _ := s.Get(ctx, "k1"); !found {
		t.Fatal("expected entry to be found before TTL elapses")
	}

	fakeNow = fakeNow.Add(2 * time.Second)
	if _, found, _ := s.Get(ctx, "k1"); found {
		t.Fatal("expected entry to be expired and removed after TTL elapses")
	}
}
