package service

import (
	"context"
	"errors"
	"testing"
)

func TestAggregator_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("empty list commits nothing", func(t *testing.T) {
		store := newFakeStore()
		agg := NewAggregator(store, NewRegistry(store, 0), false)

		_, err := agg.Commit(ctx, 1, nil)
		if !errors.Is(err, ErrNothingToCommit) {
			t.Fatalf("expected ErrNothingToCommit, got %v", err)
		}
		if len(store.batches) != 0 {
			t.Error("no batch record should be created for an empty commit")
		}
	})

	t.Run("persists tokens in upload order", func(t *testing.T) {
		store := newFakeStore()
		agg := NewAggregator(store, NewRegistry(store, 0), false)

		id, err := agg.Commit(ctx, 1, []string{"t1", "t2", "t3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := store.batches[id]
		if rec == nil {
			t.Fatal("expected batch record to be persisted")
		}
		for i, want := range []string{"t1", "t2", "t3"} {
			if rec.Tokens[i] != want {
				t.Errorf("position %d: expected %s, got %s", i, want, rec.Tokens[i])
			}
		}
		if rec.OwnerID != 1 {
			t.Errorf("expected owner 1, got %d", rec.OwnerID)
		}
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		store := newFakeStore()
		store.createBatchErr = errors.New("insert failed")
		agg := NewAggregator(store, NewRegistry(store, 0), false)

		if _, err := agg.Commit(ctx, 1, []string{"t1"}); err == nil {
			t.Error("expected error when the store rejects the batch")
		}
	})
}

func TestAggregator_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown batch is not found", func(t *testing.T) {
		store := newFakeStore()
		agg := NewAggregator(store, NewRegistry(store, 0), false)

		_, err := agg.Resolve(ctx, "missing", 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delivers members in upload order", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, 0)
		agg := NewAggregator(store, reg, false)

		r1, _ := reg.Mint(ctx, FileMeta{FileID: "f1", Kind: "document", OwnerID: 1})
		r2, _ := reg.Mint(ctx, FileMeta{FileID: "f2", Kind: "video", OwnerID: 1})
		id, _ := agg.Commit(ctx, 1, []string{r1.Token, r2.Token})

		items, err := agg.Resolve(ctx, id, 99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].Record.FileID != "f1" || items[1].Record.FileID != "f2" {
			t.Errorf("expected upload order f1,f2; got %+v", items)
		}
	})

	t.Run("one missing member is a per-item soft miss", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, 0)
		agg := NewAggregator(store, reg, false)

		r1, _ := reg.Mint(ctx, FileMeta{FileID: "f1", Kind: "document", OwnerID: 1})
		r2, _ := reg.Mint(ctx, FileMeta{FileID: "f2", Kind: "document", OwnerID: 1})
		r3, _ := reg.Mint(ctx, FileMeta{FileID: "f3", Kind: "document", OwnerID: 1})
		id, _ := agg.Commit(ctx, 1, []string{r1.Token, r2.Token, r3.Token})

		reg.Delete(ctx, r2.Token)
		// The fake prunes deleted tokens out of batches like the real
		// repository; restore the dangling reference to simulate a member
		// that vanished without the batch being updated.
		store.batches[id].Tokens = []string{r1.Token, r2.Token, r3.Token}

		items, err := agg.Resolve(ctx, id, 1)
		if err != nil {
			t.Fatalf("a missing member must not abort the batch: %v", err)
		}

		var misses int
		for _, item := range items {
			if item.Err != nil {
				misses++
				if !errors.Is(item.Err, ErrNotFound) {
					t.Errorf("expected ErrNotFound for the missing member, got %v", item.Err)
				}
			}
		}
		if misses != 1 {
			t.Errorf("expected exactly 1 miss, got %d", misses)
		}
		if items[0].Record == nil || items[2].Record == nil {
			t.Error("remaining members must still be delivered")
		}
	})

	t.Run("permanent batches survive delivery", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, 0)
		agg := NewAggregator(store, reg, false)

		r1, _ := reg.Mint(ctx, FileMeta{FileID: "f1", Kind: "document", OwnerID: 1})
		id, _ := agg.Commit(ctx, 1, []string{r1.Token})

		agg.Resolve(ctx, id, 1)

		if _, ok := store.batches[id]; !ok {
			t.Error("expected batch record to survive under the permanent policy")
		}
	})

	t.Run("delete-after-delivery removes a fully delivered batch", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, 0)
		agg := NewAggregator(store, reg, true)

		r1, _ := reg.Mint(ctx, FileMeta{FileID: "f1", Kind: "document", OwnerID: 1})
		id, _ := agg.Commit(ctx, 1, []string{r1.Token})

		agg.Resolve(ctx, id, 1)

		if _, ok := store.batches[id]; ok {
			t.Error("expected batch record removed after full delivery")
		}
	})

	t.Run("delete-after-delivery keeps a partially delivered batch", func(t *testing.T) {
		store := newFakeStore()
		reg := NewRegistry(store, 0)
		agg := NewAggregator(store, reg, true)

		r1, _ := reg.Mint(ctx, FileMeta{FileID: "f1", Kind: "document", OwnerID: 1})
		id, _ := agg.Commit(ctx, 1, []string{r1.Token, "dangling"})

		agg.Resolve(ctx, id, 1)

		if _, ok := store.batches[id]; !ok {
			t.Error("a batch with a miss must not be deleted")
		}
	})
}
