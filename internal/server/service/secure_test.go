package service

import (
	"context"
	"errors"
	"testing"
)

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		name  string
		pin   string
		valid bool
	}{
		{"four digits", "4242", true},
		{"leading zeros", "007", true},
		{"single digit", "7", true},
		{"empty", "", false},
		{"letters", "abcd", false},
		{"mixed", "12a4", false},
		{"spaces", "12 34", false},
		{"negative", "-123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.pin, err)
			}
			if !tt.valid && !errors.Is(err, ErrNonNumericPIN) {
				t.Errorf("expected ErrNonNumericPIN for %q, got %v", tt.pin, err)
			}
		})
	}
}

func TestGate_Create(t *testing.T) {
	ctx := context.Background()
	meta := FileMeta{FileID: "FILE1", OriginalName: "secret.pdf", Kind: "document", OwnerID: 5}

	t.Run("persists a record with a hashed pin", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)

		rec, err := gate.Create(ctx, meta, "4242")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Token == "" {
			t.Fatal("expected a non-empty token")
		}

		stored := store.secures[rec.Token]
		if stored == nil {
			t.Fatal("expected record to be persisted")
		}
		if stored.PINHash == "4242" {
			t.Error("pin must not be stored in the clear")
		}
		if stored.FileID != "FILE1" || stored.OwnerID != 5 {
			t.Errorf("stored metadata mismatch: %+v", stored)
		}
	})

	t.Run("rejects a non-numeric pin without persisting", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)

		_, err := gate.Create(ctx, meta, "12ab")
		if !errors.Is(err, ErrNonNumericPIN) {
			t.Fatalf("expected ErrNonNumericPIN, got %v", err)
		}
		if len(store.secures) != 0 {
			t.Error("nothing must be persisted for an invalid pin")
		}
	})
}

func TestGate_Verify(t *testing.T) {
	ctx := context.Background()
	meta := FileMeta{FileID: "FILE1", OriginalName: "secret.pdf", Kind: "document", OwnerID: 5}

	t.Run("correct pin returns the record", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)
		rec, _ := gate.Create(ctx, meta, "4242")

		got, err := gate.Verify(ctx, rec.Token, "4242")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.FileID != "FILE1" {
			t.Errorf("expected FILE1, got %s", got.FileID)
		}
	})

	t.Run("wrong pin is rejected and the record untouched", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)
		rec, _ := gate.Create(ctx, meta, "4242")
		before := store.secures[rec.Token].PINHash

		_, err := gate.Verify(ctx, rec.Token, "0000")
		if !errors.Is(err, ErrWrongPIN) {
			t.Fatalf("expected ErrWrongPIN, got %v", err)
		}

		if store.secures[rec.Token].PINHash != before {
			t.Error("a failed attempt must not mutate the stored record")
		}
		if _, err := gate.Verify(ctx, rec.Token, "4242"); err != nil {
			t.Errorf("record must remain verifiable, got %v", err)
		}
	})

	t.Run("comparison is exact string match", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)
		rec, _ := gate.Create(ctx, meta, "007")

		if _, err := gate.Verify(ctx, rec.Token, "7"); !errors.Is(err, ErrWrongPIN) {
			t.Errorf(`"7" must not match a pin of "007", got %v`, err)
		}
		if _, err := gate.Verify(ctx, rec.Token, "007"); err != nil {
			t.Errorf("exact pin must match, got %v", err)
		}
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		gate := NewGate(newFakeStore())

		_, err := gate.Verify(ctx, "missing", "1234")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("secure links are multi-use", func(t *testing.T) {
		store := newFakeStore()
		gate := NewGate(store)
		rec, _ := gate.Create(ctx, meta, "4242")

		gate.Verify(ctx, rec.Token, "4242")
		if _, err := gate.Verify(ctx, rec.Token, "4242"); err != nil {
			t.Errorf("expected repeat verification to succeed, got %v", err)
		}
	})
}

func TestGate_Delete(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	gate := NewGate(store)
	rec, _ := gate.Create(ctx, FileMeta{FileID: "f", Kind: "document"}, "1111")

	n, err := gate.Delete(ctx, rec.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record removed, got %d", n)
	}

	n, err = gate.Delete(ctx, rec.Token)
	if err != nil || n != 0 {
		t.Errorf("expected idempotent second delete, got n=%d err=%v", n, err)
	}
}
