package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"courier/internal/server/database"
)

// SecureStore is the slice of the repository the gate needs.
type SecureStore interface {
	CreateSecureLink(ctx context.Context, rec *database.SecureLinkRecord) error
	GetSecureLink(ctx context.Context, token string) (*database.SecureLinkRecord, error)
	DeleteSecureLink(ctx context.Context, token string) (int64, error)
}

// Gate persists and verifies PIN-protected links. PINs are stored as bcrypt
// hashes; comparison keeps exact string semantics ("007" never matches "7").
// Secure links are permanent and multi-use.
type Gate struct {
	store SecureStore
	now   func() time.Time
}

// NewGate creates a secure-link gate.
func NewGate(store SecureStore) *Gate {
	return &Gate{store: store, now: time.Now}
}

// ValidatePIN checks that a candidate PIN is non-empty and numeric-only.
func ValidatePIN(pin string) error {
	if pin == "" {
		return ErrNonNumericPIN
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return ErrNonNumericPIN
		}
	}
	return nil
}

// Create persists a secure link combining held file metadata with the
// owner's chosen PIN and mints its token. Nothing is persisted when the PIN
// fails validation or hashing.
func (g *Gate) Create(ctx context.Context, meta FileMeta, pin string) (*database.SecureLinkRecord, error) {
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	rec := &database.SecureLinkRecord{
		Token:        uuid.NewString(),
		FileID:       meta.FileID,
		OriginalName: meta.OriginalName,
		Kind:         meta.Kind,
		OwnerID:      meta.OwnerID,
		PINHash:      string(hash),
		CreatedAt:    g.now().UTC(),
	}

	if err := g.store.CreateSecureLink(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create secure link: %w", err)
	}

	slog.Info("secure link created", "token", rec.Token, "owner", meta.OwnerID)
	return rec, nil
}

// Verify compares a candidate PIN against the stored hash and returns the
// record on a match. A mismatch returns ErrWrongPIN and leaves the record
// untouched.
func (g *Gate) Verify(ctx context.Context, token, pin string) (*database.SecureLinkRecord, error) {
	rec, err := g.store.GetSecureLink(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PINHash), []byte(pin)); err != nil {
		return nil, ErrWrongPIN
	}

	return rec, nil
}

// Delete removes a secure link record. Idempotent.
func (g *Gate) Delete(ctx context.Context, token string) (int64, error) {
	return g.store.DeleteSecureLink(ctx, token)
}

// Has reports whether a token names an existing secure link.
func (g *Gate) Has(ctx context.Context, token string) (bool, error) {
	_, err := g.store.GetSecureLink(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
