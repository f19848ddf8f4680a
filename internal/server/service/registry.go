package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courier/internal/server/database"
)

// FileStore is the slice of the repository the registry needs.
type FileStore interface {
	CreateFile(ctx context.Context, rec *database.FileRecord) error
	GetFile(ctx context.Context, token string) (*database.FileRecord, error)
	DeleteFile(ctx context.Context, token string) (int64, error)
	RemoveTokenFromBatches(ctx context.Context, token string) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// FileMeta is the input to minting: the re-hosted artifact's handle plus
// display metadata and the uploading principal.
type FileMeta struct {
	FileID       string
	OriginalName string
	Kind         string
	OwnerID      int64
}

// Registry mints and resolves file tokens and applies the link lifecycle
// policy. With ttl == 0 tokens are permanent and resolve for any holder of
// the reference string; with ttl > 0 they are valid only within the window
// and only for their owner.
type Registry struct {
	store FileStore
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry with the given lifecycle policy.
func NewRegistry(store FileStore, ttl time.Duration) *Registry {
	return &Registry{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Mint persists a new file record under a freshly generated token. Tokens
// are 128-bit random identifiers and are never recycled. The caller is
// responsible for compensating the re-hosted artifact if Mint fails.
func (r *Registry) Mint(ctx context.Context, meta FileMeta) (*database.FileRecord, error) {
	rec := &database.FileRecord{
		Token:        uuid.NewString(),
		FileID:       meta.FileID,
		OriginalName: meta.OriginalName,
		Kind:         meta.Kind,
		OwnerID:      meta.OwnerID,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.store.CreateFile(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to mint token: %w", err)
	}

	slog.Info("token minted",
		"token", rec.Token,
		"kind", rec.Kind,
		"owner", rec.OwnerID,
	)
	return rec, nil
}

// Resolve looks up a token and applies the lifecycle policy. In time-limited
// mode an expired record is deleted as a side effect of being detected
// (lazy expiry) and a requester other than the owner gets ErrForbidden with
// the record left intact.
func (r *Registry) Resolve(ctx context.Context, token string, requester int64) (*database.FileRecord, error) {
	rec, err := r.store.GetFile(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.ttl > 0 {
		if r.now().Sub(rec.CreatedAt) > r.ttl {
			if _, err := r.store.DeleteFile(ctx, token); err != nil {
				slog.Error("failed to delete expired record", "token", token, "error", err)
			}
			return nil, ErrExpired
		}
		if rec.OwnerID != requester {
			return nil, ErrForbidden
		}
	}

	return rec, nil
}

// Delete removes a file record, pulls its token out of any batch that
// references it, and prunes batches left empty. Idempotent; returns the
// number of records removed (0 or 1).
func (r *Registry) Delete(ctx context.Context, token string) (int64, error) {
	n, err := r.store.DeleteFile(ctx, token)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	if err := r.store.RemoveTokenFromBatches(ctx, token); err != nil {
		return n, err
	}

	slog.Info("token deleted", "token", token)
	return n, nil
}

// Has reports whether a token names an existing file record, without
// applying the lifecycle policy or its side effects.
func (r *Registry) Has(ctx context.Context, token string) (bool, error) {
	_, err := r.store.GetFile(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stats returns aggregate registry statistics.
func (r *Registry) Stats(ctx context.Context) (*database.Stats, error) {
	return r.store.GetStats(ctx)
}
