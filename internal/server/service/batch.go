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

// BatchStore is the slice of the repository the aggregator needs.
type BatchStore interface {
	CreateBatch(ctx context.Context, rec *database.BatchRecord) error
	GetBatch(ctx context.Context, batchID string) (*database.BatchRecord, error)
	DeleteBatch(ctx context.Context, batchID string) (int64, error)
}

// BatchItem is one member of a resolved batch: either a deliverable record
// or the per-item error explaining why it was skipped.
type BatchItem struct {
	Token  string
	Record *database.FileRecord
	Err    error
}

// Aggregator persists committed batches and resolves them member by member.
// The in-progress collection list lives in the owner's session; the
// aggregator only sees it at commit time.
type Aggregator struct {
	store               BatchStore
	registry            *Registry
	deleteAfterDelivery bool
	now                 func() time.Time
}

// NewAggregator creates a batch aggregator. With deleteAfterDelivery set,
// a batch record is removed after its first fully successful delivery;
// by default batches are permanent and multi-use.
func NewAggregator(store BatchStore, registry *Registry, deleteAfterDelivery bool) *Aggregator {
	return &Aggregator{
		store:               store,
		registry:            registry,
		deleteAfterDelivery: deleteAfterDelivery,
		now:                 time.Now,
	}
}

// Commit persists the collected tokens as a batch record. An empty list
// commits nothing and returns ErrNothingToCommit.
func (a *Aggregator) Commit(ctx context.Context, ownerID int64, tokens []string) (string, error) {
	if len(tokens) == 0 {
		return "", ErrNothingToCommit
	}

	rec := &database.BatchRecord{
		BatchID:   uuid.NewString(),
		OwnerID:   ownerID,
		Tokens:    append([]string(nil), tokens...),
		CreatedAt: a.now().UTC(),
	}

	if err := a.store.CreateBatch(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to commit batch: %w", err)
	}

	slog.Info("batch committed",
		"batch_id", rec.BatchID,
		"owner", ownerID,
		"size", len(tokens),
	)
	return rec.BatchID, nil
}

// Resolve fetches a batch and resolves each member independently, in upload
// order. A member that no longer resolves is reported per item and never
// aborts the remaining members. Under the delete-after-delivery policy, a
// batch whose members all resolved is removed.
func (a *Aggregator) Resolve(ctx context.Context, batchID string, requester int64) ([]BatchItem, error) {
	rec, err := a.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items := make([]BatchItem, 0, len(rec.Tokens))
	allResolved := true
	for _, token := range rec.Tokens {
		file, err := a.registry.Resolve(ctx, token, requester)
		if err != nil {
			allResolved = false
			items = append(items, BatchItem{Token: token, Err: err})
			continue
		}
		items = append(items, BatchItem{Token: token, Record: file})
	}

	if a.deleteAfterDelivery && allResolved {
		if _, err := a.store.DeleteBatch(ctx, batchID); err != nil {
			slog.Error("failed to delete delivered batch", "batch_id", batchID, "error", err)
		}
	}

	return items, nil
}

// Has reports whether a batch id names an existing batch record.
func (a *Aggregator) Has(ctx context.Context, batchID string) (bool, error) {
	_, err := a.store.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
