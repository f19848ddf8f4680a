package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// Repository provides CRUD operations for the registry's durable records.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// --- File records ---

// CreateFile inserts a new file record.
func (r *Repository) CreateFile(ctx context.Context, rec *FileRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO files (token, file_id, original_name, kind, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		rec.Token,
		rec.FileID,
		rec.OriginalName,
		rec.Kind,
		rec.OwnerID,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetFile retrieves a file record by its token.
func (r *Repository) GetFile(ctx context.Context, token string) (*FileRecord, error) {
	rec := &FileRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT token, file_id, original_name, kind, owner_id, created_at
		FROM files WHERE token = $1
	`, token).Scan(
		&rec.Token,
		&rec.FileID,
		&rec.OriginalName,
		&rec.Kind,
		&rec.OwnerID,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return rec, nil
}

// DeleteFile removes a file record by token. Deleting a token that does not
// exist is a no-op, not an error; the returned count is 0 or 1.
func (r *Repository) DeleteFile(ctx context.Context, token string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM files WHERE token = $1", token)
	if err != nil {
		return 0, fmt.Errorf("failed to delete file record: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteFilesBefore removes all file records created before the cutoff.
// Used by the expiry sweep in time-limited mode.
func (r *Repository) DeleteFilesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM files WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired file records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Batch records ---

// CreateBatch inserts a new batch record. Token order is preserved.
func (r *Repository) CreateBatch(ctx context.Context, rec *BatchRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO batches (batch_id, owner_id, tokens, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		rec.BatchID,
		rec.OwnerID,
		rec.Tokens,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch record: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch record by its id.
func (r *Repository) GetBatch(ctx context.Context, batchID string) (*BatchRecord, error) {
	rec := &BatchRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT batch_id, owner_id, tokens, created_at
		FROM batches WHERE batch_id = $1
	`, batchID).Scan(
		&rec.BatchID,
		&rec.OwnerID,
		&rec.Tokens,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get batch record: %w", err)
	}
	return rec, nil
}

// DeleteBatch removes a batch record by id. Idempotent.
func (r *Repository) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM batches WHERE batch_id = $1", batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch record: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RemoveTokenFromBatches pulls a token out of every batch that references it
// and prunes batches left with no members.
func (r *Repository) RemoveTokenFromBatches(ctx context.Context, token string) error {
	_, err := r.db.Pool.Exec(ctx,
		"UPDATE batches SET tokens = array_remove(tokens, $1) WHERE $1 = ANY(tokens)", token)
	if err != nil {
		return fmt.Errorf("failed to remove token from batches: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, "DELETE FROM batches WHERE cardinality(tokens) = 0")
	if err != nil {
		return fmt.Errorf("failed to prune empty batches: %w", err)
	}
	return nil
}

// --- Secure link records ---

// CreateSecureLink inserts a new secure link record.
func (r *Repository) CreateSecureLink(ctx context.Context, rec *SecureLinkRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO secure_links (token, file_id, original_name, kind, owner_id, pin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.Token,
		rec.FileID,
		rec.OriginalName,
		rec.Kind,
		rec.OwnerID,
		rec.PINHash,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create secure link record: %w", err)
	}
	return nil
}

// GetSecureLink retrieves a secure link record by its token.
func (r *Repository) GetSecureLink(ctx context.Context, token string) (*SecureLinkRecord, error) {
	rec := &SecureLinkRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT token, file_id, original_name, kind, owner_id, pin_hash, created_at
		FROM secure_links WHERE token = $1
	`, token).Scan(
		&rec.Token,
		&rec.FileID,
		&rec.OriginalName,
		&rec.Kind,
		&rec.OwnerID,
		&rec.PINHash,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get secure link record: %w", err)
	}
	return rec, nil
}

// DeleteSecureLink removes a secure link record by token. Idempotent.
func (r *Repository) DeleteSecureLink(ctx context.Context, token string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM secure_links WHERE token = $1", token)
	if err != nil {
		return 0, fmt.Errorf("failed to delete secure link record: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Principals ---

// UpsertPrincipal records a principal the bot has interacted with.
func (r *Repository) UpsertPrincipal(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO principals (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", id)
	if err != nil {
		return fmt.Errorf("failed to upsert principal: %w", err)
	}
	return nil
}

// ListPrincipals returns the ids of all known principals.
func (r *Repository) ListPrincipals(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, "SELECT id FROM principals ORDER BY first_seen")
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStats returns aggregate registry statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM batches),
			(SELECT COUNT(*) FROM secure_links),
			(SELECT COUNT(*) FROM principals)
	`).Scan(
		&stats.Files,
		&stats.Batches,
		&stats.SecureLinks,
		&stats.Principals,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
