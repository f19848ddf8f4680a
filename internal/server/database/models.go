package database

import "time"

// FileRecord maps an opaque token to a re-hosted artifact. Records are
// immutable once minted; they only ever get deleted.
type FileRecord struct {
	Token        string
	FileID       string // the platform's opaque handle for the re-hosted artifact
	OriginalName string
	Kind         string
	OwnerID      int64
	CreatedAt    time.Time
}

// BatchRecord is a named, ordered group of file tokens collected in one
// session. Members may be deleted out from under it; resolution treats a
// missing member as a soft miss.
type BatchRecord struct {
	BatchID   string
	OwnerID   int64
	Tokens    []string
	CreatedAt time.Time
}

// SecureLinkRecord is a FileRecord whose delivery is gated behind a PIN.
// The PIN is stored as a bcrypt hash, never in the clear.
type SecureLinkRecord struct {
	Token        string
	FileID       string
	OriginalName string
	Kind         string
	OwnerID      int64
	PINHash      string
	CreatedAt    time.Time
}

// Stats holds aggregate registry statistics.
type Stats struct {
	Files       int64
	Batches     int64
	SecureLinks int64
	Principals  int64
}
