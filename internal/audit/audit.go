// Package audit keeps a trail of issued credentials and inline uploads.
// Credential URLs themselves are never recorded.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialEntry describes one issued upload credential.
type CredentialEntry struct {
	Container  string
	ObjectKey  string
	SourceIP   string
	ValidFrom  time.Time
	ValidUntil time.Time
	// Empty when the credential is not IP-scoped.
	IPRange string
}

// UploadEntry describes one inline upload written to storage.
type UploadEntry struct {
	Container   string
	ObjectKey   string
	SourceIP    string
	SizeBytes   int64
	ContentType string
}

// Recorder persists audit entries.
type Recorder interface {
	RecordCredential(ctx context.Context, e CredentialEntry) error
	RecordUpload(ctx context.Context, e UploadEntry) error
}

// Nop discards every entry. Used when no database is configured.
type Nop struct{}

func (Nop) RecordCredential(context.Context, CredentialEntry) error { return nil }
func (Nop) RecordUpload(context.Context, UploadEntry) error { return nil }

// Repository stores audit entries in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new audit Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// RecordCredential inserts one credential_audit row.
func (r *Repository) RecordCredential(ctx context.Context, e CredentialEntry) error {
	var ipRange *string
	if e.IPRange != "" {
		ipRange = &e.IPRange
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO credential_audit (container, object_key, source_ip, valid_from, valid_until, ip_range)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Container, e.ObjectKey, e.SourceIP, e.ValidFrom, e.ValidUntil, ipRange,
	)
	if err != nil {
		return fmt.Errorf("record credential: %w", err)
	}
	return nil
}

// RecordUpload inserts one inline_upload_audit row.
func (r *Repository) RecordUpload(ctx context.Context, e UploadEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO inline_upload_audit (container, object_key, source_ip, size_bytes, content_type)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.Container, e.ObjectKey, e.SourceIP, e.SizeBytes, e.ContentType,
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}
