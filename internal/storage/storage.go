// Package storage has the database adapter layer for the document core.
// Never deal with encryption or chunking here: this layer only persists and
// retrieves rows.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/doka-one/doka-document-core/internal/model"
)

// Config is the connection configuration for either backend, including the
// bounded pool sizing spec.md §5 requires (max lifetime 2h, idle timeout
// 10m, min/max sizes configurable).
type Config struct {
	DbName   string
	User     string
	Password string
	Host     string
	Port     int

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ApplyPool sets the bounded pool limits from cfg on db, with sane fallbacks
// when the caller leaves them unset.
func ApplyPool(db *sql.DB, cfg Config) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 2 * time.Hour
	}
	idleTime := cfg.ConnMaxIdleTime
	if idleTime <= 0 {
		idleTime = 10 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(idleTime)
}

// Database is the abstraction the pipelines and query generator build on.
// Both backends (postgres, mysql) implement the same surface so the upload
// and download pipelines stay backend-agnostic.
type Database interface {
	DB() *sql.DB
	Close() error

	// InsertStaging records one staged block inside tx, against the
	// customer's file_uploads staging table. Called in groups of
	// config.StagingGroupSize per spec.md §4.5 step 2.
	InsertStaging(ctx context.Context, schema string, tx *sql.Tx, block model.StagedBlock) error

	// StagedBlocks returns every staged block of a file ordered by part
	// number, for the background worker that drains staging (C5 step 3).
	StagedBlocks(ctx context.Context, schema, fileRef string) ([]model.StagedBlock, error)

	// InsertFileReference creates the row backing a new upload, in the
	// Start state, returning its generated file_id.
	InsertFileReference(ctx context.Context, schema string, ref model.FileReference) (int64, error)

	// FinalizeFileReference stamps the closing metadata of a completed
	// upload (C5 step "FinalizeRef").
	FinalizeFileReference(ctx context.Context, schema string, fileReferenceID int64, totalParts int, originalSize, encryptedSize int64, checksum string) error

	// InsertEncryptedBlock persists one finished ciphertext block.
	InsertEncryptedBlock(ctx context.Context, schema string, block model.EncryptedBlock) error

	// EncryptedBlocks returns every block of a file ordered by part number,
	// for the reassembly half of C6.
	EncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) ([]model.EncryptedBlock, error)

	// FileReferenceByRef loads a single file_reference row.
	FileReferenceByRef(ctx context.Context, schema, fileRef string) (model.FileReference, error)

	// InsertMetadata persists one metadata row extracted by Tika.
	InsertMetadata(ctx context.Context, schema string, row model.FileMetadataRow) error

	// DeleteStaging removes every staged block of a file once it has been
	// durably encrypted, or on rollback.
	DeleteStaging(ctx context.Context, schema, fileRef string) error

	// DeleteEncryptedBlocks removes every encrypted block of a file; used by
	// the upload pipeline's rollback path.
	DeleteEncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) error

	// DeleteMetadata removes every file_metadata row of a file; used by the
	// upload pipeline's rollback path.
	DeleteMetadata(ctx context.Context, schema string, fileReferenceID int64) error

	// ResetFileReference zeroes a file_reference row's size/part fields and
	// clears is_encrypted/is_fulltext_parsed after a failed processing run.
	// The row itself is kept (spec.md §3 "on failure, reverts to zeroed
	// sizes"), so a reader can still resolve file_ref to a Failed reference
	// instead of FileInfoNotFound.
	ResetFileReference(ctx context.Context, schema string, fileReferenceID int64) error

	// DeleteFileReference removes the file_reference row itself. Not used by
	// the upload pipeline's rollback path (that path resets, per spec.md
	// §3); kept for an explicit administrative delete of a file reference
	// and its owned rows.
	DeleteFileReference(ctx context.Context, schema string, fileReferenceID int64) error

	// TagDefinitions is the query generator's batched lookup of tag name ->
	// declared type. It takes a schema, so it backs tags.Source only through
	// an adapter that pins the schema (cmd/docacore's tagSource).
	TagDefinitions(ctx context.Context, schema string, names []string) ([]model.TagDefinition, error)
}
