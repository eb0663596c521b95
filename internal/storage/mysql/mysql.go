// Package mysql is the MySQL storage.Database implementation, the
// alternative backend the teacher's database/mysql package supports
// alongside Postgres.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/model"
	"github.com/doka-one/doka-document-core/internal/storage"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(cfg storage.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DbName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.InternalDatabase(err)
	}
	storage.ApplyPool(db, cfg)
	return &Database{db: db}, nil
}

func (d *Database) DB() *sql.DB  { return d.db }
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) InsertStaging(ctx context.Context, schema string, tx *sql.Tx, block model.StagedBlock) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.file_uploads (session_id, user_id, item_info, file_ref, part_number, original_part_size, part_data, start_time_gmt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, schema), block.SessionID, block.UserID, block.ItemInfo, block.FileRef, block.PartNumber, block.OriginalPartSize, block.PartData, block.StartTimeGMT)
	if err != nil {
		return errs.InternalDatabase(fmt.Errorf("insert staging block %d of %s: %w", block.PartNumber, block.FileRef, err))
	}
	return nil
}

func (d *Database) StagedBlocks(ctx context.Context, schema, fileRef string) ([]model.StagedBlock, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT session_id, user_id, item_info, file_ref, part_number, original_part_size, part_data, start_time_gmt
		FROM %s.file_uploads WHERE file_ref = ? ORDER BY part_number
	`, schema), fileRef)
	if err != nil {
		return nil, errs.InternalDatabase(fmt.Errorf("list staged blocks for %s: %w", fileRef, err))
	}
	defer rows.Close()

	var out []model.StagedBlock
	for rows.Next() {
		var b model.StagedBlock
		if err := rows.Scan(&b.SessionID, &b.UserID, &b.ItemInfo, &b.FileRef, &b.PartNumber, &b.OriginalPartSize, &b.PartData, &b.StartTimeGMT); err != nil {
			return nil, errs.InternalDatabase(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *Database) DeleteStaging(ctx context.Context, schema, fileRef string) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.file_uploads WHERE file_ref = ?`, schema), fileRef); err != nil {
		return errs.InternalDatabase(fmt.Errorf("delete staging rows for %s: %w", fileRef, err))
	}
	return nil
}

func (d *Database) InsertFileReference(ctx context.Context, schema string, ref model.FileReference) (int64, error) {
	res, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.file_reference (file_ref, mime_type, is_encrypted, is_fulltext_parsed, is_preview_generated)
		VALUES (?, ?, ?, ?, ?)
	`, schema), ref.FileRef, ref.MimeType, ref.IsEncrypted, ref.IsFulltextParsed, ref.IsPreviewGenerated)
	if err != nil {
		return 0, errs.InternalDatabase(fmt.Errorf("insert file_reference %s: %w", ref.FileRef, err))
	}
	return res.LastInsertId()
}

func (d *Database) FinalizeFileReference(ctx context.Context, schema string, fileReferenceID int64, totalParts int, originalSize, encryptedSize int64, checksum string) error {
	res, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.file_reference
		SET total_part = ?, original_file_size = ?, encrypted_file_size = ?, checksum = ?, is_encrypted = TRUE
		WHERE file_id = ?
	`, schema), totalParts, originalSize, encryptedSize, checksum, fileReferenceID)
	if err != nil {
		return errs.InternalDatabase(fmt.Errorf("finalize file_reference %d: %w", fileReferenceID, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound(errs.CodeFileInfoNotFound, "file reference %d not found", fileReferenceID)
	}
	return nil
}

func (d *Database) DeleteEncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.file_parts WHERE file_reference_id = ?`, schema), fileReferenceID); err != nil {
		return errs.InternalDatabase(fmt.Errorf("delete encrypted blocks for %d: %w", fileReferenceID, err))
	}
	return nil
}

func (d *Database) DeleteFileReference(ctx context.Context, schema string, fileReferenceID int64) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.file_reference WHERE file_id = ?`, schema), fileReferenceID); err != nil {
		return errs.InternalDatabase(fmt.Errorf("delete file_reference %d: %w", fileReferenceID, err))
	}
	return nil
}

func (d *Database) DeleteMetadata(ctx context.Context, schema string, fileReferenceID int64) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.file_metadata WHERE file_reference_id = ?`, schema), fileReferenceID); err != nil {
		return errs.InternalDatabase(fmt.Errorf("delete metadata for %d: %w", fileReferenceID, err))
	}
	return nil
}

func (d *Database) ResetFileReference(ctx context.Context, schema string, fileReferenceID int64) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s.file_reference
		SET total_part = 0, original_file_size = 0, encrypted_file_size = 0,
		    checksum = NULL, is_encrypted = FALSE, is_fulltext_parsed = FALSE
		WHERE file_id = ?
	`, schema), fileReferenceID)
	if err != nil {
		return errs.InternalDatabase(fmt.Errorf("reset file_reference %d: %w", fileReferenceID, err))
	}
	return nil
}

func (d *Database) InsertEncryptedBlock(ctx context.Context, schema string, block model.EncryptedBlock) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.file_parts (file_reference_id, part_number, part_data)
		VALUES (?, ?, ?)
	`, schema), block.FileReferenceID, block.PartNumber, block.PartData)
	if err != nil {
		return errs.InternalDatabase(fmt.Errorf("insert encrypted block %d of %d: %w", block.PartNumber, block.FileReferenceID, err))
	}
	return nil
}

func (d *Database) EncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) ([]model.EncryptedBlock, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file_reference_id, part_number, part_data
		FROM %s.file_parts
		WHERE file_reference_id = ?
		ORDER BY part_number
	`, schema), fileReferenceID)
	if err != nil {
		return nil, errs.InternalDatabase(fmt.Errorf("list encrypted blocks for %d: %w", fileReferenceID, err))
	}
	defer rows.Close()

	var out []model.EncryptedBlock
	for rows.Next() {
		var b model.EncryptedBlock
		if err := rows.Scan(&b.FileReferenceID, &b.PartNumber, &b.PartData); err != nil {
			return nil, errs.InternalDatabase(err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *Database) FileReferenceByRef(ctx context.Context, schema, fileRef string) (model.FileReference, error) {
	var ref model.FileReference
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT file_id, file_ref, mime_type, checksum, original_file_size, encrypted_file_size,
		       total_part, is_encrypted, is_fulltext_parsed, is_preview_generated
		FROM %s.file_reference WHERE file_ref = ?
	`, schema), fileRef).Scan(
		&ref.FileID, &ref.FileRef, &ref.MimeType, &ref.Checksum, &ref.OriginalFileSize, &ref.EncryptedFileSize,
		&ref.TotalPart, &ref.IsEncrypted, &ref.IsFulltextParsed, &ref.IsPreviewGenerated,
	)
	if err == sql.ErrNoRows {
		return model.FileReference{}, errs.NotFound(errs.CodeFileInfoNotFound, "file reference %q not found", fileRef)
	}
	if err != nil {
		return model.FileReference{}, errs.InternalDatabase(err)
	}
	return ref, nil
}

func (d *Database) InsertMetadata(ctx context.Context, schema string, row model.FileMetadataRow) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.file_metadata (file_reference_id, meta_key, meta_value)
		VALUES (?, ?, ?)
	`, schema), row.FileReferenceID, row.MetaKey, row.Value)
	if err != nil {
		return errs.InternalDatabase(fmt.Errorf("insert metadata %s for %d: %w", row.MetaKey, row.FileReferenceID, err))
	}
	return nil
}

func (d *Database) TagDefinitions(ctx context.Context, schema string, names []string) ([]model.TagDefinition, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, n := range names {
		placeholders[i] = "?"
		args[i] = n
	}
	query := fmt.Sprintf(`
		SELECT tag_name, tag_type FROM %s.tag_definition WHERE tag_name IN (%s)
	`, schema, strings.Join(placeholders, ", "))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.InternalDatabase(fmt.Errorf("lookup tag definitions: %w", err))
	}
	defer rows.Close()

	var out []model.TagDefinition
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, errs.InternalDatabase(err)
		}
		out = append(out, model.TagDefinition{Name: name, Type: model.TagType(typ)})
	}
	return out, rows.Err()
}
