// Package upload implements the chunked encrypted upload pipeline (C5):
// stage fixed-size blocks, encrypt them against the customer key, parse and
// index the full text, and finalize the file reference. Grounded on the
// file-server upload path (read_and_write_incoming_data / store_group_block
// / serial_encrypt / serial_parse_content in original_source/file-server),
// reworked into an explicit Go state machine with rollback on any failure.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/doka-one/doka-document-core/internal/config"
	"github.com/doka-one/doka-document-core/internal/crypto"
	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/model"
	"github.com/doka-one/doka-document-core/internal/rpc"
	"github.com/doka-one/doka-document-core/internal/storage"
)

// State is one stage of the upload lifecycle (spec.md §4.5).
type State string

const (
	StateStart               State = "Start"
	StateStaging             State = "Staging"
	StateProcessingScheduled State = "ProcessingScheduled"
	StateEncrypting          State = "Encrypting"
	StateParsing             State = "Parsing"
	StateIndexing            State = "Indexing"
	StateFinalizeRef         State = "FinalizeRef"
	StateReady               State = "Ready"
	StateFailed              State = "Failed"
)

// Pipeline wires storage and the external collaborators needed to take one
// upload from Start to Ready.
type Pipeline struct {
	DB         storage.Database
	KeyManager rpc.KeyManagerClient
	Extractor  rpc.TextExtractor
	Indexer    rpc.Indexer

	StagingGroupSize int // config.StagingGroupSize
	Logger           *slog.Logger
}

// Request is the caller-supplied context for one upload.
type Request struct {
	CustomerSchema string
	CustomerCode   string
	SessionID      string
	UserID         string
	ItemInfo       string
	FileRef        string
	MimeType       string
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run drives one file from Start through Ready, rolling back every
// persisted side effect if any stage fails.
func (p *Pipeline) Run(ctx context.Context, req Request, content io.Reader) (model.FileReference, error) {
	log := p.logger().With("file_ref", req.FileRef, "customer", req.CustomerCode)
	state := StateStart

	fileReferenceID, err := p.DB.InsertFileReference(ctx, req.CustomerSchema, model.FileReference{
		FileRef:  req.FileRef,
		MimeType: req.MimeType,
	})
	if err != nil {
		return model.FileReference{}, err
	}
	log.Debug("upload started", "file_id", fileReferenceID)

	state = StateStaging
	raw, originalSize, checksum, err := p.stage(ctx, req, content)
	if err != nil {
		p.rollback(ctx, req, fileReferenceID, state, false, log)
		return model.FileReference{}, err
	}

	state = StateEncrypting
	totalParts, encryptedSize, err := p.encrypt(ctx, req, fileReferenceID)
	if err != nil {
		p.rollback(ctx, req, fileReferenceID, state, false, log)
		return model.FileReference{}, err
	}

	state = StateParsing
	result, err := p.Extractor.Parse(ctx, raw)
	if err != nil {
		p.rollback(ctx, req, fileReferenceID, state, false, log)
		return model.FileReference{}, errs.InternalTechnical(fmt.Errorf("parsing content: %w", err))
	}

	state = StateIndexing
	indexed, err := p.index(ctx, req, fileReferenceID, result)
	if err != nil {
		p.rollback(ctx, req, fileReferenceID, state, indexed, log)
		return model.FileReference{}, err
	}

	state = StateFinalizeRef
	if err := p.DB.FinalizeFileReference(ctx, req.CustomerSchema, fileReferenceID, totalParts, originalSize, encryptedSize, checksum); err != nil {
		p.rollback(ctx, req, fileReferenceID, state, true, log)
		return model.FileReference{}, err
	}

	if err := p.DB.DeleteStaging(ctx, req.CustomerSchema, req.FileRef); err != nil {
		log.Warn("staging cleanup failed", "error", err)
	}

	log.Info("upload ready", "total_parts", totalParts, "encrypted_size", encryptedSize)

	totalPartsCopy := totalParts
	encryptedSizeCopy := encryptedSize
	checksumCopy := checksum
	return model.FileReference{
		FileID:            fileReferenceID,
		FileRef:           req.FileRef,
		MimeType:          req.MimeType,
		Checksum:          &checksumCopy,
		OriginalFileSize:  &originalSize,
		EncryptedFileSize: &encryptedSizeCopy,
		TotalPart:         &totalPartsCopy,
		IsEncrypted:       true,
		IsFulltextParsed:  true,
	}, nil
}

// stage reads content in fixed BlockSize frames, writing them to the
// staging table in transactional groups of StagingGroupSize, mirroring
// store_group_block's batched inserts. It returns the full cleartext (Tika
// needs the whole file) along with its size and xxhash checksum.
func (p *Pipeline) stage(ctx context.Context, req Request, content io.Reader) ([]byte, int64, string, error) {
	hasher := xxhash.New()
	var raw bytes.Buffer
	var group []model.StagedBlock
	partNumber := 0

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		tx, err := p.DB.DB().BeginTx(ctx, nil)
		if err != nil {
			return errs.InternalDatabase(err)
		}
		for _, b := range group {
			if err := p.DB.InsertStaging(ctx, req.CustomerSchema, tx, b); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return errs.InternalDatabase(err)
		}
		group = group[:0]
		return nil
	}

	buf := make([]byte, config.BlockSize)
	for {
		n, readErr := io.ReadFull(content, buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			hasher.Write(chunk)
			raw.Write(chunk)
			group = append(group, model.StagedBlock{
				SessionID:        req.SessionID,
				UserID:           req.UserID,
				ItemInfo:         req.ItemInfo,
				FileRef:          req.FileRef,
				PartNumber:       partNumber,
				OriginalPartSize: n,
				PartData:         chunk,
				StartTimeGMT:     time.Now().UTC(),
			})
			partNumber++
			if len(group) >= p.groupSize() {
				if err := flush(); err != nil {
					return nil, 0, "", err
				}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			io.Copy(io.Discard, content) // drain the rest of the stream even on error, per the platform's read contract
			return nil, 0, "", errs.InternalTechnical(fmt.Errorf("reading upload content: %w", readErr))
		}
	}
	if err := flush(); err != nil {
		return nil, 0, "", err
	}

	checksum := fmt.Sprintf("%016x", hasher.Sum64())
	return raw.Bytes(), int64(raw.Len()), checksum, nil
}

func (p *Pipeline) groupSize() int {
	if p.StagingGroupSize > 0 {
		return p.StagingGroupSize
	}
	return 10
}

// encrypt drains the staged blocks in order, encrypting each with the
// customer key and persisting the ciphertext, mirroring serial_encrypt.
func (p *Pipeline) encrypt(ctx context.Context, req Request, fileReferenceID int64) (int, int64, error) {
	key, err := p.KeyManager.CustomerKey(ctx, req.CustomerCode)
	if err != nil {
		return 0, 0, err
	}

	blocks, err := p.DB.StagedBlocks(ctx, req.CustomerSchema, req.FileRef)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for _, b := range blocks {
		ciphertext, err := crypto.EncryptBlock(key, b.PartData)
		if err != nil {
			return 0, 0, errs.InternalTechnical(fmt.Errorf("encrypting block %d: %w", b.PartNumber, err))
		}
		if err := p.DB.InsertEncryptedBlock(ctx, req.CustomerSchema, model.EncryptedBlock{
			FileReferenceID: fileReferenceID,
			PartNumber:      b.PartNumber,
			PartData:        ciphertext,
		}); err != nil {
			return 0, 0, err
		}
		total += int64(len(ciphertext))
	}
	return len(blocks), total, nil
}

// index calls the indexer and then persists every metadata pair under the
// size cutoff. The returned bool reports whether IndexDocument itself
// succeeded, independent of any later metadata-write failure, so the caller
// knows whether rollback must also undo the index entry.
func (p *Pipeline) index(ctx context.Context, req Request, fileReferenceID int64, result rpc.TikaResult) (bool, error) {
	if err := p.Indexer.IndexDocument(ctx, req.ItemInfo, req.FileRef, result.FullText); err != nil {
		return false, errs.InternalTechnical(fmt.Errorf("indexing document: %w", err))
	}
	for k, v := range result.Metadata {
		if k == rpc.TikaContentMetaKey {
			continue // the extracted text itself, already indexed above, never a metadata row
		}
		if len(v) > model.MaxMetadataValueLen {
			continue // dropped rather than persisted, per the file metadata design
		}
		if err := p.DB.InsertMetadata(ctx, req.CustomerSchema, model.FileMetadataRow{
			FileReferenceID: fileReferenceID,
			MetaKey:         k,
			Value:           v,
		}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// rollback undoes whatever the failed run had already persisted, per the
// state it reached (spec.md §4.5 Rollback). The file_reference row is reset
// to its zeroed Start values rather than deleted, per spec.md §3's lifecycle:
// a reader resolving file_ref afterward sees a Failed reference, not
// FileInfoNotFound.
func (p *Pipeline) rollback(ctx context.Context, req Request, fileReferenceID int64, reached State, indexed bool, log *slog.Logger) {
	log.Warn("upload failed, rolling back", "reached_state", reached)

	switch reached {
	case StateEncrypting, StateParsing, StateIndexing, StateFinalizeRef:
		if err := p.DB.DeleteEncryptedBlocks(ctx, req.CustomerSchema, fileReferenceID); err != nil {
			log.Error("rollback: delete encrypted blocks failed", "error", err)
		}
		if err := p.DB.DeleteMetadata(ctx, req.CustomerSchema, fileReferenceID); err != nil {
			log.Error("rollback: delete metadata failed", "error", err)
		}
		fallthrough
	case StateStaging, StateProcessingScheduled:
		if err := p.DB.DeleteStaging(ctx, req.CustomerSchema, req.FileRef); err != nil {
			log.Error("rollback: delete staging failed", "error", err)
		}
	}

	if indexed {
		if err := p.Indexer.DeleteDocument(ctx, req.FileRef); err != nil {
			log.Error("rollback: delete index entry failed", "error", err)
		}
	}

	if err := p.DB.ResetFileReference(ctx, req.CustomerSchema, fileReferenceID); err != nil {
		log.Error("rollback: reset file_reference failed", "error", err)
	}
}
