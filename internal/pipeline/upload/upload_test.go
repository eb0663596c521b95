package upload

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/doka-one/doka-document-core/internal/crypto"
	"github.com/doka-one/doka-document-core/internal/model"
	"github.com/doka-one/doka-document-core/internal/rpc"
)

type fakeDB struct {
	staged      []model.StagedBlock
	encrypted   []model.EncryptedBlock
	metadata    []model.FileMetadataRow
	finalized   bool
	deletedFR   bool
	deletedEnc  bool
	deletedStag bool
	deletedMeta bool
	resetFR     bool
}

func (f *fakeDB) DB() *sql.DB  { return nil }
func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) InsertStaging(ctx context.Context, schema string, tx *sql.Tx, block model.StagedBlock) error {
	f.staged = append(f.staged, block)
	return nil
}
func (f *fakeDB) StagedBlocks(ctx context.Context, schema, fileRef string) ([]model.StagedBlock, error) {
	return f.staged, nil
}
func (f *fakeDB) InsertFileReference(ctx context.Context, schema string, ref model.FileReference) (int64, error) {
	return 42, nil
}
func (f *fakeDB) FinalizeFileReference(ctx context.Context, schema string, id int64, totalParts int, originalSize, encryptedSize int64, checksum string) error {
	f.finalized = true
	return nil
}
func (f *fakeDB) InsertEncryptedBlock(ctx context.Context, schema string, block model.EncryptedBlock) error {
	f.encrypted = append(f.encrypted, block)
	return nil
}
func (f *fakeDB) EncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) ([]model.EncryptedBlock, error) {
	return f.encrypted, nil
}
func (f *fakeDB) FileReferenceByRef(ctx context.Context, schema, fileRef string) (model.FileReference, error) {
	return model.FileReference{}, nil
}
func (f *fakeDB) InsertMetadata(ctx context.Context, schema string, row model.FileMetadataRow) error {
	f.metadata = append(f.metadata, row)
	return nil
}
func (f *fakeDB) DeleteStaging(ctx context.Context, schema, fileRef string) error {
	f.deletedStag = true
	return nil
}
func (f *fakeDB) DeleteEncryptedBlocks(ctx context.Context, schema string, id int64) error {
	f.deletedEnc = true
	return nil
}
func (f *fakeDB) DeleteFileReference(ctx context.Context, schema string, id int64) error {
	f.deletedFR = true
	return nil
}
func (f *fakeDB) DeleteMetadata(ctx context.Context, schema string, id int64) error {
	f.deletedMeta = true
	return nil
}
func (f *fakeDB) ResetFileReference(ctx context.Context, schema string, id int64) error {
	f.resetFR = true
	return nil
}
func (f *fakeDB) TagDefinitions(ctx context.Context, schema string, names []string) ([]model.TagDefinition, error) {
	return nil, nil
}

// BeginTx needs a *sql.DB; the pipeline calls p.DB.DB().BeginTx, and this
// fake returns nil from DB(), so stage and Run (the transactional staging
// path) are not exercised by the tests in this file.

type fakeKeyManager struct{ key []byte }

func (k *fakeKeyManager) CustomerKey(ctx context.Context, customerCode string) ([]byte, error) {
	return k.key, nil
}

type fakeIndexer struct{ indexed, deleted bool }

func (f *fakeIndexer) IndexDocument(ctx context.Context, fileName, fileRef, rawText string) error {
	f.indexed = true
	return nil
}
func (f *fakeIndexer) DeleteDocument(ctx context.Context, fileRef string) error {
	f.deleted = true
	return nil
}

func TestGroupSize_DefaultsToTen(t *testing.T) {
	p := &Pipeline{}
	if got := p.groupSize(); got != 10 {
		t.Fatalf("groupSize() = %d, want 10", got)
	}
	p.StagingGroupSize = 3
	if got := p.groupSize(); got != 3 {
		t.Fatalf("groupSize() = %d, want 3", got)
	}
}

func TestEncrypt_ProducesOneCiphertextPerStagedBlock(t *testing.T) {
	key := bytes.Repeat([]byte{3}, crypto.KeySize)
	db := &fakeDB{staged: []model.StagedBlock{
		{FileRef: "f-1", PartNumber: 0, PartData: []byte("part-zero")},
		{FileRef: "f-1", PartNumber: 1, PartData: []byte("part-one")},
	}}
	p := &Pipeline{DB: db, KeyManager: &fakeKeyManager{key: key}}

	total, size, err := p.encrypt(context.Background(), Request{CustomerSchema: "cs_acme", CustomerCode: "acme", FileRef: "f-1"}, 42)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if size <= 0 {
		t.Fatalf("size = %d, want > 0", size)
	}
	if len(db.encrypted) != 2 {
		t.Fatalf("persisted %d blocks, want 2", len(db.encrypted))
	}

	for i, b := range db.encrypted {
		pt, err := crypto.DecryptBlock(key, b.PartData)
		if err != nil {
			t.Fatalf("decrypt block %d: %v", i, err)
		}
		if string(pt) != string(db.staged[i].PartData) {
			t.Fatalf("round trip mismatch on block %d", i)
		}
	}
}

func TestIndex_DropsOversizedMetadataValue(t *testing.T) {
	db := &fakeDB{}
	indexer := &fakeIndexer{}
	p := &Pipeline{DB: db, Indexer: indexer}

	oversized := make([]byte, model.MaxMetadataValueLen+1)
	result := rpc.TikaResult{
		FullText: "hello world",
		Metadata: map[string]string{
			"short": "ok",
			"long":  string(oversized),
		},
	}

	indexedOK, err := p.index(context.Background(), Request{CustomerSchema: "cs_acme", FileRef: "f-1"}, 42, result)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if !indexedOK || !indexer.indexed {
		t.Fatal("expected IndexDocument to be called")
	}
	if len(db.metadata) != 1 || db.metadata[0].MetaKey != "short" {
		t.Fatalf("expected only the short metadata value to persist, got %+v", db.metadata)
	}
}

func TestRollback_DeletesEverythingReachedByEncrypting(t *testing.T) {
	db := &fakeDB{}
	indexer := &fakeIndexer{}
	p := &Pipeline{DB: db, Indexer: indexer}
	p.rollback(context.Background(), Request{CustomerSchema: "cs_acme", FileRef: "f-1"}, 42, StateEncrypting, true, slog.Default())

	if !db.deletedEnc || !db.deletedStag || !db.deletedMeta || !db.resetFR {
		t.Fatalf("expected full rollback, got enc=%v staging=%v meta=%v reset=%v", db.deletedEnc, db.deletedStag, db.deletedMeta, db.resetFR)
	}
	if !indexer.deleted {
		t.Fatal("expected the index entry to be deleted on rollback after a successful IndexDocument call")
	}
}
