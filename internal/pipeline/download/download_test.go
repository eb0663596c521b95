package download

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/doka-one/doka-document-core/internal/crypto"
	"github.com/doka-one/doka-document-core/internal/model"
)

type fakeDB struct {
	ref    model.FileReference
	blocks []model.EncryptedBlock
}

func (f *fakeDB) DB() *sql.DB  { return nil }
func (f *fakeDB) Close() error { return nil }
func (f *fakeDB) InsertStaging(ctx context.Context, schema string, tx *sql.Tx, block model.StagedBlock) error {
	return nil
}
func (f *fakeDB) StagedBlocks(ctx context.Context, schema, fileRef string) ([]model.StagedBlock, error) {
	return nil, nil
}
func (f *fakeDB) InsertFileReference(ctx context.Context, schema string, ref model.FileReference) (int64, error) {
	return 0, nil
}
func (f *fakeDB) FinalizeFileReference(ctx context.Context, schema string, id int64, totalParts int, originalSize, encryptedSize int64, checksum string) error {
	return nil
}
func (f *fakeDB) InsertEncryptedBlock(ctx context.Context, schema string, block model.EncryptedBlock) error {
	return nil
}
func (f *fakeDB) EncryptedBlocks(ctx context.Context, schema string, fileReferenceID int64) ([]model.EncryptedBlock, error) {
	sorted := append([]model.EncryptedBlock(nil), f.blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	return sorted, nil
}
func (f *fakeDB) FileReferenceByRef(ctx context.Context, schema, fileRef string) (model.FileReference, error) {
	return f.ref, nil
}
func (f *fakeDB) InsertMetadata(ctx context.Context, schema string, row model.FileMetadataRow) error {
	return nil
}
func (f *fakeDB) DeleteStaging(ctx context.Context, schema, fileRef string) error { return nil }
func (f *fakeDB) DeleteEncryptedBlocks(ctx context.Context, schema string, id int64) error {
	return nil
}
func (f *fakeDB) DeleteFileReference(ctx context.Context, schema string, id int64) error { return nil }
func (f *fakeDB) DeleteMetadata(ctx context.Context, schema string, id int64) error      { return nil }
func (f *fakeDB) ResetFileReference(ctx context.Context, schema string, id int64) error  { return nil }
func (f *fakeDB) TagDefinitions(ctx context.Context, schema string, names []string) ([]model.TagDefinition, error) {
	return nil, nil
}

type fakeKeyManager struct{ key []byte }

func (k *fakeKeyManager) CustomerKey(ctx context.Context, customerCode string) ([]byte, error) {
	return k.key, nil
}

func TestRun_ReassemblesBlocksInOrder(t *testing.T) {
	key := bytes.Repeat([]byte{7}, crypto.KeySize)
	plain := [][]byte{[]byte("hello "), []byte("brave "), []byte("new world")}

	var blocks []model.EncryptedBlock
	for i, p := range plain {
		ct, err := crypto.EncryptBlock(key, p)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		// appended out of order to prove the pipeline restores ordering, not
		// just passes it through.
		blocks = append([]model.EncryptedBlock{{FileReferenceID: 1, PartNumber: i, PartData: ct}}, blocks...)
	}

	db := &fakeDB{
		ref:    model.FileReference{FileID: 1, FileRef: "f-1", IsEncrypted: true},
		blocks: blocks,
	}

	p := &Pipeline{DB: db, KeyManager: &fakeKeyManager{key: key}, WorkerPoolOverride: 4}
	res, err := p.Run(context.Background(), "cs_acme", "acme", "f-1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "hello brave new world"
	if string(res.Content) != want {
		t.Fatalf("content = %q, want %q", res.Content, want)
	}
}

func TestRun_RejectsUnencryptedReference(t *testing.T) {
	db := &fakeDB{ref: model.FileReference{FileID: 1, FileRef: "f-1", IsEncrypted: false}}
	p := &Pipeline{DB: db, KeyManager: &fakeKeyManager{}}
	if _, err := p.Run(context.Background(), "cs_acme", "acme", "f-1"); err == nil {
		t.Fatal("expected error for unencrypted reference")
	}
}
