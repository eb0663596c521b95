// Package download implements the reassembly half of the chunked encrypted
// file pipeline (C6): fetch every encrypted block, decrypt them across a
// bounded worker pool, and concatenate in part order. Grounded on
// merge_parts/parallel_decrypt/compute_pool_size in
// original_source/file-server/src/file_delegate.rs, reworked onto the
// teacher's errgroup-based ConcurrentMapFuncWithError shape (internal/concurrent).
package download

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/doka-one/doka-document-core/internal/concurrent"
	"github.com/doka-one/doka-document-core/internal/crypto"
	"github.com/doka-one/doka-document-core/internal/errs"
	"github.com/doka-one/doka-document-core/internal/model"
	"github.com/doka-one/doka-document-core/internal/rpc"
	"github.com/doka-one/doka-document-core/internal/storage"
)

// Pipeline reassembles one file's cleartext on demand.
type Pipeline struct {
	DB         storage.Database
	KeyManager rpc.KeyManagerClient

	// WorkerPoolOverride pins the decrypt pool size; 0 means
	// max(1, runtime.NumCPU()-1), per spec.md §5 concurrency model.
	WorkerPoolOverride int
}

// Result is the reassembled cleartext plus the reference it came from.
type Result struct {
	FileReference model.FileReference
	Content       []byte
}

// Run loads, decrypts, and reassembles one file.
func (p *Pipeline) Run(ctx context.Context, customerSchema, customerCode, fileRef string) (Result, error) {
	ref, err := p.DB.FileReferenceByRef(ctx, customerSchema, fileRef)
	if err != nil {
		return Result{}, err
	}
	if !ref.IsEncrypted {
		return Result{}, errs.NotFound(errs.CodeFileInfoNotFound, "file %q has no encrypted content", fileRef)
	}

	blocks, err := p.DB.EncryptedBlocks(ctx, customerSchema, ref.FileID)
	if err != nil {
		return Result{}, err
	}
	if len(blocks) == 0 {
		return Result{}, errs.NotFound(errs.CodeFileInfoNotFound, "file %q has no stored blocks", fileRef)
	}

	key, err := p.KeyManager.CustomerKey(ctx, customerCode)
	if err != nil {
		return Result{}, err
	}

	pool := concurrent.WorkerCount(runtime.NumCPU(), p.WorkerPoolOverride)
	cleartexts, err := concurrent.MapWithError(blocks, pool, func(b model.EncryptedBlock) ([]byte, error) {
		pt, err := crypto.DecryptBlock(key, b.PartData)
		if err != nil {
			return nil, errs.InternalTechnical(fmt.Errorf("decrypting part %d of %s: %w", b.PartNumber, fileRef, err))
		}
		return pt, nil
	})
	if err != nil {
		return Result{}, err
	}

	var out bytes.Buffer
	for _, pt := range cleartexts {
		out.Write(pt)
	}

	return Result{FileReference: ref, Content: out.Bytes()}, nil
}
