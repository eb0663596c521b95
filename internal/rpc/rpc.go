// Package rpc specifies the call shapes of the core's external
// collaborators: the session manager, the key manager, the text extractor
// (Tika), and the full-text indexer. Only the shapes are specified here —
// the services themselves are out of scope (spec.md §1).
package rpc

import "context"

// SessionInfo is what the core needs to know about a validated session.
type SessionInfo struct {
	CustomerCode string
	CustomerID   string
	UserID       string
	UserName     string
}

// SessionClient resolves a session token. Reads are idempotent and may be
// retried locally (spec.md §7 "Propagation policy").
type SessionClient interface {
	Resolve(ctx context.Context, sessionToken string) (SessionInfo, error)
}

// KeyManagerClient fetches the symmetric key for a customer. Reads are
// idempotent and may be retried locally.
type KeyManagerClient interface {
	CustomerKey(ctx context.Context, customerCode string) ([]byte, error)
}

// TikaResult is the outcome of full-text/metadata extraction on one file.
type TikaResult struct {
	MimeType string
	FullText string
	Metadata map[string]string
}

// TextExtractor wraps the Tika RPC. Never retried transparently: a failure
// here enters the upload pipeline's rollback path.
type TextExtractor interface {
	Parse(ctx context.Context, raw []byte) (TikaResult, error)
}

// Indexer wraps the document server's full-text index. Never retried
// transparently.
type Indexer interface {
	IndexDocument(ctx context.Context, fileName, fileRef, rawText string) error
	DeleteDocument(ctx context.Context, fileRef string) error
}
