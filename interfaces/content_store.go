package interfaces

import "context"

// StoredObject is the result of persisting attachment bytes into the
// content store.
type StoredObject struct {
	Path string
	Hash string
	Size int64
}

// ContentStore is content-addressed storage for raw report attachments.
// Writes are idempotent per hash: identical bytes may be written
// concurrently and the last writer wins byte-identically.
type ContentStore interface {
	// Save computes the content digest, derives a date-sharded path and
	// writes the bytes, returning the locator triple.
	Save(ctx context.Context, filename string, data []byte) (*StoredObject, error)
	// Read returns the stored bytes, or reportstack_errors.ErrNotFound
	// if the path does not resolve.
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}
