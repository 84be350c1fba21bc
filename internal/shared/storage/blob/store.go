package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates no blob exists at the requested key.
var ErrNotFound = errors.New("blob not found")

// Info describes a stored blob.
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store defines the contract for durable byte storage keyed by
// caller-generated paths. Put must be atomic-visible: a concurrent Get
// observes either the complete content or ErrNotFound, never a partial
// write. Delete is idempotent; deleting an absent key is not an error.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
}
