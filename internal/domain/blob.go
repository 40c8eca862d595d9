package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage. PutMultipart streams large
// payloads in parts instead of buffering them whole.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver snapshots terminal (resolved or cancelled) markets to cold
// storage so settled history survives database pruning.
type Archiver interface {
	ArchiveMarket(ctx context.Context, marketID uint64) (string, error)
	ArchiveTerminal(ctx context.Context) (int64, error)
	ExportTerminal(ctx context.Context) (string, error)
}
