// Package storage abstracts the object store that dataset files are imported
// from and published to.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds the dataset size limit")
)

const (
	ContentTypeCSV     = "text/csv"
	ContentTypeParquet = "application/vnd.apache.parquet"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	// ContentType defaults to the type implied by the key's extension.
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// ContentTypeFor maps a dataset file name to the content type it is stored
// with. Unknown extensions get application/octet-stream.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return ContentTypeCSV
	case ".parquet", ".pq":
		return ContentTypeParquet
	default:
		return "application/octet-stream"
	}
}
