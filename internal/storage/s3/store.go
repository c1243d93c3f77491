// Package s3 keeps dataset files in an S3-compatible bucket through
// minio-go.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/xwines/xwines/internal/storage"
)

// DefaultMaxObjectBytes bounds the dataset files Get will open. The importer
// buffers a whole file before decoding it.
const DefaultMaxObjectBytes int64 = 512 << 20

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
	MaxObjectBytes   int64
}

// objectAPI is the part of *minio.Client a Bucket calls. Reads go through
// readFunc because *minio.Object cannot be constructed outside minio-go.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

type readFunc func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// Bucket stores dataset files under an optional key prefix.
type Bucket struct {
	api      objectAPI
	read     readFunc
	name     string
	prefix   string
	maxBytes int64
}

func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	read := func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	}

	b, err := newBucket(mc, read, cfg.Bucket, cfg.Prefix, cfg.MaxObjectBytes)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := b.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newBucket(api objectAPI, read readFunc, name, prefix string, maxBytes int64) (*Bucket, error) {
	if api == nil || read == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		if err := storage.ValidateKey(prefix); err != nil {
			return nil, fmt.Errorf("invalid prefix: %w", err)
		}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	return &Bucket{api: api, read: read, name: name, prefix: prefix, maxBytes: maxBytes}, nil
}

func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if size > b.maxBytes {
		return storage.ObjectInfo{}, fmt.Errorf("put %s: %w", key, storage.ErrObjectTooLarge)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeFor(key)
	}
	uploaded, err := b.api.PutObject(ctx, b.name, objectKey, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put %s: %w", key, mapMinioErr(err))
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         uploaded.Size,
		ContentType:  contentType,
		ETag:         uploaded.ETag,
		LastModified: uploaded.LastModified,
	}, nil
}

// Get opens a dataset file after checking that it exists and fits the size
// limit.
func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	info, err := b.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if info.Size > b.maxBytes {
		return nil, fmt.Errorf("get %s (%d bytes): %w", key, info.Size, storage.ErrObjectTooLarge)
	}
	objectKey, err := b.objectKey(key)
	if err != nil {
		return nil, err
	}
	body, err := b.read(ctx, b.name, objectKey)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, mapMinioErr(err))
	}
	return body, nil
}

// Stat reports keys relative to the prefix, the same way callers name them.
func (b *Bucket) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	obj, err := b.api.StatObject(ctx, b.name, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, mapMinioErr(err))
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
	}, nil
}

func (b *Bucket) ensureBucket(ctx context.Context, region string) error {
	exists, err := b.api.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, mapMinioErr(err))
	}
	if exists {
		return nil
	}
	if err := b.api.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, mapMinioErr(err))
	}
	return nil
}

func (b *Bucket) objectKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	if b.prefix == "" {
		return key, nil
	}
	return path.Join(b.prefix, key), nil
}

// parseEndpoint accepts either host:port or a URL; an https URL forces TLS.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	switch {
	case parsed.Host == "":
		return "", false, fmt.Errorf("s3 endpoint host is required")
	case parsed.Scheme == "https":
		return parsed.Host, true, nil
	case parsed.Scheme == "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("unsupported s3 endpoint scheme %q", parsed.Scheme)
	}
}

func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)
	}
	return err
}
