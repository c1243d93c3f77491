package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/xwines/xwines/internal/storage"
)

func TestPutPrefixesKeyAndDefaultsContentType(t *testing.T) {
	fake := newFakeAPI()
	bucket := mustBucket(t, fake, "xwines/prod", 0)

	info, err := bucket.Put(context.Background(), "/datasets/X-Wines.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	stored, ok := fake.objects["xwines/prod/datasets/X-Wines.parquet"]
	if !ok {
		t.Fatalf("objects = %#v", fake.objects)
	}
	if stored.contentType != storage.ContentTypeParquet {
		t.Fatalf("content type = %q", stored.contentType)
	}
	if info.Key != "datasets/X-Wines.parquet" || info.Size != 3 || info.ETag != "etag-1" {
		t.Fatalf("Put() = %#v", info)
	}
}

func TestKeysMustBePlainComponents(t *testing.T) {
	bucket := mustBucket(t, newFakeAPI(), "", 0)
	for _, key := range []string{"../secrets.txt", "datasets/../x.csv", "", "datasets//x.csv", ".hidden"} {
		if _, err := bucket.Put(context.Background(), key, strings.NewReader("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
	if _, err := newBucket(newFakeAPI(), newFakeAPI().read, "b", "../up", 0); err == nil {
		t.Fatal("newBucket() with traversal prefix expected error")
	}
}

func TestGetReturnsStoredDataset(t *testing.T) {
	fake := newFakeAPI()
	bucket := mustBucket(t, fake, "datasets", 0)
	payload := "WineID,WineName\n100,Crasto Douro Tinto\n"
	if _, err := bucket.Put(context.Background(), "X-Wines.csv", strings.NewReader(payload), int64(len(payload)), storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reader, err := bucket.Get(context.Background(), "X-Wines.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(body) != payload {
		t.Fatalf("Get() body = %q", body)
	}

	info, err := bucket.Stat(context.Background(), "X-Wines.csv")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Key != "X-Wines.csv" || info.ContentType != storage.ContentTypeCSV || info.Size != int64(len(payload)) {
		t.Fatalf("Stat() = %#v", info)
	}
}

func TestMissingObjectsMapToNotFound(t *testing.T) {
	bucket := mustBucket(t, newFakeAPI(), "", 0)
	if _, err := bucket.Get(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := bucket.Stat(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}
}

func TestSizeLimit(t *testing.T) {
	fake := newFakeAPI()
	bucket := mustBucket(t, fake, "", 4)
	if _, err := bucket.Put(context.Background(), "big.csv", strings.NewReader("12345"), 5, storage.PutOptions{}); !errors.Is(err, storage.ErrObjectTooLarge) {
		t.Fatalf("Put() error = %v", err)
	}
	fake.objects["big.csv"] = fakeObject{body: []byte("12345"), contentType: storage.ContentTypeCSV}
	if _, err := bucket.Get(context.Background(), "big.csv"); !errors.Is(err, storage.ErrObjectTooLarge) {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := newFakeAPI()
	bucket := mustBucket(t, fake, "", 0)

	if err := bucket.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucket != "bucket-a" || fake.madeRegion != "us-east-1" {
		t.Fatalf("MakeBucket() = %q/%q", fake.madeBucket, fake.madeRegion)
	}

	fake.madeBucket = ""
	fake.bucketExists = true
	if err := bucket.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucket != "" {
		t.Fatal("MakeBucket() called for an existing bucket")
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		useSSL   bool
		endpoint string
		secure   bool
	}{
		{"https://minio.example.com", false, "minio.example.com", true},
		{"http://localhost:9000", true, "localhost:9000", true},
		{"localhost:9000", false, "localhost:9000", false},
	}
	for _, tc := range cases {
		endpoint, secure, err := parseEndpoint(tc.raw, tc.useSSL)
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tc.raw, err)
		}
		if endpoint != tc.endpoint || secure != tc.secure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tc.raw, endpoint, secure)
		}
	}
	for _, raw := range []string{"", "ftp://host", "https://"} {
		if _, _, err := parseEndpoint(raw, false); err == nil {
			t.Fatalf("parseEndpoint(%q) expected error", raw)
		}
	}
}

func TestMapMinioErr(t *testing.T) {
	if err := mapMinioErr(minio.ErrorResponse{Code: "NoSuchKey"}); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("mapMinioErr(NoSuchKey) = %v", err)
	}
	if err := mapMinioErr(minio.ErrorResponse{Code: "AccessDenied"}); errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("mapMinioErr(AccessDenied) = %v", err)
	}
}

func mustBucket(t *testing.T, fake *fakeAPI, prefix string, maxBytes int64) *Bucket {
	t.Helper()
	bucket, err := newBucket(fake, fake.read, "bucket-a", prefix, maxBytes)
	if err != nil {
		t.Fatalf("newBucket() error = %v", err)
	}
	return bucket
}

type fakeObject struct {
	body        []byte
	contentType string
}

type fakeAPI struct {
	objects      map[string]fakeObject
	bucketExists bool
	madeBucket   string
	madeRegion   string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string]fakeObject{}}
}

func (f *fakeAPI) PutObject(_ context.Context, _, key string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[key] = fakeObject{body: body, contentType: opts.ContentType}
	return minio.UploadInfo{Key: key, Size: int64(len(body)), ETag: "etag-1", LastModified: time.Now().UTC()}, nil
}

func (f *fakeAPI) StatObject(_ context.Context, _, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	obj, ok := f.objects[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(obj.body)), ContentType: obj.contentType}, nil
}

func (f *fakeAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.madeBucket = bucket
	f.madeRegion = opts.Region
	return nil
}

func (f *fakeAPI) read(_ context.Context, _, key string) (io.ReadCloser, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	return io.NopCloser(bytes.NewReader(obj.body)), nil
}
