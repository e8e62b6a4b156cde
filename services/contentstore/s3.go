package contentstore

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dmarcwatch/reportstack/config"
	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/services/contentstore/aws_client"
)

// ObjectStore keeps report bytes in an S3-compatible bucket, keyed by
// the same date-sharded path scheme as the filesystem backend. S3 PUTs
// are atomic per key, so concurrent writers of identical content are
// last-writer-wins with identical bytes.
type ObjectStore struct {
	client aws_client.S3Client
	bucket string
}

func NewObjectStore(cfg *config.StorageConfig) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required for the s3 backend")
	}
	return &ObjectStore{
		client: aws_client.NewS3Client(cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret),
		bucket: cfg.Bucket,
	}, nil
}

func (s *ObjectStore) Save(ctx context.Context, filename string, data []byte) (*interfaces.StoredObject, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStore.Save")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("filename", filename)

	obj := newStoredObject(filename, data)
	if err := s.client.Upload(ctx, s.bucket, obj.Path, data); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to upload report content")
	}

	span.SetTag("content_hash", obj.Hash)
	return obj, nil
}

func (s *ObjectStore) Read(ctx context.Context, path string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStore.Read")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("path", path)

	data, err := s.client.Download(ctx, s.bucket, path)
	if err != nil {
		if aws_client.IsNotFound(err) {
			return nil, errors.Wrap(reportstack_errors.ErrNotFound, path)
		}
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to download report content")
	}
	return data, nil
}

func (s *ObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	return s.client.Exists(ctx, s.bucket, path)
}
