package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

// FileSystemStore keeps report bytes under a base directory. Writes go
// to a temp file in the target directory and are renamed into place, so
// readers never observe a partial write. Overwriting an existing path
// is harmless: identical hash implies identical content.
type FileSystemStore struct {
	basePath string
}

func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

func (s *FileSystemStore) Save(ctx context.Context, filename string, data []byte) (*interfaces.StoredObject, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "FileSystemStore.Save")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("filename", filename)

	obj := newStoredObject(filename, data)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(obj.Path))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create storage directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to write report content")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to move report content into place")
	}

	span.SetTag("content_hash", obj.Hash)
	return obj, nil
}

func (s *FileSystemStore) Read(ctx context.Context, path string) ([]byte, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "FileSystemStore.Read")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("path", path)

	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(reportstack_errors.ErrNotFound, path)
		}
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read %s", path))
	}
	return data, nil
}

func (s *FileSystemStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
