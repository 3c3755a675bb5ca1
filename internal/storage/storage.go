// package storage stores uploaded files (the object storage half of the backend)
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/shared"
)

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	URL         string
	ModTime     time.Time
}

// Store is a flat key/value object store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Object, error)
	Open(key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// DiskStore keeps objects as files below a root directory.
type DiskStore struct {
	root     string
	baseURL  string
	maxBytes int64
}

// NewDiskStore creates the root directory if needed. Objects are addressed at
// baseURL + "/" + key; maxBytes <= 0 disables the size limit.
func NewDiskStore(root, baseURL string, maxBytes int64) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage path is required", shared.ErrMissingConfig)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// ObjectKey builds a fresh key for an upload, keeping the file's extension.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if shared.Slugify(strings.TrimPrefix(ext, ".")) != strings.TrimPrefix(ext, ".") {
		ext = ""
	}
	return path.Join(prefix, time.Now().UTC().Format("2006/01"), shared.GenerateID()+ext)
}

// cleanKey rejects keys that are empty, absolute or escape the root.
func cleanKey(key string) (string, error) {
	c := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if c == "." || c == ".." || strings.HasPrefix(c, "../") || strings.HasPrefix(c, "/") {
		return "", fmt.Errorf("%w: invalid object key %q", shared.ErrInvalidInput, key)
	}
	return c, nil
}

func (s *DiskStore) path(key string) (string, string, error) {
	c, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return c, filepath.Join(s.root, filepath.FromSlash(c)), nil
}

// Put writes r to key, replacing any existing object.
//
// The data is written to a temporary file first; when it exceeds the size
// limit or the copy fails nothing is left behind.
func (s *DiskStore) Put(ctx context.Context, key string, r io.Reader) (Object, error) {
	key, dest, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Object{}, fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)

	src := io.Reader(br)
	if s.maxBytes > 0 {
		src = io.LimitReader(br, s.maxBytes+1)
	}

	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return Object{}, fmt.Errorf("%w: file exceeds %d bytes", shared.ErrInvalidInput, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Object{}, fmt.Errorf("failed to store object %s: %w", key, err)
	}

	return Object{
		Key:         key,
		Size:        n,
		ContentType: contentType,
		URL:         s.URL(key),
		ModTime:     time.Now(),
	}, nil
}

// Open returns a reader for key or [shared.ErrNotFound].
func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	_, p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return f, nil
}

// Delete removes key. Deleting a missing object is not an error.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	_, p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL for key.
func (s *DiskStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// FS exposes the stored objects for serving over HTTP.
func (s *DiskStore) FS() fs.FS {
	return os.DirFS(s.root)
}

// MaxBytes returns the upload limit, 0 when unlimited.
func (s *DiskStore) MaxBytes() int64 { return s.maxBytes }
