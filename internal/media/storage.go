// Package media stores uploaded review images and screens them with
// SafeSearch before they become public.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/tastetrail/backend/internal/logging"
)

// PendingPrefix marks objects that have not passed moderation yet.
const PendingPrefix = "pending/"

var ErrObjectNotFound = errors.New("object not found")

type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Metadata(ctx context.Context, key string) (map[string]string, error)
	// Promote moves from to to, marks it approved and returns its public URL.
	Promote(ctx context.Context, from, to string) (string, error)
	URL(key string) string
}

// LocalStorage keeps objects under a directory served at baseURL.
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ string, _ map[string]string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return f.Close()
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Metadata is not tracked on disk.
func (s *LocalStorage) Metadata(ctx context.Context, key string) (map[string]string, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrObjectNotFound
	}
	return map[string]string{}, nil
}

func (s *LocalStorage) Promote(_ context.Context, from, to string) (string, error) {
	src, err := s.path(from)
	if err != nil {
		return "", err
	}
	dst, err := s.path(to)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrObjectNotFound
		}
		return "", err
	}
	return s.URL(to), nil
}

func (s *LocalStorage) URL(key string) string {
	return s.baseURL + "/" + key
}

// GCSStorage keeps objects in a Cloud Storage bucket.
type GCSStorage struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStorage uses Application Default Credentials. An empty baseURL
// serves objects from storage.googleapis.com.
func NewGCSStorage(ctx context.Context, bucket, baseURL string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStorage{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Bucket() string {
	return s.bucket
}

func (s *GCSStorage) Put(ctx context.Context, key string, r io.Reader, contentType string, metadata map[string]string) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return w.Close()
}

func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (s *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *GCSStorage) Metadata(ctx context.Context, key string) (map[string]string, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("object attrs: %w", err)
	}
	return attrs.Metadata, nil
}

// Promote copies from to to and deletes from. The source may not be
// readable immediately after upload, so attrs are retried briefly.
func (s *GCSStorage) Promote(ctx context.Context, from, to string) (string, error) {
	b := s.client.Bucket(s.bucket)
	src := b.Object(from)
	dst := b.Object(to)

	var attrs *storage.ObjectAttrs
	var err error
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		attrs, err = src.Attrs(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrObjectNotExist) && attempt < maxRetries-1 {
			backoff := time.Duration(attempt+1) * 500 * time.Millisecond
			logging.Component("media").Debug().Str("key", from).Dur("backoff", backoff).Msg("object not visible yet, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("source attrs: %w", err)
	}

	md := map[string]string{}
	for k, v := range attrs.Metadata {
		md[k] = v
	}
	md["moderation"] = "approved"

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return "", fmt.Errorf("copy: %w", err)
	}
	if _, err := dst.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: md}); err != nil {
		return "", fmt.Errorf("update metadata: %w", err)
	}
	if err := src.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("delete pending: %w", err)
	}
	return s.URL(to), nil
}

func (s *GCSStorage) URL(key string) string {
	return s.baseURL + "/" + key
}
