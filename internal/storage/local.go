package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
)

const (
	// Same-origin routes served by the storage handler. URLs returned by
	// LocalStorage are relative to these; the HTTP layer makes them absolute.
	UploadRoute   = "/api/storage/upload/"
	FilesRoute    = "/api/storage/files/"
	DownloadRoute = "/api/storage/download/"

	metaSuffix = ".meta"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrTooLarge    = errors.New("object exceeds size limit")
	ErrUploadToken = errors.New("invalid or expired upload token")
)

// Metadata is the JSON sidecar stored next to each local object.
type Metadata struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LocalStorage keeps objects on the local filesystem and serves them
// through the application itself. Upload URLs carry a signed token with
// the same expiry semantics as a presigned S3 URL.
type LocalStorage struct {
	basePath string
	secret   []byte
	now      func() time.Time
}

func NewLocalStorage(basePath, secret string) (*LocalStorage, error) {
	if secret == "" {
		return nil, errors.New("local storage requires a signing secret")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", abs, err)
	}

	return &LocalStorage{basePath: abs, secret: []byte(secret), now: time.Now}, nil
}

func (s *LocalStorage) Key(deviceID, eventID, ext string) string {
	return PhotoKey(s.now(), deviceID, eventID, ext)
}

func (s *LocalStorage) UploadURL(ctx context.Context, key string, expiresIn time.Duration, contentType string) (string, error) {
	full, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("%w: create directory for %q: %w", ErrStorage, key, err)
	}

	token, err := s.signUploadToken(key, contentType, expiresIn)
	if err != nil {
		return "", fmt.Errorf("%w: sign upload token: %w", ErrStorage, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("local", "presign_put", "success").Inc()
	return UploadRoute + key + "?token=" + token, nil
}

func (s *LocalStorage) DownloadURL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return FilesRoute + key, nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	full, err := s.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %q: %w", ErrStorage, key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes the object and its sidecar. It reports false when
// nothing was stored under key.
func (s *LocalStorage) Delete(ctx context.Context, key string) (bool, error) {
	full, err := s.path(key)
	if err != nil {
		return false, err
	}

	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		metrics.StorageOperationsTotal.WithLabelValues("local", "delete", "error").Inc()
		return false, fmt.Errorf("%w: delete %q: %w", ErrStorage, key, err)
	}
	if err := os.Remove(full + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, fmt.Errorf("%w: delete metadata for %q: %w", ErrStorage, key, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("local", "delete", "success").Inc()
	return true, nil
}

// Save streams r to key, replacing any previous object atomically.
// Pattern: temp file -> write + SHA-256 -> fsync -> rename, then sidecar.
func (s *LocalStorage) Save(key string, r io.Reader, contentType string, maxSize int64) (*Metadata, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrStorage, err)
	}

	f, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrStorage, err)
	}
	tmpPath := f.Name()
	fail := func(err error) (*Metadata, error) {
		f.Close()
		os.Remove(tmpPath)
		metrics.StorageOperationsTotal.WithLabelValues("local", "put", "error").Inc()
		return nil, err
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), io.LimitReader(r, maxSize+1))
	if err != nil {
		return fail(fmt.Errorf("%w: write %q: %w", ErrStorage, key, err))
	}
	if size > maxSize {
		return fail(ErrTooLarge)
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("%w: fsync %q: %w", ErrStorage, key, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: close %q: %w", ErrStorage, key, err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: rename %q: %w", ErrStorage, key, err)
	}

	meta := &Metadata{
		ContentType: contentType,
		Size:        size,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:  s.now().UTC(),
	}
	if err := writeMetadata(full+metaSuffix, meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	metrics.StorageOperationsTotal.WithLabelValues("local", "put", "success").Inc()
	return meta, nil
}

// Open returns the stored object and its metadata. A missing sidecar
// yields default metadata.
func (s *LocalStorage) Open(key string) (*os.File, *Metadata, error) {
	full, err := s.path(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %q: %w", ErrStorage, key, err)
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}

	meta, err := readMetadata(full + metaSuffix)
	if err != nil {
		meta = &Metadata{ContentType: "application/octet-stream", Size: info.Size(), UploadedAt: info.ModTime()}
	}
	return f, meta, nil
}

// path maps a validated key onto the base directory.
func (s *LocalStorage) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func writeMetadata(path string, meta *Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}
