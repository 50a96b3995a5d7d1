package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	cfg "github.com/rushroster/rushroster-cloud/internal/config"
)

var (
	// ErrStorage marks failures of the storage backend itself. They are
	// transient from the caller's point of view.
	ErrStorage    = errors.New("storage backend unavailable")
	ErrInvalidKey = errors.New("invalid storage key")
)

const (
	PhotoContentType = "image/jpeg"
	PhotoExt         = "jpg"

	photoPrefix = "photos"
)

// Storage is the photo object store. Devices upload bytes directly to the
// URL returned by UploadURL; the application never proxies them for remote
// backends.
type Storage interface {
	// Key derives the object key for an event photo from the device and
	// event ids and the current date.
	Key(deviceID, eventID, ext string) string

	// UploadURL returns a URL that accepts a single upload of key until
	// expiresIn elapses.
	UploadURL(ctx context.Context, key string, expiresIn time.Duration, contentType string) (string, error)

	// DownloadURL returns the permanent URL stored on the event. It may be
	// relative for same-origin backends.
	DownloadURL(ctx context.Context, key string) (string, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key and reports whether an object was removed.
	Delete(ctx context.Context, key string) (bool, error)
}

// New builds the backend selected by STORAGE_PROVIDER.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageProvider {
	case cfg.StorageS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
			PublicURL: c.S3PublicURL,
		})
	case cfg.StorageLocal:
		slog.Info("initializing local storage", "path", c.StorageLocalPath)
		return NewLocalStorage(c.StorageLocalPath, c.JWTSecret)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", c.StorageProvider)
	}
}

// PhotoKey builds photos/{deviceID}/{YYYY}/{MM}/{eventID}.{ext}.
func PhotoKey(now time.Time, deviceID, eventID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = PhotoExt
	}
	now = now.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%s.%s", photoPrefix, deviceID, now.Year(), int(now.Month()), eventID, ext)
}

// DevicePrefix is the key prefix under which all of a device's photos live.
func DevicePrefix(deviceID string) string {
	return photoPrefix + "/" + deviceID + "/"
}

// ValidateKey rejects keys that are not clean relative object paths.
func ValidateKey(key string) error {
	switch {
	case key == "",
		strings.HasPrefix(key, "/"),
		strings.Contains(key, `\`),
		strings.ContainsRune(key, 0),
		path.Clean(key) != key,
		strings.HasSuffix(key, metaSuffix):
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
