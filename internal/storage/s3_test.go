package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// newTestS3 points an S3 client at a fake endpoint. Retries are disabled
// so error paths resolve on the first response.
func newTestS3(t *testing.T, handler http.HandlerFunc) *S3Storage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:           "eu-central-1",
		Credentials:      credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		BaseEndpoint:     aws.String(srv.URL),
		UsePathStyle:     true,
		RetryMaxAttempts: 1,
	})
	return newS3Storage(client, "photos-bucket", srv.URL+"/photos-bucket")
}

func TestS3PublicURL(t *testing.T) {
	tests := []struct {
		cfg  S3Config
		want string
	}{
		{S3Config{Bucket: "b", Region: "us-west-2"}, "https://b.s3.us-west-2.amazonaws.com"},
		{S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b"},
		{S3Config{Bucket: "b", Endpoint: "http://minio:9000", PublicURL: "https://cdn.example.com"}, "https://cdn.example.com"},
	}
	for _, tt := range tests {
		if got := s3PublicURL(tt.cfg); got != tt.want {
			t.Errorf("s3PublicURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}

func TestS3Storage_UploadURL(t *testing.T) {
	var calls atomic.Int32
	s := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	key := "photos/dev/2025/06/evt.jpg"

	raw, err := s.UploadURL(context.Background(), key, time.Hour, PhotoContentType)
	if err != nil {
		t.Fatalf("UploadURL() error: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse presigned url: %v", err)
	}
	if !strings.HasSuffix(u.Path, "/photos-bucket/"+key) {
		t.Errorf("presigned path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Expires") != "3600" {
		t.Errorf("X-Amz-Expires = %q, want 3600", q.Get("X-Amz-Expires"))
	}
	if !strings.Contains(q.Get("X-Amz-SignedHeaders"), "content-type") {
		t.Errorf("content-type not signed: %q", q.Get("X-Amz-SignedHeaders"))
	}
	if calls.Load() != 0 {
		t.Error("presigning must not contact the backend")
	}

	if _, err := s.UploadURL(context.Background(), "../x", time.Hour, PhotoContentType); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("UploadURL(traversal) error = %v, want ErrInvalidKey", err)
	}
}

func TestS3Storage_DownloadURL(t *testing.T) {
	s := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {})
	s.publicURL = "https://photos-bucket.s3.eu-central-1.amazonaws.com"

	got, err := s.DownloadURL(context.Background(), "photos/d/2025/06/e.jpg")
	if err != nil {
		t.Fatalf("DownloadURL() error: %v", err)
	}
	if got != "https://photos-bucket.s3.eu-central-1.amazonaws.com/photos/d/2025/06/e.jpg" {
		t.Errorf("DownloadURL() = %q", got)
	}
}

func TestS3Storage_ExistsAndDelete(t *testing.T) {
	s := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && strings.HasSuffix(r.URL.Path, "/present.jpg"):
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "photos/d/present.jpg")
	if err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v; want true", ok, err)
	}
	ok, err = s.Exists(ctx, "photos/d/missing.jpg")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v; want false", ok, err)
	}

	deleted, err := s.Delete(ctx, "photos/d/present.jpg")
	if err != nil || !deleted {
		t.Errorf("Delete() = %v, %v; want true", deleted, err)
	}
}

func TestS3Storage_FailuresAreStorageErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	for range 5 {
		if _, err := s.Exists(ctx, "photos/d/x.jpg"); !errors.Is(err, ErrStorage) {
			t.Fatalf("Exists() error = %v, want ErrStorage", err)
		}
	}
	before := calls.Load()

	// Breaker is open now: calls fail fast without reaching the backend.
	if _, err := s.Delete(ctx, "photos/d/x.jpg"); !errors.Is(err, ErrStorage) {
		t.Fatalf("Delete() with open breaker error = %v, want ErrStorage", err)
	}
	if calls.Load() != before {
		t.Error("open breaker still forwarded the request")
	}
}
