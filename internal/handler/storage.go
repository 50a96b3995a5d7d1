package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/storage"
	"github.com/rushroster/rushroster-cloud/internal/validation"
)

// StorageHandler serves uploads and downloads for the local storage
// backend. It is only routed when photos are stored on disk.
type StorageHandler struct {
	local   *storage.LocalStorage
	maxSize int64
}

func NewStorageHandler(local *storage.LocalStorage, maxSize int64) *StorageHandler {
	return &StorageHandler{local: local, maxSize: maxSize}
}

// Upload accepts the photo bytes for a signed upload URL. The body is
// either the raw image or a multipart form with a "file" field.
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	issuedType, err := h.local.VerifyUploadToken(key, r.URL.Query().Get("token"))
	if err != nil {
		apierr.Forbidden(w, "Invalid or expired upload URL")
		return
	}

	// Allow some slack for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+64<<10)

	body, err := uploadBody(r)
	if err != nil {
		apierr.BadRequest(w, err.Error())
		return
	}
	defer body.Close()

	detected, content, err := validation.SniffImage(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierr.FileTooLarge(w, "Photo exceeds size limit")
			return
		}
		apierr.ValidationError(w, err.Error())
		return
	}
	if issuedType != "" && detected != issuedType {
		apierr.ValidationError(w, fmt.Sprintf("content type %s does not match upload URL (%s)", detected, issuedType))
		return
	}

	meta, err := h.local.Save(key, content, detected, h.maxSize)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, storage.ErrTooLarge), errors.As(err, &maxErr):
			apierr.FileTooLarge(w, "Photo exceeds size limit")
		case errors.Is(err, storage.ErrInvalidKey):
			apierr.BadRequest(w, "Invalid object key")
		default:
			writeError(w, r, err, "store upload")
		}
		return
	}

	slog.Info("photo stored", "key", key, "size", meta.Size, "content_type", meta.ContentType)
	w.Header().Set("ETag", strconv.Quote(meta.SHA256))
	w.WriteHeader(http.StatusOK)
}

// uploadBody returns the file part of a multipart request or the raw body.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, nil
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, errors.New("multipart body has no file field")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

// Serve streams a stored object with its recorded content type.
func (h *StorageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	f, meta, err := h.local.Open(key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
			apierr.NotFound(w, "File not found")
		default:
			writeError(w, r, err, "serve file")
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if meta.SHA256 != "" {
		w.Header().Set("ETag", strconv.Quote(meta.SHA256))
	}
	http.ServeContent(w, r, "", meta.UploadedAt, f)
}
