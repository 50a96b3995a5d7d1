package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/service"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

// maxJSONBody bounds request bodies; a full 1000-event batch is far below it.
const maxJSONBody = 2 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

// writeDecodeError answers a body that could not be parsed.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierr.FileTooLarge(w, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
		return
	}
	apierr.BadRequest(w, "Invalid JSON body: "+err.Error())
}

// writeError maps a service error onto the API error format. Unknown
// errors are logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidAPIKey):
		apierr.Unauthorized(w, "Invalid API key")
	case errors.Is(err, service.ErrInvalidCredentials):
		apierr.Unauthorized(w, "Invalid email or password")
	case errors.Is(err, service.ErrInvalidToken):
		apierr.Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		apierr.Forbidden(w, "Current password is incorrect")

	case errors.Is(err, service.ErrValidation):
		apierr.ValidationError(w, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "))

	case errors.Is(err, service.ErrEventNotFound):
		apierr.NotFound(w, "Event not found")
	case errors.Is(err, service.ErrDeviceNotFound):
		apierr.NotFound(w, "Device not found")
	case errors.Is(err, service.ErrCredentialNotFound):
		apierr.NotFound(w, "API key not found")
	case errors.Is(err, service.ErrStatsUnavailable):
		apierr.NotFound(w, "Statistics have not been computed yet")

	case errors.Is(err, service.ErrEventForbidden):
		apierr.Forbidden(w, "Event does not belong to this device")
	case errors.Is(err, service.ErrDeviceForbidden):
		apierr.Forbidden(w, "Not allowed to manage this device")
	case errors.Is(err, service.ErrRegistrationDisabled):
		apierr.Forbidden(w, "Registration is disabled")

	case errors.Is(err, service.ErrDeviceAlreadyExists):
		apierr.Conflict(w, "Device already registered")
	case errors.Is(err, service.ErrEmailAlreadyExists):
		apierr.Conflict(w, "Email already registered")
	case errors.Is(err, service.ErrPhotoNotUploaded):
		apierr.Conflict(w, "Photo has not been uploaded yet")

	case errors.Is(err, storage.ErrStorage):
		slog.Error(op+" failed", "error", err, "path", r.URL.Path)
		w.Header().Set("Retry-After", "5")
		apierr.Unavailable(w, "Storage backend unavailable, retry later")

	default:
		slog.Error(op+" failed", "error", err, "path", r.URL.Path)
		apierr.InternalError(w, "Internal server error")
	}
}

// absoluteURL turns a same-origin path into a URL clients can use
// directly. Already absolute URLs are returned unchanged.
func absoluteURL(r *http.Request, u string) string {
	if !strings.HasPrefix(u, "/") {
		return u
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + u
}

// wireTime accepts RFC 3339 timestamps and, for older device firmware,
// timestamps without a zone which are taken as UTC.
type wireTime time.Time

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = wireTime(parsed.UTC())
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*t = wireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
