package handler

import (
	"net/http"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/ctxkeys"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

// PhotoHandler coordinates the two-step photo upload for devices.
type PhotoHandler struct {
	photoService *service.PhotoService
}

func NewPhotoHandler(photoService *service.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

type uploadURLResponse struct {
	EventID   string `json:"event_id"`
	UploadURL string `json:"upload_url"`
	PhotoKey  string `json:"photo_key"`
	ExpiresIn int    `json:"expires_in"`
}

// RequestUploadURL issues an upload handle for the event in the path.
func (h *PhotoHandler) RequestUploadURL(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())

	handle, err := h.photoService.RequestUpload(r.Context(), device, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "request photo upload")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, uploadURLResponse{
		EventID:   handle.EventID,
		UploadURL: absoluteURL(r, handle.URL),
		PhotoKey:  handle.Key,
		ExpiresIn: int(handle.ExpiresIn.Seconds()),
	})
}

type confirmRequest struct {
	PhotoKey string `json:"photo_key"`
}

// ConfirmUpload records the uploaded photo on the event. The key comes
// from ?photo_key= or a JSON body.
func (h *PhotoHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	device := ctxkeys.Device(r.Context())

	key := r.URL.Query().Get("photo_key")
	if key == "" {
		var req confirmRequest
		if err := decodeJSON(w, r, &req); err != nil && err != errEmptyBody {
			writeDecodeError(w, err)
			return
		}
		key = req.PhotoKey
	}

	url, err := h.photoService.ConfirmUpload(r.Context(), device, r.PathValue("id"), key)
	if err != nil {
		writeError(w, r, err, "confirm photo upload")
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Photo URL updated",
		"photo_url": absoluteURL(r, url),
	})
}
