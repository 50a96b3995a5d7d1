package handler

import (
	"net/http"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/ctxkeys"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

// DeviceHandler lets dashboard users register devices and manage their
// API keys. Routes sit behind middleware.UserAuth.
type DeviceHandler struct {
	deviceService *service.DeviceService
}

func NewDeviceHandler(deviceService *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

type registerDeviceResponse struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	KeyID    string `json:"key_id"`
	APIKey   string `json:"api_key"`
	Message  string `json:"message"`
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.RegisterDeviceInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	device, key, err := h.deviceService.Register(r.Context(), user, in)
	if err != nil {
		writeError(w, r, err, "register device")
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, registerDeviceResponse{
		ID:       device.ID,
		DeviceID: device.DeviceID,
		KeyID:    key.Credential.ID,
		APIKey:   key.APIKey,
		Message:  "Device registered. Store the API key now, it will not be shown again.",
	})
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.deviceService.List(r.Context(), ctxkeys.User(r.Context()))
	if err != nil {
		writeError(w, r, err, "list devices")
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string][]*model.Device{"devices": devices})
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, err := h.deviceService.Get(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "get device")
		return
	}
	apierr.WriteJSON(w, http.StatusOK, device)
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.deviceService.Delete(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type issueKeyRequest struct {
	Name string `json:"name"`
}

type issueKeyResponse struct {
	Key    *model.DeviceCredential `json:"key"`
	APIKey string                  `json:"api_key"`
}

// IssueKey adds a credential for rotation. The body is optional.
func (h *DeviceHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := decodeJSON(w, r, &req); err != nil && err != errEmptyBody {
		writeDecodeError(w, err)
		return
	}

	key, err := h.deviceService.IssueKey(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err, "issue api key")
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, issueKeyResponse{Key: key.Credential, APIKey: key.APIKey})
}

func (h *DeviceHandler) Keys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.deviceService.Keys(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "list api keys")
		return
	}

	now := time.Now()
	out := make([]credentialResponse, len(keys))
	for i, k := range keys {
		out[i] = credentialResponse{DeviceCredential: k, Usable: k.Usable(now)}
	}
	apierr.WriteJSON(w, http.StatusOK, map[string][]credentialResponse{"keys": out})
}

// credentialResponse adds whether the key would authenticate right now.
type credentialResponse struct {
	*model.DeviceCredential
	Usable bool `json:"usable"`
}

func (h *DeviceHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	err := h.deviceService.RevokeKey(r.Context(), ctxkeys.User(r.Context()), r.PathValue("id"), r.PathValue("keyID"))
	if err != nil {
		writeError(w, r, err, "revoke api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
