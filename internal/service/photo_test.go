package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

func ingestOne(t *testing.T, env *testEnv, device *model.Device) string {
	t.Helper()
	in := ev(0, 31)
	in.HasPhoto = true
	res, err := env.ingest.Ingest(context.Background(), device, []EventInput{in})
	if err != nil || len(res.Created) != 1 {
		t.Fatalf("ingest: %v", err)
	}
	return res.Created[0].EventID
}

func TestPhotoService_RequestUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "o@example.com")
	device, _ := env.device(t, owner, "RR-001")
	other, _ := env.device(t, owner, "RR-002")
	eventID := ingestOne(t, env, device)

	handle, err := env.photos.RequestUpload(ctx, device, eventID)
	if err != nil {
		t.Fatalf("RequestUpload() error: %v", err)
	}
	wantKey := "photos/" + device.ID + "/2025/03/" + eventID + ".jpg"
	if handle.Key != wantKey {
		t.Errorf("handle key = %q, want %q", handle.Key, wantKey)
	}
	if handle.ExpiresIn != time.Hour || handle.EventID != eventID {
		t.Errorf("handle = %+v", handle)
	}
	if !strings.Contains(handle.URL, "expires=3600") || !strings.Contains(handle.URL, "ct=image/jpeg") {
		t.Errorf("handle url = %q", handle.URL)
	}

	again, err := env.photos.RequestUpload(ctx, device, eventID)
	if err != nil || again.Key != handle.Key {
		t.Errorf("second RequestUpload() key = %q, %v; want same key", again.Key, err)
	}

	if _, err := env.photos.RequestUpload(ctx, other, eventID); !errors.Is(err, ErrEventForbidden) {
		t.Errorf("RequestUpload(other device) error = %v, want ErrEventForbidden", err)
	}
	if _, err := env.photos.RequestUpload(ctx, device, uuid.New().String()); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("RequestUpload(unknown event) error = %v, want ErrEventNotFound", err)
	}

	env.storage.failUpload = true
	if _, err := env.photos.RequestUpload(ctx, device, eventID); !errors.Is(err, storage.ErrStorage) {
		t.Errorf("RequestUpload(storage down) error = %v, want ErrStorage", err)
	}
}

func TestPhotoService_ConfirmUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "o@example.com")
	device, _ := env.device(t, owner, "RR-001")
	other, _ := env.device(t, owner, "RR-002")
	eventID := ingestOne(t, env, device)

	handle, err := env.photos.RequestUpload(ctx, device, eventID)
	if err != nil {
		t.Fatal(err)
	}

	url, err := env.photos.ConfirmUpload(ctx, device, eventID, handle.Key)
	if err != nil {
		t.Fatalf("ConfirmUpload() error: %v", err)
	}
	if url != "https://cdn.test/"+handle.Key {
		t.Errorf("ConfirmUpload() url = %q", url)
	}
	event, _ := env.events.ByID(ctx, eventID)
	if event.PhotoURL == nil || *event.PhotoURL != url {
		t.Errorf("stored photo_url = %v, want %q", event.PhotoURL, url)
	}

	// A second confirmation with another key of the same device wins.
	second := storage.DevicePrefix(device.ID) + "2025/04/" + eventID + ".jpg"
	url2, err := env.photos.ConfirmUpload(ctx, device, eventID, second)
	if err != nil {
		t.Fatalf("ConfirmUpload() second error: %v", err)
	}
	event, _ = env.events.ByID(ctx, eventID)
	if *event.PhotoURL != url2 || url2 == url {
		t.Errorf("photo_url after reconfirm = %q, want %q", *event.PhotoURL, url2)
	}

	if _, err := env.photos.ConfirmUpload(ctx, other, eventID, handle.Key); !errors.Is(err, ErrEventForbidden) {
		t.Errorf("ConfirmUpload(other device) error = %v, want ErrEventForbidden", err)
	}
	if _, err := env.photos.ConfirmUpload(ctx, device, uuid.New().String(), handle.Key); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("ConfirmUpload(unknown event) error = %v, want ErrEventNotFound", err)
	}

	for name, key := range map[string]string{
		"empty":        "",
		"foreign":      storage.DevicePrefix(other.ID) + "2025/03/x.jpg",
		"traversal":    storage.DevicePrefix(device.ID) + "../" + other.ID + "/x.jpg",
		"outside tree": "avatars/x.jpg",
	} {
		if _, err := env.photos.ConfirmUpload(ctx, device, eventID, key); !errors.Is(err, ErrValidation) {
			t.Errorf("ConfirmUpload(%s key) error = %v, want ErrValidation", name, err)
		}
	}

	event, _ = env.events.ByID(ctx, eventID)
	if *event.PhotoURL != url2 {
		t.Error("rejected confirmation changed the stored photo_url")
	}
}

func TestPhotoService_VerifyUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	device, _ := env.device(t, env.user(t, "o@example.com"), "RR-001")
	eventID := ingestOne(t, env, device)

	strict := NewPhotoService(env.events, env.storage, time.Hour, true)
	handle, err := strict.RequestUpload(ctx, device, eventID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := strict.ConfirmUpload(ctx, device, eventID, handle.Key); !errors.Is(err, ErrPhotoNotUploaded) {
		t.Errorf("ConfirmUpload() before upload error = %v, want ErrPhotoNotUploaded", err)
	}

	env.storage.put(handle.Key)
	if _, err := strict.ConfirmUpload(ctx, device, eventID, handle.Key); err != nil {
		t.Errorf("ConfirmUpload() after upload error: %v", err)
	}

	env.storage.failExists = true
	if _, err := strict.ConfirmUpload(ctx, device, eventID, handle.Key); !errors.Is(err, storage.ErrStorage) {
		t.Errorf("ConfirmUpload() with storage down error = %v, want ErrStorage", err)
	}
}
