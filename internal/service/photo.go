package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

// UploadHandle tells a device where to upload an event photo.
type UploadHandle struct {
	EventID   string
	Key       string
	URL       string
	ExpiresIn time.Duration
}

// PhotoService coordinates the out-of-band photo upload: hand out an
// upload handle, then record the permanent URL once the device confirms.
type PhotoService struct {
	events       repository.EventRepository
	storage      storage.Storage
	uploadExpiry time.Duration
	verifyUpload bool
}

func NewPhotoService(events repository.EventRepository, store storage.Storage, uploadExpiry time.Duration, verifyUpload bool) *PhotoService {
	return &PhotoService{
		events:       events,
		storage:      store,
		uploadExpiry: uploadExpiry,
		verifyUpload: verifyUpload,
	}
}

// RequestUpload issues a fresh upload handle for an event the device owns.
// Repeated requests in the same calendar month target the same key.
func (s *PhotoService) RequestUpload(ctx context.Context, device *model.Device, eventID string) (*UploadHandle, error) {
	event, err := s.ownedEvent(ctx, device, eventID)
	if err != nil {
		return nil, err
	}

	key := s.storage.Key(device.ID, event.ID, storage.PhotoExt)
	url, err := s.storage.UploadURL(ctx, key, s.uploadExpiry, storage.PhotoContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload url: %w", err)
	}

	metrics.PhotoUploadsTotal.WithLabelValues("requested").Inc()
	slog.Debug("photo upload handle issued", "device_id", device.ID, "event_id", event.ID, "key", key)

	return &UploadHandle{
		EventID:   event.ID,
		Key:       key,
		URL:       url,
		ExpiresIn: s.uploadExpiry,
	}, nil
}

// ConfirmUpload stores the permanent URL for key on the event. A later
// confirmation replaces an earlier one.
func (s *PhotoService) ConfirmUpload(ctx context.Context, device *model.Device, eventID, key string) (string, error) {
	event, err := s.ownedEvent(ctx, device, eventID)
	if err != nil {
		return "", err
	}

	if key == "" {
		return "", validationError("photo_key is required")
	}
	if err := storage.ValidateKey(key); err != nil {
		return "", validationError("invalid photo_key")
	}
	if !strings.HasPrefix(key, storage.DevicePrefix(device.ID)) {
		return "", validationError("photo_key does not belong to this device")
	}

	if s.verifyUpload {
		exists, err := s.storage.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to verify upload: %w", err)
		}
		if !exists {
			return "", ErrPhotoNotUploaded
		}
	}

	url, err := s.storage.DownloadURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve photo url: %w", err)
	}

	if err := s.events.SetPhoto(ctx, event.ID, url, key); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("failed to store photo url: %w", err)
	}

	metrics.PhotoUploadsTotal.WithLabelValues("confirmed").Inc()
	slog.Info("photo confirmed", "device_id", device.ID, "event_id", event.ID)
	return url, nil
}

func (s *PhotoService) ownedEvent(ctx context.Context, device *model.Device, eventID string) (*model.SpeedEvent, error) {
	event, err := s.events.ByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event.DeviceID != device.ID {
		return nil, ErrEventForbidden
	}
	return event, nil
}
