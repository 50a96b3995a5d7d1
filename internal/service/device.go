package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/storage"
	"github.com/rushroster/rushroster-cloud/internal/validation"
)

// DeviceService manages devices and their API keys on behalf of users.
type DeviceService struct {
	devices     repository.DeviceRepository
	credentials repository.CredentialRepository
	events      repository.EventRepository
	storage     storage.Storage
	now         func() time.Time
}

func NewDeviceService(
	devices repository.DeviceRepository,
	credentials repository.CredentialRepository,
	events repository.EventRepository,
	store storage.Storage,
) *DeviceService {
	return &DeviceService{
		devices:     devices,
		credentials: credentials,
		events:      events,
		storage:     store,
		now:         time.Now,
	}
}

type RegisterDeviceInput struct {
	DeviceID       string   `json:"device_id"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	StreetName     *string  `json:"street_name" validate:"omitempty,max=200"`
	SpeedLimit     *float64 `json:"speed_limit" validate:"omitempty,gt=0"`
	ShareCommunity bool     `json:"share_community"`
}

type IssuedKey struct {
	Credential *model.DeviceCredential
	// APIKey is the raw key. It is returned once and never stored.
	APIKey string
}

// Register creates a device owned by owner together with its first API key.
func (s *DeviceService) Register(ctx context.Context, owner *model.User, in RegisterDeviceInput) (*model.Device, *IssuedKey, error) {
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	if err := validation.ValidateDeviceID(in.DeviceID); err != nil {
		return nil, nil, validationError("%s", err)
	}
	if err := validation.Struct(&in); err != nil {
		return nil, nil, validationError("%s", err)
	}

	device := &model.Device{
		ID:             uuid.New().String(),
		DeviceID:       in.DeviceID,
		OwnerID:        owner.ID,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		StreetName:     in.StreetName,
		SpeedLimit:     in.SpeedLimit,
		IsActive:       true,
		ShareCommunity: in.ShareCommunity,
		RegisteredAt:   s.now().UTC(),
	}

	err := s.devices.Create(ctx, device)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateDevice) {
			return nil, nil, ErrDeviceAlreadyExists
		}
		return nil, nil, fmt.Errorf("failed to create device: %w", err)
	}

	key, err := s.issueKey(ctx, device, "Initial key")
	if err != nil {
		// Rollback: a device without a key is unusable
		if delErr := s.devices.Delete(ctx, device.ID); delErr != nil {
			slog.Error("failed to roll back device", "device_id", device.ID, "error", delErr)
		}
		return nil, nil, err
	}

	slog.Info("device registered", "device_id", device.ID, "external_id", device.DeviceID, "owner_id", owner.ID)
	return device, key, nil
}

// Get returns a device the user may manage.
func (s *DeviceService) Get(ctx context.Context, user *model.User, id string) (*model.Device, error) {
	device, err := s.devices.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if !user.CanManage(device) {
		return nil, ErrDeviceForbidden
	}
	return device, nil
}

func (s *DeviceService) List(ctx context.Context, user *model.User) ([]*model.Device, error) {
	devices, err := s.devices.ByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if devices == nil {
		devices = []*model.Device{}
	}
	return devices, nil
}

// IssueKey adds an API key to a device. Existing keys stay valid so the
// device can rotate without downtime.
func (s *DeviceService) IssueKey(ctx context.Context, user *model.User, id, name string) (*IssuedKey, error) {
	device, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.issueKey(ctx, device, name)
}

func (s *DeviceService) Keys(ctx context.Context, user *model.User, id string) ([]*model.DeviceCredential, error) {
	device, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	creds, err := s.credentials.ByDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	if creds == nil {
		creds = []*model.DeviceCredential{}
	}
	return creds, nil
}

// RevokeKey deactivates one of the device's keys.
func (s *DeviceService) RevokeKey(ctx context.Context, user *model.User, id, keyID string) error {
	device, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	err = s.credentials.Deactivate(ctx, device.ID, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	slog.Info("device key revoked", "device_id", device.ID, "key_id", keyID)
	return nil
}

// Delete removes a device with its events and keys. Stored photos are
// deleted first on a best-effort basis.
func (s *DeviceService) Delete(ctx context.Context, user *model.User, id string) error {
	device, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	keys, err := s.events.PhotoKeysByDevice(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	removed := 0
	for _, key := range keys {
		ok, err := s.storage.Delete(ctx, key)
		if err != nil {
			slog.Warn("failed to delete photo", "device_id", device.ID, "key", key, "error", err)
			continue
		}
		if ok {
			removed++
		}
	}

	if err := s.devices.Delete(ctx, device.ID); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("failed to delete device: %w", err)
	}

	slog.Info("device deleted", "device_id", device.ID, "photos_removed", removed)
	return nil
}

func (s *DeviceService) issueKey(ctx context.Context, device *model.Device, name string) (*IssuedKey, error) {
	raw, err := GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	cred := &model.DeviceCredential{
		ID:        uuid.New().String(),
		DeviceID:  device.ID,
		KeyHash:   HashAPIKey(raw),
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if name = strings.TrimSpace(name); name != "" {
		cred.Name = &name
	}

	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	return &IssuedKey{Credential: cred, APIKey: raw}, nil
}
