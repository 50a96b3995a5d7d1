package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/metrics"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
)

const (
	APIKeyPrefix = "rushroster_"
	apiKeyBytes  = 32
)

// GenerateAPIKey returns a new raw device key: the prefix followed by 64
// lowercase hex characters.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}

// HashAPIKey returns the stored form of a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidAPIKeyFormat is the cheap syntactic check done before any lookup.
func ValidAPIKeyFormat(raw string) bool {
	hexPart, ok := strings.CutPrefix(raw, APIKeyPrefix)
	if !ok || len(hexPart) != apiKeyBytes*2 {
		return false
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DeviceAuthService resolves raw API keys to devices.
type DeviceAuthService struct {
	credentials repository.CredentialRepository
	now         func() time.Time
}

func NewDeviceAuthService(credentials repository.CredentialRepository) *DeviceAuthService {
	return &DeviceAuthService{credentials: credentials, now: time.Now}
}

// Authenticate returns the device owning raw. Malformed, unknown, inactive
// and expired keys as well as inactive devices all yield ErrInvalidAPIKey.
func (s *DeviceAuthService) Authenticate(ctx context.Context, raw string) (*model.Device, error) {
	if !ValidAPIKeyFormat(raw) {
		metrics.AuthFailuresTotal.WithLabelValues("device").Inc()
		return nil, ErrInvalidAPIKey
	}

	hash := HashAPIKey(raw)
	now := s.now().UTC()

	device, err := s.credentials.DeviceByHash(ctx, hash, now)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("device").Inc()
		if !errors.Is(err, repository.ErrCredentialNotFound) {
			slog.Error("device credential lookup failed", "error", err)
		}
		return nil, ErrInvalidAPIKey
	}

	if err := s.credentials.TouchLastUsed(ctx, hash, now); err != nil {
		slog.Warn("failed to record api key usage", "device_id", device.ID, "error", err)
	}

	return device, nil
}
