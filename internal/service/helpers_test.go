package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rushroster/rushroster-cloud/internal/db/dbtest"
	"github.com/rushroster/rushroster-cloud/internal/model"
	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

// fakeStorage records calls and serves deterministic URLs.
type fakeStorage struct {
	mu         sync.Mutex
	now        time.Time
	objects    map[string]bool
	deleted    []string
	failUpload bool
	failExists bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{now: testNow, objects: map[string]bool{}}
}

func (f *fakeStorage) Key(deviceID, eventID, ext string) string {
	return storage.PhotoKey(f.now, deviceID, eventID, ext)
}

func (f *fakeStorage) UploadURL(ctx context.Context, key string, expiresIn time.Duration, contentType string) (string, error) {
	if f.failUpload {
		return "", fmt.Errorf("%w: presign failed", storage.ErrStorage)
	}
	return fmt.Sprintf("https://upload.test/%s?expires=%d&ct=%s", key, int(expiresIn.Seconds()), contentType), nil
}

func (f *fakeStorage) DownloadURL(ctx context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	if f.failExists {
		return false, fmt.Errorf("%w: head failed", storage.ErrStorage)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	existed := f.objects[key]
	delete(f.objects, key)
	return existed, nil
}

func (f *fakeStorage) put(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = true
}

type testEnv struct {
	users       repository.UserRepository
	devices     repository.DeviceRepository
	credentials repository.CredentialRepository
	events      repository.EventRepository
	stats       repository.StatsRepository
	storage     *fakeStorage

	auth       *AuthService
	deviceAuth *DeviceAuthService
	ingest     *IngestService
	photos     *PhotoService
	deviceSvc  *DeviceService
	eventSvc   *EventService
	statsSvc   *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := dbtest.New(t)

	env := &testEnv{
		users:       repository.NewUserRepository(database),
		devices:     repository.NewDeviceRepository(database),
		credentials: repository.NewCredentialRepository(database),
		events:      repository.NewEventRepository(database),
		stats:       repository.NewStatsRepository(database),
		storage:     newFakeStorage(),
	}

	env.auth = NewAuthService(env.users, "test-secret-test-secret-test-secret", time.Hour, true)
	env.auth.now = fixedClock()
	env.deviceAuth = NewDeviceAuthService(env.credentials)
	env.deviceAuth.now = fixedClock()
	env.ingest = NewIngestService(env.events, env.devices, DefaultDedupTolerance)
	env.ingest.now = fixedClock()
	env.photos = NewPhotoService(env.events, env.storage, time.Hour, false)
	env.deviceSvc = NewDeviceService(env.devices, env.credentials, env.events, env.storage)
	env.deviceSvc.now = fixedClock()
	env.eventSvc = NewEventService(env.events)
	env.eventSvc.now = fixedClock()
	env.statsSvc = NewStatsService(env.stats)
	env.statsSvc.now = fixedClock()

	return env
}

func (env *testEnv) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := env.auth.Register(context.Background(), RegisterInput{Email: email, Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

// device registers a device and returns it with its raw API key.
func (env *testEnv) device(t *testing.T, owner *model.User, externalID string) (*model.Device, string) {
	t.Helper()
	d, key, err := env.deviceSvc.Register(context.Background(), owner, RegisterDeviceInput{DeviceID: externalID})
	if err != nil {
		t.Fatalf("register device %s: %v", externalID, err)
	}
	return d, key.APIKey
}

func ev(offset time.Duration, speed float64) EventInput {
	return EventInput{
		Timestamp:  testNow.Add(-time.Hour).Add(offset),
		Speed:      speed,
		SpeedLimit: 25,
		IsSpeeding: speed > 25,
	}
}
