package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rushroster/rushroster-cloud/internal/config"
	"github.com/rushroster/rushroster-cloud/internal/db"
	"github.com/rushroster/rushroster-cloud/internal/repository"
	"github.com/rushroster/rushroster-cloud/internal/service"
	"github.com/rushroster/rushroster-cloud/internal/storage"
)

type App struct {
	Cfg               *config.Config
	DB                *sqlx.DB
	Storage           storage.Storage
	AuthService       *service.AuthService
	DeviceAuthService *service.DeviceAuthService
	DeviceService     *service.DeviceService
	IngestService     *service.IngestService
	PhotoService      *service.PhotoService
	EventService      *service.EventService
	StatsService      *service.StatsService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	photoStorage, err := storage.New(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return NewWithDeps(cfg, database, photoStorage), nil
}

// NewWithDeps wires services over an open, migrated database and a storage
// backend.
func NewWithDeps(cfg *config.Config, database *sqlx.DB, photoStorage storage.Storage) *App {
	// Repositories
	userRepository := repository.NewUserRepository(database)
	deviceRepository := repository.NewDeviceRepository(database)
	credentialRepository := repository.NewCredentialRepository(database)
	eventRepository := repository.NewEventRepository(database)
	statsRepository := repository.NewStatsRepository(database)

	// Services
	authService := service.NewAuthService(
		userRepository,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.AllowRegistration,
	)
	deviceAuthService := service.NewDeviceAuthService(credentialRepository)
	deviceService := service.NewDeviceService(deviceRepository, credentialRepository, eventRepository, photoStorage)
	ingestService := service.NewIngestService(eventRepository, deviceRepository, cfg.DedupTolerance)
	photoService := service.NewPhotoService(eventRepository, photoStorage, cfg.PhotoUploadExpiry, cfg.PhotoVerifyUpload)
	eventService := service.NewEventService(eventRepository)
	statsService := service.NewStatsService(statsRepository)

	return &App{
		Cfg:               cfg,
		DB:                database,
		Storage:           photoStorage,
		AuthService:       authService,
		DeviceAuthService: deviceAuthService,
		DeviceService:     deviceService,
		IngestService:     ingestService,
		PhotoService:      photoService,
		EventService:      eventService,
		StatsService:      statsService,
	}
}

func (a *App) Close() error {
	return db.Close(a.DB)
}
