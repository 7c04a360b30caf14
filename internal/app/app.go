// Package app assembles the repositories, extractors and pipeline shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/artifacts"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/events"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/export"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ingest"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/ocr"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/pipeline"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/repository"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/server"
)

type App struct {
	Config    *common.Config
	DB        *repository.DB
	Users     repository.UserRepository
	Sessions  repository.SessionRepository
	Tests     repository.BloodTestRepository
	Extractor *ocr.Extractor
	Processor *pipeline.Processor
	Stager    *ingest.Stager
	Export    *export.Service
	Events    events.Publisher

	logger *slog.Logger
}

// Build validates cfg, connects and migrates the database and wires the pipeline.
// A missing model credential fails here, before anything is served.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "opening database", err)
	}
	if err := repository.Migrate(ctx, db.Driver); err != nil {
		db.Close(logger)
		return nil, common.NewAppError(common.CodeDatabase, "migrating schema", err)
	}

	store, err := newArtifactStore(ctx, cfg.Storage)
	if err != nil {
		db.Close(logger)
		return nil, err
	}
	aw := artifacts.NewWriter(store, logger)

	var pub events.Publisher = events.Nop{}
	if len(cfg.Events.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		logger.Info("events.kafka.enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)

	extractor := ocr.NewExtractor(
		ocr.NewPDFTextReader(logger),
		ocr.NewVisionExtractor(ocr.VisionConfig{
			Pdftoppm:    cfg.Extract.Pdftoppm,
			DPI:         cfg.Extract.DPI,
			Concurrency: cfg.Extract.VisionConcurrency,
			PageTimeout: cfg.Extract.VisionTimeout,
		}, client, logger),
		logger,
	)

	a := &App{
		Config:    cfg,
		DB:        db,
		Users:     repository.NewUserRepository(db.Driver, logger),
		Sessions:  repository.NewSessionRepository(db.Driver, logger),
		Tests:     repository.NewBloodTestRepository(db.Driver, logger),
		Extractor: extractor,
		Stager:    ingest.NewStager(cfg.Server.UploadDir, logger),
		Events:    pub,
		logger:    logger,
	}
	a.Export = export.NewService(a.Sessions, a.Users, logger)
	a.Processor = pipeline.NewProcessor(logger,
		pipeline.NewExtractStage(extractor, aw, logger),
		pipeline.NewStructureStage(client, aw, logger),
		pipeline.NewPersistStage(a.Users, a.Sessions, pub, logger),
	)
	return a, nil
}

func newArtifactStore(ctx context.Context, cfg common.StorageConfig) (artifacts.Store, error) {
	switch cfg.Backend {
	case artifacts.BackendS3:
		client, err := artifacts.NewS3Client(ctx, cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return artifacts.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return artifacts.NewFSStore(cfg.Dir), nil
	}
}

// API returns the HTTP API over this app's components.
func (a *App) API() *server.Server {
	return server.New(server.Deps{
		Processor:      a.Processor,
		Stager:         a.Stager,
		Users:          a.Users,
		Sessions:       a.Sessions,
		Tests:          a.Tests,
		Export:         a.Export,
		DB:             a.DB,
		MaxUploadBytes: a.Config.Server.MaxUploadBytes,
		CORSOrigins:    a.Config.Server.CORSOrigins,
		Logger:         a.logger,
	})
}

func (a *App) Close() {
	if err := a.Events.Close(); err != nil {
		a.logger.Warn("events.close_failed", "error", err)
	}
	a.DB.Close(a.logger)
}
