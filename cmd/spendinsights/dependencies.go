package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/agent"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/delivery"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/insights"
	insightshandler "github.com/FACorreiaa/campaign-spend-insights/internal/domain/insights/handler"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/narrative"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/report"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend/repository"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/config"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/db"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/gemini"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/logger"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/metrics"
	"github.com/FACorreiaa/campaign-spend-insights/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	Source  spend.Source
	Runs    insights.RunRepository
	Storage storage.Storage

	// Services
	Gemini          *gemini.Client
	Narratives      *narrative.Service
	Mailer          *delivery.Mailer
	InsightsService *insights.Service
	Agent           *agent.Agent

	// Handlers
	Handler *insightshandler.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
	}

	if cfg.Data.Source == "postgres" {
		if err := deps.initDatabase(ctx); err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	if err := deps.initRepositories(ctx); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	log.Info("all dependencies initialized successfully",
		slog.String("data_source", cfg.Data.Source),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("gemini", deps.Gemini != nil),
		slog.Bool("email", deps.Mailer.Enabled()),
	)

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := openDatabase(ctx, d.Config, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*db.DB, error) {
	return db.New(ctx, db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger.Component(log, "db"))
}

// initRepositories initializes the data source, run history and artifact storage
func (d *Dependencies) initRepositories(ctx context.Context) error {
	if d.DB != nil {
		d.Source = repository.NewPostgresRepository(d.DB.Pool, logger.Component(d.Logger, "spend"))
		d.Runs = insights.NewRepository(d.DB.Pool)
	} else {
		d.Source = repository.NewCSVRepository(d.Config.Data.CSVPath, logger.Component(d.Logger, "spend"))
		d.Runs = insights.NewMemoryRepository(100)
	}

	sc := d.Config.Storage
	if sc.LocalPath == "" {
		sc.LocalPath = d.Config.Report.OutputDir
	}
	store, err := storage.New(ctx, &storage.Config{
		Type:              storage.Type(sc.Type),
		LocalPath:         sc.LocalPath,
		S3Bucket:          sc.S3Bucket,
		S3Region:          sc.S3Region,
		S3Prefix:          sc.S3Prefix,
		S3AccessKeyID:     sc.S3AccessKeyID,
		S3SecretAccessKey: sc.S3SecretAccessKey,
		S3Endpoint:        sc.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init report storage: %w", err)
	}
	d.Storage = store

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	cfg := d.Config

	if cfg.Gemini.APIKey != "" {
		d.Gemini = gemini.NewClient(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.Gemini.Timeout,
		}, logger.Component(d.Logger, "gemini"))
	}

	// Without Gemini every insight is the deterministic summary
	var primary narrative.Narrator
	if d.Gemini != nil && cfg.NarrativeUsesGemini() {
		primary = narrative.NewGeminiNarrator(d.Gemini)
	}
	d.Narratives = narrative.NewService(primary, "gemini", narrative.Options{
		Timeout:       cfg.Narrative.Timeout,
		MaxAttempts:   cfg.Narrative.MaxAttempts,
		Delay:         cfg.Narrative.Delay,
		Exponential:   cfg.Narrative.Exponential,
		RatePerMinute: cfg.Narrative.RatePerMinute,
	}, d.Metrics, logger.Component(d.Logger, "narrative"))

	d.Mailer = delivery.NewMailer(delivery.Config{
		APIKey:     cfg.Notify.ResendAPIKey,
		From:       cfg.Notify.From,
		Recipients: cfg.Notify.Recipients,
	}, logger.Component(d.Logger, "delivery"))

	formats, err := report.ParseFormats(strings.Join(cfg.Report.Formats, ","))
	if err != nil {
		return err
	}

	d.InsightsService = insights.NewService(insights.Dependencies{
		Source:     d.Source,
		Narratives: d.Narratives,
		Storage:    d.Storage,
		Mailer:     d.Mailer,
		Runs:       d.Runs,
		Metrics:    d.Metrics,
	}, insights.Options{
		Title:    cfg.Report.Title,
		Currency: cfg.Report.Currency,
		Formats:  formats,
	}, logger.Component(d.Logger, "insights"))

	// A nil model makes the agent answer with the markdown report
	var model agent.Model
	if d.Gemini != nil {
		model = d.Gemini
	}
	d.Agent = agent.New(model, d.InsightsService, agent.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		MaxAttempts:   cfg.Narrative.MaxAttempts,
		Delay:         cfg.Narrative.Delay,
	}, logger.Component(d.Logger, "agent"))

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes the HTTP handler
func (d *Dependencies) initHandlers() {
	opts := insightshandler.Options{
		CORSOrigins:             d.Config.Server.CORSOrigins,
		RegenerateRatePerMinute: d.Config.Server.RegenerateRatePerMinute,
	}
	if d.Config.Observability.MetricsEnabled {
		opts.Metrics = d.Metrics.Handler()
	}
	d.Handler = insightshandler.New(d.InsightsService, d.Agent, opts, logger.Component(d.Logger, "http"))

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
