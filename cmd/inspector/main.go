package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/catalog"
	"github.com/rebuildcl/inspector/internal/config"
	"github.com/rebuildcl/inspector/internal/indicator"
	"github.com/rebuildcl/inspector/internal/inspection"
	"github.com/rebuildcl/inspector/internal/location"
	"github.com/rebuildcl/inspector/internal/report"
	"github.com/rebuildcl/inspector/internal/session"
	"github.com/rebuildcl/inspector/internal/signature"
	"github.com/rebuildcl/inspector/internal/storage"
	"github.com/rebuildcl/inspector/internal/submission"
	"github.com/rebuildcl/inspector/pkg/database"
	"github.com/rebuildcl/inspector/pkg/utils"
)

// App is the composition root: every service a presentation shell needs,
// wired once at startup.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Sessions    *session.Store
	Auth        *session.Authenticator
	Inspections *inspection.Service
	Catalog     *catalog.Resolver
	Locations   *location.Resolver
	Indicator   *indicator.Client
	Reports     *report.Builder
	Signature   *signature.Capture
	Pipeline    *submission.Pipeline

	db *database.DB
}

func newApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	sessions, err := session.NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize session store: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, sessions, logger)
	store := storage.NewLocalStore(cfg.Storage.BaseDir, logger)
	prices := catalog.NewResolver(client, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Sessions:    sessions,
		Auth:        session.NewAuthenticator(client, sessions, logger),
		Inspections: inspection.NewService(client, logger),
		Catalog:     prices,
		Locations:   location.NewResolver(client, logger),
		Indicator:   indicator.NewClient(cfg.Indicator.URL, logger),
		Reports:     report.NewBuilder(prices, logger),
		Signature:   signature.NewCapture(store, cfg.Storage.CacheDir, logger),
		Pipeline:    submission.NewPipeline(client, store, cfg.Storage.DocumentsDir, logger),
		db:          db,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() error {
	return a.db.Close()
}

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	app, err := newApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	defer app.Logger.Sync()

	app.Logger.Info("Inspector core initialized",
		zap.String("backend", app.Config.API.BaseURL),
		zap.String("indicator", app.Config.Indicator.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	valid, err := app.Auth.Check(ctx)
	if err != nil {
		app.Logger.Warn("Session check failed", zap.Error(err))
	}
	app.Logger.Info("Session state", zap.Bool("authenticated", valid))

	rate := app.Indicator.FetchTodayRate(ctx)
	if rate.Success {
		app.Logger.Info("UF rate available",
			zap.Float64("rate", rate.Rate),
			zap.Time("date", rate.Date))
	} else {
		app.Logger.Warn("UF rate unavailable", zap.String("error", rate.Err))
	}
}
