// Package internal wires the catalog application together
package internal

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"catalogapp/internal/config"
	"catalogapp/internal/database"
	"catalogapp/internal/jobs"
	"catalogapp/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the catalog components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // DB manager with migration methods
}

// NewServerConfig returns the cartridge server settings shared by the app
// and its tests. Sec-Fetch-Site checks stay off: the mini-app posts from
// another origin and admin callers are scripts holding a bearer token.
func NewServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	return cfg
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithRoutes(cfg, MountAppRoutes)
}

// NewAppWithRoutes creates a new application with custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := geoip.Open(cfg.GeoDBPath, logger); err != nil {
		logger.Warn("GeoIP disabled, events will carry no country", slog.Any("error", err))
	}

	jobsManager, err := jobs.NewJobs(dbManager, logger, cfg.JobInterval())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(),
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{jobsManager},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}
