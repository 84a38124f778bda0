package app

import (
	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/handlers"
	"github.com/searchops/meilivault/internal/interfaces"
	"github.com/searchops/meilivault/internal/services/backup"
	"github.com/searchops/meilivault/internal/services/events"
	"github.com/searchops/meilivault/internal/services/ingest"
	"github.com/searchops/meilivault/internal/services/profiles"
	"github.com/searchops/meilivault/internal/services/query"
	"github.com/searchops/meilivault/internal/services/report"
	"github.com/searchops/meilivault/internal/services/scheduler"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Event-driven services
	EventService interfaces.EventService

	// Core services
	BackupService    *backup.Service
	IngestService    *ingest.Service
	QueryService     *query.Service
	ReportService    *report.Service
	ProfileService   *profiles.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	IndexHandler      *handlers.IndexHandler
	BackupHandler     *handlers.BackupHandler
	RestoreHandler    *handlers.RestoreHandler
	OperationsHandler *handlers.OperationsHandler
	IngestHandler     *handlers.IngestHandler
	QueryHandler      *handlers.QueryHandler
	ProfileHandler    *handlers.ProfileHandler
	PageHandler       *handlers.PageHandler
	WSHandler         *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// EventService must exist before the WebSocket handler, which subscribes
	// to progress events on construction.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.WebSocket)

	app.BackupService = backup.NewService(app.Config, app.EventService, app.Logger)
	app.IngestService = ingest.NewService(app.Config, app.Logger)
	app.QueryService = query.NewService(app.Logger)
	app.ReportService = report.NewService(app.Logger)
	app.ProfileService = profiles.NewService(app.Config.Profiles.Path, app.Logger)
	app.SchedulerService = scheduler.NewService(app.Config, app.BackupService, app.Logger)

	app.APIHandler = handlers.NewAPIHandler(app.Config, app.Logger)
	app.IndexHandler = handlers.NewIndexHandler(app.BackupService, app.Logger)
	app.BackupHandler = handlers.NewBackupHandler(app.BackupService, app.Logger)
	app.RestoreHandler = handlers.NewRestoreHandler(app.Config, app.BackupService, app.EventService, app.Logger)
	app.OperationsHandler = handlers.NewOperationsHandler(app.BackupService.Operations(), app.ReportService, app.Logger)
	app.IngestHandler = handlers.NewIngestHandler(app.Config, app.IngestService, app.Logger)
	app.QueryHandler = handlers.NewQueryHandler(app.QueryService, app.Logger)
	app.ProfileHandler = handlers.NewProfileHandler(app.ProfileService, app.Logger)
	app.PageHandler = handlers.NewPageHandler(app.Logger, app.Config.Logging.ClientDebug)

	app.Logger.Info().
		Str("environment", cfg.Environment).
		Msg("Application initialized")

	return app, nil
}

// Close shuts down application components in reverse dependency order.
func (a *App) Close() {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
