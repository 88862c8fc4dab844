package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/completion"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/events"
	"github.com/taskpulse/taskpulse/internal/notify"
	"github.com/taskpulse/taskpulse/internal/platform/postgres"
	"github.com/taskpulse/taskpulse/internal/scheduler"
	"github.com/taskpulse/taskpulse/internal/service"
	"github.com/taskpulse/taskpulse/internal/service/auth"
	"github.com/taskpulse/taskpulse/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore       store.UserStore
	taskStore       store.TaskStore
	assignmentStore store.AssignmentStore
	commentStore    store.CommentStore

	// Services
	tokenService      auth.TokenService
	userService       service.UserService
	taskService       service.TaskService
	assignmentService service.AssignmentService
	commentService    service.CommentService

	// Event system and reminder scheduling
	eventEmitter *events.InMemoryEmitter
	scheduler    *scheduler.Scheduler
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.tokenService, err = auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("Identity token service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.assignmentStore = postgres.NewPostgresAssignmentStore(db, logger)
	app.commentStore = postgres.NewPostgresCommentStore(db, logger)

	app.eventEmitter = events.NewInMemoryEmitter(logger)

	// The chat transport is an external collaborator. The log sender stands
	// in until a gateway delivery client is plugged in.
	// TODO: replace LogSender with the gateway's delivery client once its
	// callback API is available.
	notifyService := notify.NewService(notify.NewLogSender(logger), app.userStore, logger)
	app.eventEmitter.RegisterHandler(notify.NewApproverEventHandler(notifyService, logger))

	app.scheduler = scheduler.New(
		app.taskStore,
		app.assignmentStore,
		completion.NewEvaluator(app.assignmentStore),
		notifyService,
		app.eventEmitter,
		scheduler.Config{
			Mode:       scheduler.Mode(cfg.Scheduler.Mode),
			StartDelay: cfg.Scheduler.StartDelay,
			Lead:       cfg.Scheduler.Lead,
		},
		logger,
	)

	tx := store.SQLRunner{DB: db}
	app.userService = service.NewUserService(app.userStore, tx, logger)
	app.taskService = service.NewTaskService(
		app.taskStore,
		app.assignmentStore,
		app.userStore,
		app.commentStore,
		app.scheduler,
		tx,
		logger,
	)
	app.assignmentService = service.NewAssignmentService(app.assignmentStore, app.scheduler, tx, logger)
	app.commentService = service.NewCommentService(
		app.commentStore,
		app.taskStore,
		app.assignmentStore,
		app.eventEmitter,
		tx,
		logger,
	)

	// The job set does not survive restarts. Rebuild it from the store so
	// every incomplete task has its reminder job again.
	if err := app.scheduler.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("failed to rebuild reminder jobs: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
