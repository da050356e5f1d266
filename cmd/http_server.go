package cmd

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/kitchen-ops/api"
	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/auth"
	authPostgres "github.com/frahmantamala/kitchen-ops/internal/auth/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	"github.com/frahmantamala/kitchen-ops/internal/core/events"
	"github.com/frahmantamala/kitchen-ops/internal/notification"
	notificationPostgres "github.com/frahmantamala/kitchen-ops/internal/notification/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/staff"
	staffPostgres "github.com/frahmantamala/kitchen-ops/internal/staff/postgres"
	tasksPostgres "github.com/frahmantamala/kitchen-ops/internal/tasks/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/telemetry"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
	transferPostgres "github.com/frahmantamala/kitchen-ops/internal/transfer/postgres"
	"github.com/frahmantamala/kitchen-ops/internal/transport/openapi"
	"github.com/frahmantamala/kitchen-ops/internal/transport/rest"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *database.Handles
	Router    *chi.Mux
	EventBus  *events.EventBus
	Telemetry *telemetry.Telemetry
	Logger    *slog.Logger
}

func startHTTPServer() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(ctx, deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "version", Version)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// close drains pending event handlers before releasing the pool they write to.
func (d *Dependencies) close(ctx context.Context) {
	d.EventBus.Wait()
	if err := d.Telemetry.Shutdown(ctx); err != nil {
		d.Logger.Error("Telemetry shutdown error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(ctx context.Context, deps *Dependencies) error {
	lg := deps.Logger
	cfg := deps.Config

	staffService := staff.NewService(staffPostgres.NewStaffRepository(deps.DB.SQLX))

	transferService, err := newTransferService(deps, staffService)
	if err != nil {
		return err
	}

	tokens, err := newTokenManager(cfg.Security)
	if err != nil {
		return err
	}
	authService := auth.NewService(authPostgres.NewRepository(deps.DB.SQLX), tokens)

	notifications := notificationPostgres.NewNotificationRepository(deps.DB.Gorm)
	notification.NewRecorder(notifications, lg).RegisterEventHandlers(deps.EventBus)

	var validator *openapi.Validator
	if cfg.Server.OpenAPIValidation {
		validator, err = openapi.Load(ctx, api.OpenAPI, rest.APIPrefix, lg)
		if err != nil {
			return fmt.Errorf("failed to load openapi document: %w", err)
		}
	}

	rest.RegisterAllRoutes(deps.Router, rest.Dependencies{
		DB:                  deps.DB.SQLX.DB,
		Authenticator:       authService,
		Validator:           validator,
		OpenAPIDocument:     api.OpenAPI,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		StaffHandler:        staff.NewHandler(staffService),
		TransferHandler:     transfer.NewHandler(transferService),
		NotificationHandler: notification.NewHandler(notifications, staff.NewApprovalPolicy(), cfg.Transfer.ApproverRole),
		Logger:              lg,
	})
	return nil
}

// newTransferService assembles the transfer engine on top of the shared
// connection pool and event bus.
func newTransferService(deps *Dependencies, directory *staff.Service) (*transfer.Service, error) {
	loc, err := deps.Config.Transfer.Location()
	if err != nil {
		return nil, err
	}

	dispatcher := transfer.NewDispatcher(deps.EventBus, deps.Logger)
	dispatcher.Register(transfer.TaskTypeWorkflow, tasksPostgres.NewWorkflowTaskRepository(deps.DB.Gorm))
	dispatcher.Register(transfer.TaskTypeChecklist, tasksPostgres.NewChecklistItemRepository(deps.DB.Gorm))
	dispatcher.Register(transfer.TaskTypeReview, tasksPostgres.NewReviewInstanceRepository(deps.DB.Gorm))

	metrics, err := transfer.NewMetrics(deps.Telemetry.Meter("github.com/frahmantamala/kitchen-ops/internal/transfer"))
	if err != nil {
		return nil, fmt.Errorf("failed to register transfer metrics: %w", err)
	}

	return transfer.NewService(transfer.ServiceDeps{
		Ledger:       transferPostgres.NewLedgerRepository(deps.DB.Gorm),
		Profiles:     transferPostgres.NewProfileRepository(deps.DB.Gorm),
		Directory:    directory,
		Approvals:    staff.NewApprovalPolicy(),
		Dispatcher:   dispatcher,
		Emitter:      deps.EventBus,
		Metrics:      metrics,
		Logger:       deps.Logger.With("component", "transfer"),
		Location:     loc,
		ApproverRole: deps.Config.Transfer.ApproverRole,
	}), nil
}

// newTokenManager builds the RS256 token manager. The private key is only
// needed for issuing tokens; servers may run with the public key alone.
func newTokenManager(cfg internal.SecurityConfig) (*auth.RSATokenManager, error) {
	var private *rsa.PrivateKey
	if cfg.JWTPrivateKey != "" {
		key, err := cfg.GetPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("invalid JWT private key: %w", err)
		}
		private = key
	}
	public, err := cfg.GetPublicKey()
	if err != nil {
		return nil, fmt.Errorf("invalid JWT public key: %w", err)
	}
	return auth.NewRSATokenManager(private, public, cfg.AccessTokenDuration), nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	tel, err := telemetry.Init(ctx, config.Observability, Version, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	handles, err := database.Open(config.Database, lg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Dependencies{
		Config:    config,
		Logger:    lg,
		DB:        handles,
		Router:    chi.NewRouter(),
		EventBus:  events.NewEventBus(lg),
		Telemetry: tel,
	}, nil
}
