package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/server/internal/api"
	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/config"
	"github.com/opsdesk/server/internal/domain/dashboard"
	"github.com/opsdesk/server/internal/domain/maintenance"
	"github.com/opsdesk/server/internal/domain/users"
	"github.com/opsdesk/server/internal/metrics"
	"github.com/opsdesk/server/internal/realtime"
	"github.com/opsdesk/server/internal/storage/postgres"
	"github.com/opsdesk/server/internal/tracked"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the opsdesk HTTP server",
	Long: `Start the opsdesk HTTP server and begin accepting API and websocket
connections.

The server will:
- Load configuration from environment variables
- Run pending schema migrations (unless DATABASE_AUTO_MIGRATE=false)
- Bootstrap the admin account if ADMIN_USERNAME/ADMIN_PASSWORD are set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  opsdesk serve

  # Start on a specific host and port
  opsdesk serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  opsdesk serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Msg("starting opsdesk server")

	metrics.Init(Version, GitCommit)

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info().Msg("schema migrations applied")
	}

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, cfg.Database.MaxConnections)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)

	registry := realtime.NewRegistry(cfg.Realtime.SendBuffer)
	hub := realtime.NewHub(registry, logger)

	auditSvc := audit.NewService(repo.AuditLogs(), logger)
	coord := tracked.NewCoordinator(auditSvc, hub, logger)

	usersSvc := users.NewService(repo.Users(), coord, jwt, logger)

	if cfg.AdminBootstrap.Username != "" && cfg.AdminBootstrap.Password != "" {
		bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, created, err := usersSvc.EnsureAdmin(bootstrapCtx, cfg.AdminBootstrap.Username, cfg.AdminBootstrap.Password)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("admin bootstrap failed")
		} else if created {
			logger.Info().Str("username", cfg.AdminBootstrap.Username).Msg("bootstrapped admin account")
		}
	}

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Logger:      logger,
		JWT:         jwt,
		Hub:         hub,
		Audit:       auditSvc,
		Dashboard:   dashboard.NewService(repo.DashboardItems(), coord, logger),
		Maintenance: maintenance.NewService(repo.Maintenance(), coord, logger),
		Users:       usersSvc,
		Pinger:      pool,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second, // websocket connections are hijacked and exempt
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		registry.CloseAll()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info().Msg("stopped")
	return nil
}
