package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/config"
	"github.com/opsdesk/server/internal/domain/users"
	"github.com/opsdesk/server/internal/realtime"
	"github.com/opsdesk/server/internal/storage/postgres"
	"github.com/opsdesk/server/internal/tracked"
)

var (
	createAdminUsername string
	createAdminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the initial admin account",
	Long: `Create an admin account directly in the database. Idempotent: if the
username already exists the command reports it and leaves the account
untouched.

Credentials come from --username/--password flags, falling back to the
ADMIN_USERNAME and ADMIN_PASSWORD environment variables.`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&createAdminUsername, "username", "", "admin username (default: ADMIN_USERNAME env var)")
	createAdminCmd.Flags().StringVar(&createAdminPassword, "password", "", "admin password (default: ADMIN_PASSWORD env var)")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	username := createAdminUsername
	if username == "" {
		username = cfg.AdminBootstrap.Username
	}
	password := createAdminPassword
	if password == "" {
		password = cfg.AdminBootstrap.Password
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required (flags or ADMIN_USERNAME/ADMIN_PASSWORD)")
	}

	logger := config.NewLogger(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	// No clients are connected from a CLI run; the hub exists only to
	// satisfy the coordinator wiring.
	registry := realtime.NewRegistry(1)
	hub := realtime.NewHub(registry, zerolog.Nop())
	coord := tracked.NewCoordinator(audit.NewService(repo.AuditLogs(), logger), hub, logger)
	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	usersSvc := users.NewService(repo.Users(), coord, jwt, logger)

	user, created, err := usersSvc.EnsureAdmin(ctx, username, password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "created admin account %q (id %s)\n", user.Username, user.ID)
	} else {
		fmt.Fprintf(out, "account %q already exists (id %s); nothing to do\n", user.Username, user.ID)
	}
	return nil
}
