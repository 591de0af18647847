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

	"github.com/gatherly/server/internal/accounts"
	"github.com/gatherly/server/internal/api"
	"github.com/gatherly/server/internal/api/handlers"
	"github.com/gatherly/server/internal/audit"
	"github.com/gatherly/server/internal/config"
	"github.com/gatherly/server/internal/email"
	"github.com/gatherly/server/internal/events"
	"github.com/gatherly/server/internal/metrics"
	"github.com/gatherly/server/internal/notify"
	"github.com/gatherly/server/internal/session"
	"github.com/gatherly/server/internal/storage/postgres"
	"github.com/gatherly/server/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Gatherly HTTP server",
	Long: `Start the Gatherly HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables
- Connect to PostgreSQL and start the notification worker
- Serve the login, signup and events routes
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
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
	logger.Info().Msg("starting gatherly server")

	metrics.Init(Version, GitCommit, BuildDate)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(poolCtx, cfg.Database.URL)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("email service init failed: %w", err)
	}

	pipeline, err := notify.NewPipeline(mailer, cfg.Notify.Buffer, logger)
	if err != nil {
		return fmt.Errorf("notification pipeline init failed: %w", err)
	}
	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	pipeline.Start(pipelineCtx)
	defer pipelineCancel()
	defer pipeline.Stop()
	logger.Info().Int("buffer", cfg.Notify.Buffer).Msg("notification worker started")

	sessions := session.NewManager(repo.Accounts(), cfg.Session.TTL, logger)
	defer sessions.Stop()

	pages, err := web.Templates()
	if err != nil {
		return fmt.Errorf("page templates failed to parse: %w", err)
	}

	auditLogger := audit.NewLogger()
	accountsService := accounts.NewService(repo.Accounts(), logger)
	authenticator := accounts.NewAuthenticator(repo.Accounts(), logger)
	eventsService := events.NewService(repo.Events())

	router := api.NewRouter(cfg, logger, api.Deps{
		Auth: &handlers.AuthHandler{
			Authenticator: authenticator,
			Accounts:      accountsService,
			Sessions:      sessions,
			Audit:         auditLogger,
			Templates:     pages,
			CookieName:    cfg.Session.CookieName,
			SessionTTL:    cfg.Session.TTL,
			Env:           cfg.Environment,
		},
		Events: &handlers.EventsHandler{
			Service:   eventsService,
			Pipeline:  pipeline,
			Audit:     auditLogger,
			UploadDir: cfg.Server.UploadDir,
			Env:       cfg.Environment,
		},
		Health:   &handlers.HealthHandler{DB: pool},
		Sessions: sessions,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
