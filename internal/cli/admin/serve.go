package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/izpodvypodvert/todoapi/internal/api/handlers"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/auth"
	"github.com/izpodvypodvert/todoapi/internal/cache"
	"github.com/izpodvypodvert/todoapi/internal/config"
	"github.com/izpodvypodvert/todoapi/internal/database"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/jobs"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/izpodvypodvert/todoapi/internal/mailer"
	"github.com/izpodvypodvert/todoapi/internal/metrics"
	"github.com/izpodvypodvert/todoapi/internal/repository"
	"github.com/izpodvypodvert/todoapi/internal/server"
	"github.com/izpodvypodvert/todoapi/internal/service"
	"github.com/izpodvypodvert/todoapi/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var requiredEntities = []string{domain.EntityTodo, domain.EntityUser, domain.EntityOAuthAccount}

const janitorInterval = time.Minute

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the todo API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides TODOAPI_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides TODOAPI_LOG_LEVEL)")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON (overrides TODOAPI_LOG_JSON)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	logger.Init(&logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		JSON:       cfg.LogJSON,
		AddSource:  cfg.Debug,
		TimeFormat: time.RFC3339,
	})
	log := logger.GetDefault()
	ctx = logger.ContextWithLogger(ctx, log)

	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promRegistry)

	tx, err := newTxManager(pool, repository.WithObserver(collector))
	if err != nil {
		return err
	}

	sender, err := newMailSender(ctx, cfg)
	if err != nil {
		return err
	}

	users, err := newUserManager(cfg, tx, service.WithNotifier(mailer.NewNotifier(sender, cfg.FrontendURL)))
	if err != nil {
		return err
	}
	todos, err := service.NewTodoService(tx)
	if err != nil {
		return err
	}

	if cfg.HasBootstrapSuperuser() {
		if err := bootstrapSuperuser(ctx, users, cfg); err != nil {
			return fmt.Errorf("failed to bootstrap superuser: %w", err)
		}
	}

	janitor := jobs.NewJanitor(collector)

	var limiter *middleware.RateLimiter
	if cfg.AuthRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.AuthRateLimit, collector)
		janitor.Add("rate_limit", limiter)
	}

	var oauthHandler *handlers.OAuthHandler
	if cfg.HasGoogle() {
		states, closeStates, err := newStateStore(ctx, cfg, janitor)
		if err != nil {
			return err
		}
		defer closeStates()

		provider := auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		oauthHandler = handlers.NewOAuthHandler(provider, users, states, handlers.OAuthConfig{
			FrontendRedirectURL: cfg.FrontendOAuthRedirectURL,
			LoginRedirectURL:    cfg.FrontendLoginRedirectURL,
			StateTTL:            cache.DefaultStateTTL,
		})
		log.Info("google sign-in enabled")
	}

	var janitorWorker *jobs.Worker
	if janitor.Len() > 0 {
		janitorWorker = jobs.NewWorker("janitor", janitor, janitorInterval)
		go janitorWorker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:         log,
		Users:          users,
		AuthHandler:    handlers.NewAuthHandler(users),
		UserHandler:    handlers.NewUserHandler(users),
		TodoHandler:    handlers.NewTodoHandler(todos),
		OAuthHandler:   oauthHandler,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(promRegistry),
		AuthLimiter:    limiter,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		DB:             pool,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	if janitorWorker != nil {
		janitorWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
}

func newMailSender(ctx context.Context, cfg *config.Config) (mailer.Sender, error) {
	if !cfg.HasSES() {
		return mailer.LogSender{}, nil
	}
	sender, err := mailer.NewSESSender(ctx, mailer.SESConfig{
		Region:          cfg.SESRegion,
		Endpoint:        cfg.SESEndpoint,
		AccessKeyID:     cfg.SESAccessKey,
		SecretAccessKey: cfg.SESSecretKey,
		From:            cfg.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure SES: %w", err)
	}
	return sender, nil
}

// newStateStore prefers Redis so several instances share sign-in state. The
// in-memory fallback is swept by the janitor.
func newStateStore(ctx context.Context, cfg *config.Config, janitor *jobs.Janitor) (handlers.StateStore, func(), error) {
	if cfg.HasRedis() {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return cache.NewRedisStateStore(client), func() { client.Close() }, nil
	}

	store := cache.NewMemoryStateStore()
	janitor.Add("oauth_state", store)
	return store, func() {}, nil
}

func bootstrapSuperuser(ctx context.Context, users *service.UserManager, cfg *config.Config) error {
	user, created, err := users.EnsureSuperuser(ctx, cfg.InitSuperuserEmail, cfg.InitSuperuserPassword)
	if err != nil {
		return err
	}
	if created {
		logger.FromContext(ctx).Info("bootstrap: created superuser", "email", user.Email, "user_id", user.ID)
	} else {
		logger.FromContext(ctx).Info("bootstrap: superuser already exists", "email", user.Email, "user_id", user.ID)
	}
	return nil
}
