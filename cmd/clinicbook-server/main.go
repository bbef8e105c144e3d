package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicbook/clinicbook/internal/config"
	"github.com/clinicbook/clinicbook/internal/domain/assistant"
	"github.com/clinicbook/clinicbook/internal/domain/clinic"
	"github.com/clinicbook/clinicbook/internal/domain/records"
	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
	"github.com/clinicbook/clinicbook/internal/platform/auth"
	"github.com/clinicbook/clinicbook/internal/platform/db"
	"github.com/clinicbook/clinicbook/internal/platform/middleware"
	"github.com/clinicbook/clinicbook/internal/platform/supa"
	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
	"github.com/clinicbook/clinicbook/internal/platform/websocket"
	"github.com/clinicbook/clinicbook/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicbook-server",
		Short: "ClinicBook appointment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres backend only)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.UsesSupabase() {
		return nil, nil, errors.New("migrations run against DATABASE_URL; apply them in the Supabase SQL editor for the supabase backend")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores groups the repositories of one storage backend.
type stores struct {
	branches  clinic.BranchRepository
	doctors   clinic.DoctorRepository
	patients  clinic.PatientRepository
	appts     scheduling.AppointmentRepository
	overrides scheduling.OverrideRepository
	conflicts scheduling.ConflictRepository
	records   records.Repository
	tx        db.TxRunner
	pinger    db.Pinger
	close     func()
}

func postgresStores(pool db.Pool, pinger db.Pinger) *stores {
	return &stores{
		branches:  clinic.NewBranchRepoPG(pool),
		doctors:   clinic.NewDoctorRepoPG(pool),
		patients:  clinic.NewPatientRepoPG(pool),
		appts:     scheduling.NewAppointmentRepoPG(pool),
		overrides: scheduling.NewOverrideRepoPG(pool),
		conflicts: scheduling.NewConflictRepoPG(pool),
		records:   records.NewRepoPG(pool),
		tx:        db.NewTxRunner(pool),
		pinger:    pinger,
		close:     func() {},
	}
}

func supabaseStores(client supa.Client) *stores {
	return &stores{
		branches:  clinic.NewBranchRepoSupabase(client),
		doctors:   clinic.NewDoctorRepoSupabase(client),
		patients:  clinic.NewPatientRepoSupabase(client),
		appts:     scheduling.NewAppointmentRepoSupabase(client),
		overrides: scheduling.NewOverrideRepoSupabase(client),
		conflicts: scheduling.NewConflictRepoSupabase(client),
		records:   records.NewRepoSupabase(client),
		tx:        db.NoTx{},
		pinger:    supa.NewPinger(client, "branches"),
		close:     func() {},
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.UsesSupabase() {
		client, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return supabaseStores(client), nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	s := postgresStores(pool, pool)
	s.close = pool.Close
	return s, nil
}

func resolverConfig(cfg *config.Config) scheduling.ResolverConfig {
	return scheduling.ResolverConfig{
		MaxConcurrency:   cfg.ResolverMaxConcurrency,
		CandidateTimeout: cfg.ResolverCandidateTimeout,
		RequestTimeout:   cfg.ResolverRequestTimeout,
		Limit:            cfg.AlternativesLimit,
	}
}

// conflictSink writes to the store and, when redis is configured, mirrors
// each conflict onto a stream.
func conflictSink(repo scheduling.ConflictRepository, rdb redis.Cmdable) scheduling.ConflictSink {
	if rdb == nil {
		return scheduling.NewRepoSink(repo)
	}
	return scheduling.FanOutSink{
		scheduling.NewRepoSink(repo),
		scheduling.NewRedisStreamSink(rdb, scheduling.DefaultConflictStream),
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// app holds the wired services behind the HTTP surface.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	stores    *stores
	hub       *websocket.Hub
	emitter   *scheduling.ConflictEmitter
	assistant *assistant.Service

	clinicSvc  *clinic.Service
	checker    *scheduling.Checker
	resolver   *scheduling.Resolver
	booking    *scheduling.BookingService
	grid       *scheduling.Grid
	recordsSvc *records.Service
}

func newApp(cfg *config.Config, s *stores, sink scheduling.ConflictSink, llm assistant.LLMClient,
	logger zerolog.Logger, metrics *telemetry.Metrics) *app {
	a := &app{cfg: cfg, logger: logger, metrics: metrics, stores: s}

	a.hub = websocket.NewHub(logger)
	a.emitter = scheduling.NewConflictEmitter(sink, cfg.ConflictBuffer, logger, metrics)

	a.clinicSvc = clinic.NewService(s.branches, s.doctors, s.patients)
	a.checker = scheduling.NewChecker(s.appts, s.overrides, metrics)
	a.resolver = scheduling.NewResolver(a.checker, s.doctors, s.branches, a.emitter, resolverConfig(cfg), logger, metrics)
	a.booking = scheduling.NewBookingService(s.appts, s.overrides, a.checker, s.tx, a.hub, logger)
	a.grid = scheduling.NewGrid(s.overrides)
	a.recordsSvc = records.NewService(s.records, s.appts, s.tx, a.hub, logger)

	loader := assistant.NewStoreLoader(s.patients, s.doctors, s.records, s.appts, logger)
	a.assistant = assistant.NewService(llm, loader, cfg.GeminiModel, logger, metrics)
	return a
}

func (a *app) router() *echo.Echo {
	cfg := a.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Metrics(a.metrics))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware([]byte(cfg.JWTSecret)))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.JWTSecret)}))
	}
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(a.stores.pinger, cfg.StoreBackend))
	e.GET("/metrics", a.metrics.Handler())
	websocket.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	clinic.NewHandler(a.clinicSvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.checker, a.resolver, a.booking, a.grid).RegisterRoutes(apiV1)
	records.NewHandler(a.recordsSvc).RegisterRoutes(apiV1)
	assistant.NewHandler(a.assistant).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	s, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer s.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("connected to store")

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; conflicts go to the store only")
		} else {
			defer rdb.Close()
		}
	}
	var sinkRedis redis.Cmdable
	if rdb != nil {
		sinkRedis = rdb
	}

	var llm assistant.LLMClient
	if assistant.KeyConfigured(cfg.GeminiAPIKey) {
		gemini, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn().Err(err).Msg("assistant disabled")
		} else {
			defer gemini.Close()
			llm = gemini
		}
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not configured; assistant chat will return errors")
	}

	a := newApp(cfg, s, conflictSink(s.conflicts, sinkRedis), llm, logger, metrics)
	e := a.router()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := a.emitter.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("conflict emitter did not drain")
	}
	logger.Info().Msg("server stopped")
	return nil
}
