package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"restopay/internal/app/engine"
	"restopay/internal/domain/attendance"
	"restopay/internal/domain/audit"
	"restopay/internal/domain/auth"
	"restopay/internal/domain/reports"
	"restopay/internal/platform/config"
	"restopay/internal/platform/db"
	"restopay/internal/platform/events"
	"restopay/internal/platform/jobs"
	"restopay/internal/platform/metrics"
	attendancehandler "restopay/internal/transport/http/handlers/attendance"
	audithandler "restopay/internal/transport/http/handlers/audit"
	jobshandler "restopay/internal/transport/http/handlers/jobs"
	"restopay/internal/transport/http/middleware"
)

// App is the wired service: database, reconciliation engine, background jobs
// and the HTTP router.
type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Engine *engine.Engine
	Jobs   *jobs.Service
	Router http.Handler

	closers []func()
}

// Routes are the pieces NewRouter mounts.
type Routes struct {
	Attendance *attendancehandler.Handler
	Jobs       *jobshandler.Handler
	Audit      *audithandler.Handler

	// Ready reports whether the dependencies needed to serve are reachable.
	Ready func(ctx context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app.DB = pool
	app.closers = append(app.closers, pool.Close)

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	observers := []attendance.Observer{metrics.Observer()}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewKafkaProducer(cfg.KafkaBrokers)
		app.closers = append(app.closers, func() {
			if err := producer.Close(); err != nil {
				slog.Warn("kafka producer close failed", "err", err)
			}
		})
		observers = append(observers, events.NewAlertPublisher(producer, cfg.AlertTopic, attendance.Severity(cfg.AlertMinSeverity)))
		slog.Info("issue alerts enabled", "topic", cfg.AlertTopic, "minSeverity", cfg.AlertMinSeverity)
	}

	var (
		rules  *config.Rules
		loader *config.RulesLoader
	)
	if cfg.RulesFile != "" {
		loader, err = config.NewRulesLoader(cfg.RulesFile, engine.Validator(cfg))
		if err != nil {
			app.Close()
			return nil, err
		}
		rules = loader.Rules()
	}

	store := attendance.NewStore(pool)
	eng, err := engine.New(cfg, rules, store, observers...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = eng

	if loader != nil {
		loader.OnChange(func(r *config.Rules) {
			if err := eng.Apply(r); err != nil {
				slog.Warn("rules rejected", "path", cfg.RulesFile, "err", err)
			}
		})
		stop, err := loader.Watch()
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, stop)
	}

	app.Jobs = jobs.New(pool, cfg, eng)

	perms := auth.NewStaticPermissions(auth.RolePermissions)
	auditLog := audit.New(pool)
	attendanceHandler := attendancehandler.NewHandler(eng, store, store, reports.NewService(cfg.ReportDir), perms)
	attendanceHandler.Location = loc
	attendanceHandler.Audit = auditLog

	app.Router = NewRouter(cfg, Routes{
		Attendance: attendanceHandler,
		Jobs:       jobshandler.NewHandler(app.Jobs, perms),
		Audit:      audithandler.NewHandler(auditLog, perms),
		Ready:      pool.Ping,
	})
	return app, nil
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func NewRouter(cfg config.Config, routes Routes) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if routes.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := routes.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if routes.Attendance != nil {
			routes.Attendance.RegisterRoutes(r)
		}
		if routes.Jobs != nil {
			routes.Jobs.RegisterRoutes(r)
		}
		if routes.Audit != nil {
			routes.Audit.RegisterRoutes(r)
		}
	})
	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	app.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("restopay server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
