package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskBoard/internal/auth"
	"taskBoard/internal/config"
	"taskBoard/internal/handlers"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/notify"
	"taskBoard/internal/repository/task/cache"
	"taskBoard/internal/repository/task/inmemory"
	"taskBoard/internal/repository/task/postgres"
	"taskBoard/internal/service"
	"taskBoard/internal/worker"

	"github.com/MicahParks/keyfunc"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	serviceName         = "task-board"
	jwksRefreshInterval = time.Hour
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.TaskRepository
	verifier   *auth.Verifier
	service    *service.TaskService
	worker     *worker.SessionSweeper
	shutdowns  []func()
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init builds every component. On error the components built so far are
// released by Shutdown.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.onShutdown(func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	if err := a.initRepository(ctx); err != nil {
		return err
	}
	if err := a.initVerifier(); err != nil {
		return err
	}

	a.service = service.NewTaskService(a.repository, auth.NewIdentity(a.verifier), notify.NewLog())
	a.worker = worker.NewSessionSweeper(a.service, &a.config.Sessions.SweepInterval, &a.config.Sessions.IdleTimeout)
	a.router = a.routes()

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, serviceName),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("App: initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.Bool("cache", a.config.Cache.RedisURL != ""),
		zap.Bool("jwks", a.config.Auth.JWKSURL != ""))
	return nil
}

func (a *App) initRepository(ctx context.Context) error {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		db := a.config.Database
		if db.Migrate {
			if err := postgres.Migrate(db.URL); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}
		storage, err := postgres.New(ctx, db.URL, postgres.PoolConfig{
			MaxConns:        db.MaxConnections,
			MinConns:        db.MinConnections,
			MaxConnIdleTime: db.IdleTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.onShutdown(func() {
			logger.Info("App: closing database pool")
			storage.Close()
		})
		a.repository = storage
	default:
		a.repository = inmemory.NewTaskStorage()
	}

	if a.config.Cache.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(a.config.Cache.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.onShutdown(func() {
		logger.Info("App: closing redis client")
		if err := client.Close(); err != nil {
			logger.Warn("App: redis close failed", zap.Error(err))
		}
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	a.repository = cache.New(a.repository, client, a.config.Cache.TTL)
	return nil
}

func (a *App) initVerifier() error {
	cfg := a.config.Auth

	var opts []auth.Option
	if cfg.Audience != "" {
		opts = append(opts, auth.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Issuer))
	}

	if cfg.JWKSURL == "" {
		a.verifier = auth.NewHS256([]byte(cfg.Secret), opts...)
		return nil
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval: jwksRefreshInterval,
		RefreshErrorHandler: func(err error) {
			logger.Warn("App: JWKS refresh failed", zap.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	a.onShutdown(jwks.EndBackground)

	a.verifier = auth.NewJWKS(jwks, opts...)
	return nil
}

func (a *App) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)
	r.Use(chimw.Timeout(a.config.Server.RequestTimeout))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))

	handlers.NewTaskHandler(a.service).Register(r, middleware.Authenticate(a.verifier))
	return r
}

// Handler is the fully wrapped HTTP handler the server runs.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled or the server fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go a.worker.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("App: shutdown requested")
	case err, ok := <-serverErr:
		if ok {
			logger.Error("App: server failed", err)
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("App: graceful shutdown failed", err)
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}

	a.Shutdown()
	return runErr
}

// Shutdown releases resources in reverse order of acquisition.
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}

func (a *App) onShutdown(fn func()) {
	a.shutdowns = append(a.shutdowns, fn)
}
