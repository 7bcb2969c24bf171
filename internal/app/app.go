package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"planora/internal/config"
	"planora/internal/events"
	"planora/internal/handlers"
	"planora/internal/logger"
	"planora/internal/middleware"
	"planora/internal/models/project"
	"planora/internal/repository"
	"planora/internal/repository/task/inmemory"
	"planora/internal/repository/task/postgres"
	"planora/internal/repository/task/rest"
	"planora/internal/scheduler"
	"planora/internal/service"
	"planora/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	backend   repository.Backend // интерфейс!
	sessions  *service.Sessions
	hub       *events.Hub
	worker    *worker.ReloadWorker
	shutdowns []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development, a.config.Logging.Level); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	backend, err := a.initBackend(ctx)
	if err != nil {
		return err
	}
	a.backend = backend

	a.hub = events.NewHub(a.config.Sync.EventBuffer)
	a.sessions = service.NewSessions(a.backend, a.backend, a.backend, a.newScheduler)
	a.worker = worker.NewReloadWorker(a.sessions, &a.config.Worker.ReloadInterval)
	a.router = a.buildRouter()

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
		WriteTimeout:      a.config.Server.WriteTimeout,
	}
	return nil
}

func (a *App) initBackend(ctx context.Context) (repository.Backend, error) {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, a.config.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)

		if a.config.Database.Migrate {
			if err := storage.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("миграции: %w", err)
			}
		}
		logger.Info("Repository: используется postgres")
		return storage, nil

	case config.RepositoryInMemory:
		storage := inmemory.NewTaskStorage()
		for _, id := range a.config.Repository.SeedProjects {
			storage.AddProjects(project.Project{ID: id, Name: id})
		}
		logger.Info("Repository: используется inmemory", zap.Strings("projects", a.config.Repository.SeedProjects))
		return storage, nil

	default:
		client, err := rest.New(a.config.Repository.BaseURL, a.config.Repository.Timeout)
		if err != nil {
			return nil, fmt.Errorf("клиент бэкенда: %w", err)
		}
		logger.Info("Repository: используется REST бэкенд", zap.String("base_url", a.config.Repository.BaseURL))
		return client, nil
	}
}

func (a *App) newScheduler(projectID string) service.Scheduler {
	return scheduler.New(a.backend,
		scheduler.WithDelay(a.config.Sync.Delay),
		scheduler.WithRetries(a.config.Sync.MaxRetries),
		scheduler.WithBackoff(a.config.Sync.Backoff),
		scheduler.WithCallTimeout(a.config.Sync.CallTimeout),
		scheduler.WithReporter(a.hub.Reporter(projectID)),
	)
}

func (a *App) buildRouter() *chi.Mux {
	h := handlers.NewTaskHandler(a.sessions, a.hub)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))

	// поток событий живёт дольше обычного запроса
	r.Get("/projects/{projectID}/events", h.StreamEvents(a.config.CORS.AllowedOrigins))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.config.Server.RequestTimeout))
		h.Routes(r)
	})
	return r
}

func (a *App) Handler() http.Handler {
	return a.router
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливается
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go a.worker.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP: сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("HTTP: получен сигнал остановки")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http сервер: %w", err)
		}
	}

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown останавливает сервер, закрывает доски с отправкой очередей,
// затем освобождает ресурсы в обратном порядке.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("остановка сервера: %w", err))
		}
	}
	if a.sessions != nil {
		if err := a.sessions.CloseAll(ctx); err != nil {
			logger.Warn("Service: при закрытии досок часть изменений не отправлена", zap.Error(err))
			errs = append(errs, err)
		}
	}

	for _, fn := range slices.Backward(a.shutdowns) {
		fn()
	}
	a.shutdowns = nil
	return errors.Join(errs...)
}
