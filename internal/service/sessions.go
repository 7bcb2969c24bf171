package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"planora/internal/logger"
	"planora/internal/repository"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sessions хранит открытые доски, по одной на проект
type Sessions struct {
	tasks        repository.TaskRepository
	users        repository.UserRepository
	projects     repository.ProjectRepository
	newScheduler SchedulerFactory

	mu     sync.Mutex
	stores map[string]*TaskStore
}

// NewSessions: без projects доска открывается для любого id
func NewSessions(tasks repository.TaskRepository, users repository.UserRepository, projects repository.ProjectRepository, factory SchedulerFactory) *Sessions {
	return &Sessions{
		tasks:        tasks,
		users:        users,
		projects:     projects,
		newScheduler: factory,
		stores:       make(map[string]*TaskStore),
	}
}

// Open возвращает открытую доску проекта или создаёт и загружает новую.
// Для неизвестного бэкенду проекта доска не создаётся.
func (s *Sessions) Open(ctx context.Context, projectID string) (*TaskStore, error) {
	if projectID == "" {
		return nil, NewValidationError("project_id", "не может быть пустым")
	}
	if store, ok := s.Get(projectID); ok {
		return store, nil
	}
	if err := s.checkProject(ctx, projectID); err != nil {
		return nil, err
	}

	store := NewTaskStore(projectID, s.tasks, s.users, s.newScheduler(projectID))
	if err := store.Load(ctx); err != nil {
		store.Close(ctx)
		return nil, err
	}

	s.mu.Lock()
	// параллельный Open успел раньше
	if existing, ok := s.stores[projectID]; ok {
		s.mu.Unlock()
		store.Close(ctx)
		return existing, nil
	}
	s.stores[projectID] = store
	s.mu.Unlock()

	logger.Info("Service: доска открыта", zap.String("project_id", projectID))
	return store, nil
}

func (s *Sessions) checkProject(ctx context.Context, projectID string) error {
	if s.projects == nil {
		return nil
	}
	p, err := s.projects.GetProject(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("Service: доска для неизвестного проекта", zap.String("project_id", projectID))
		return NewNotFound("проект", projectID)
	}
	if err != nil {
		logger.Error("Service: не удалось получить проект", err, zap.String("project_id", projectID))
		return NewBackendError("getProject", err)
	}
	logger.Debug("Service: проект найден",
		zap.String("project_id", p.ID),
		zap.String("name", p.Name),
	)
	return nil
}

func (s *Sessions) Get(projectID string) (*TaskStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.stores[projectID]
	return store, ok
}

// Close закрывает доску и дожидается отправки её очереди
func (s *Sessions) Close(ctx context.Context, projectID string) error {
	s.mu.Lock()
	store, ok := s.stores[projectID]
	delete(s.stores, projectID)
	s.mu.Unlock()

	if !ok {
		return NewNotFound("доска", projectID)
	}
	if err := store.Close(ctx).Err(); err != nil {
		return fmt.Errorf("закрытие доски %s: %w", projectID, err)
	}
	return nil
}

// CloseAll закрывает все доски параллельно, ошибки синхронизации объединяются
func (s *Sessions) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	stores := s.stores
	s.stores = make(map[string]*TaskStore)
	s.mu.Unlock()

	var (
		mu   sync.Mutex
		errs error
		wg   conc.WaitGroup
	)
	for projectID, store := range stores {
		wg.Go(func() {
			if err := store.Close(ctx).Err(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("доска %s: %w", projectID, err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}

// Each обходит снимок открытых досок
func (s *Sessions) Each(fn func(*TaskStore)) {
	s.mu.Lock()
	stores := make([]*TaskStore, 0, len(s.stores))
	for _, store := range s.stores {
		stores = append(stores, store)
	}
	s.mu.Unlock()

	for _, store := range stores {
		fn(store)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

func (s *Sessions) HealthCheck(ctx context.Context) error {
	if err := s.tasks.HealthCheck(ctx); err != nil {
		return NewBackendError("healthCheck", err)
	}
	return nil
}
