package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"planora/internal/logger"
	"planora/internal/models/project"
	"planora/internal/models/task"
	"planora/internal/models/user"
	repo "planora/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStorage играет роль бэкенда без сети: назначает id и created_at,
// хранит порядок создания.
type TaskStorage struct {
	storage  map[string]*task.Task
	mtx      *sync.RWMutex
	ids      []string
	users    []user.User
	projects map[string]project.Project
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage:  make(map[string]*task.Task),
		mtx:      &sync.RWMutex{},
		ids:      []string{},
		users:    []user.User{},
		projects: make(map[string]project.Project),
	}
}

var _ repo.Backend = (*TaskStorage)(nil)

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

// Seed кладёт готовые задачи как есть, без назначения id.
// Проекты задач, которых ещё нет, заводятся с именем по id.
func (s *TaskStorage) Seed(tasks ...task.Task) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, t := range tasks {
		c := t.Clone()
		if _, ok := s.storage[c.ID]; !ok {
			s.ids = append(s.ids, c.ID)
		}
		s.storage[c.ID] = &c
		if _, ok := s.projects[c.ProjectID]; !ok {
			s.projects[c.ProjectID] = project.Project{ID: c.ProjectID, Name: c.ProjectID}
		}
	}
}

func (s *TaskStorage) AddProjects(projects ...project.Project) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, p := range projects {
		s.projects[p.ID] = p
	}
}

func (s *TaskStorage) GetProject(ctx context.Context, id string) (*project.Project, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("проект %s: %w", id, repo.ErrNotFound)
	}
	return &p, nil
}

func (s *TaskStorage) AddUsers(users ...user.User) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.users = append(s.users, users...)
}

func (s *TaskStorage) ListUsers(ctx context.Context) ([]user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	res := make([]user.User, len(s.users))
	copy(res, s.users)
	return res, nil
}

func (s *TaskStorage) CreateTask(ctx context.Context, payload task.Task) (*task.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, &repo.APIError{StatusCode: 422, Detail: err.Error()}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.projects[payload.ProjectID]; !ok {
		return nil, fmt.Errorf("проект %s: %w", payload.ProjectID, repo.ErrNotFound)
	}

	created := payload.Clone()
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now().UTC()
	created.AssigneeName = ""

	s.storage[created.ID] = &created
	s.ids = append(s.ids, created.ID)

	res := created.Clone()
	return &res, nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, &repo.APIError{StatusCode: 422, Detail: err.Error()}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if payload.ProjectID != existing.ProjectID {
		return nil, repo.ErrConflict
	}

	updated := payload.Clone()
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.AssigneeName = ""
	s.storage[id] = &updated

	res := updated.Clone()
	return &res, nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, id string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

// FetchTasks отдаёт задачи в порядке создания с учётом фильтра и пагинации
func (s *TaskStorage) FetchTasks(ctx context.Context, filter repo.Filter) ([]task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []task.Task{}
	skipped := 0

	for _, id := range s.ids {
		if filter.Limit > 0 && len(res) >= filter.Limit {
			break
		}

		t := s.storage[id]
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && (t.AssignedTo == nil || *t.AssignedTo != filter.AssignedTo) {
			continue
		}
		if skipped < filter.Skip {
			skipped++
			continue
		}

		res = append(res, t.Clone())
	}

	logger.Debug("Repository: задачи выбраны",
		zap.String("project_id", filter.ProjectID),
		zap.Int("count", len(res)),
	)
	return res, nil
}
