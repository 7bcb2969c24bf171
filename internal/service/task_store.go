package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"planora/internal/logger"
	"planora/internal/models/task"
	"planora/internal/models/user"
	"planora/internal/repository"
	"planora/internal/scheduler"

	"go.uber.org/zap"
)

// TaskStore - локальная копия задач одного проекта.
// Смена статуса и удаление применяются сразу и уходят на бэкенд через
// планировщик; создание и редактирование ждут ответа бэкенда.
type TaskStore struct {
	projectID string
	tasks     repository.TaskRepository
	users     repository.UserRepository
	sched     Scheduler

	mu     sync.RWMutex
	list   []task.Task
	dir    user.Directory
	loaded bool
	closed bool
}

func NewTaskStore(projectID string, tasks repository.TaskRepository, users repository.UserRepository, sched Scheduler) *TaskStore {
	return &TaskStore{
		projectID: projectID,
		tasks:     tasks,
		users:     users,
		sched:     sched,
		list:      []task.Task{},
		dir:       user.Directory{},
	}
}

func (s *TaskStore) ProjectID() string {
	return s.projectID
}

// Load заполняет список при открытии доски
func (s *TaskStore) Load(ctx context.Context) error {
	fetched, dir, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewViewClosed(s.projectID)
	}
	s.list = fetched
	s.dir = dir
	s.loaded = true

	logger.Info("Service: доска загружена",
		zap.String("project_id", s.projectID),
		zap.Int("tasks", len(fetched)),
	)
	return nil
}

// Reload перечитывает список с бэкенда. Для задач с операцией в очереди
// или в отправке остаётся локальная копия, чтобы перечитывание не откатило
// перетаскивание. Снимок очереди берётся до и после запроса: операция,
// завершившаяся во время запроса, могла не попасть в ответ.
func (s *TaskStore) Reload(ctx context.Context) ([]task.Task, error) {
	before := s.sched.Pending()
	fetched, dir, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	after := s.sched.Pending()
	keepLocal := func(id string) bool {
		return before.Touches(id) || after.Touches(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewViewClosed(s.projectID)
	}

	local := make(map[string]task.Task, len(s.list))
	for _, t := range s.list {
		local[t.ID] = t
	}

	merged := make([]task.Task, 0, len(fetched))
	for _, t := range fetched {
		if keepLocal(t.ID) {
			l, ok := local[t.ID]
			if !ok {
				// удалена локально
				continue
			}
			t = l
		}
		merged = append(merged, t)
	}

	s.list = merged
	s.dir = dir
	s.loaded = true
	return cloneTasks(s.list), nil
}

func (s *TaskStore) fetch(ctx context.Context) ([]task.Task, user.Directory, error) {
	if s.isClosed() {
		return nil, nil, NewViewClosed(s.projectID)
	}

	fetched, err := s.tasks.FetchTasks(ctx, repository.Filter{ProjectID: s.projectID})
	if err != nil {
		logger.Error("Service: не удалось получить задачи", err, zap.String("project_id", s.projectID))
		return nil, nil, NewBackendError("fetchTasks", err)
	}

	dir := user.Directory{}
	if s.users != nil {
		users, err := s.users.ListUsers(ctx)
		if err != nil {
			// без справочника доска работает, исполнители показываются как Unassigned
			logger.Warn("Service: не удалось получить пользователей",
				zap.String("project_id", s.projectID),
				zap.Error(err),
			)
		} else {
			dir = user.NewDirectory(users)
		}
	}

	list := make([]task.Task, 0, len(fetched))
	for _, t := range fetched {
		if t.ProjectID != s.projectID {
			continue
		}
		if !t.Status.Valid() {
			logger.Warn("Service: задача с неизвестным статусом",
				zap.String("project_id", s.projectID),
				zap.String("task_id", t.ID),
				zap.String("status", string(t.Status)),
			)
		}
		t = t.Clone()
		t.AssigneeName = dir.DisplayName(t.AssignedTo)
		list = append(list, t)
	}
	return list, dir, nil
}

func (s *TaskStore) Tasks() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.list)
}

func (s *TaskStore) Get(id string) (task.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.list[i].Clone(), true
	}
	return task.Task{}, false
}

// SetStatus меняет статус локально и ставит полную задачу в очередь.
// Несуществующий id не ошибка: список возвращается без изменений.
func (s *TaskStore) SetStatus(id string, status task.Status) ([]task.Task, error) {
	if _, err := task.ParseStatus(string(status)); err != nil {
		return nil, NewValidationError("status", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewViewClosed(s.projectID)
	}

	i := s.indexLocked(id)
	if i < 0 {
		return cloneTasks(s.list), nil
	}
	s.list[i].Status = status
	s.sched.QueueUpdate(s.list[i].Clone())
	s.sched.RequestFlush()
	return cloneTasks(s.list), nil
}

// Remove убирает задачу локально и ставит удаление в очередь.
// Повторное удаление ничего не ставит.
func (s *TaskStore) Remove(id string) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewViewClosed(s.projectID)
	}

	i := s.indexLocked(id)
	if i < 0 {
		return cloneTasks(s.list), nil
	}
	s.list = slices.Delete(s.list, i, i+1)
	s.sched.QueueDelete(id)
	s.sched.RequestFlush()
	return cloneTasks(s.list), nil
}

// Create не оптимистичен: задача появляется только после ответа бэкенда
func (s *TaskStore) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if s.isClosed() {
		return task.Task{}, NewViewClosed(s.projectID)
	}
	if err := draft.Validate(); err != nil {
		return task.Task{}, fromValidation(err)
	}

	created, err := s.tasks.CreateTask(ctx, draft.ToTask(s.projectID))
	if err != nil {
		logger.Error("Service: задача не создана", err, zap.String("project_id", s.projectID))
		return task.Task{}, fromBackend("createTask", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := created.Clone()
	res.AssigneeName = s.dir.DisplayName(res.AssignedTo)
	if s.closed {
		logger.Debug("Service: ответ создания после закрытия доски отброшен", zap.String("task_id", res.ID))
		return res, nil
	}
	s.list = append(s.list, res)
	return res.Clone(), nil
}

func (s *TaskStore) UpdateWith(ctx context.Context, id string, options ...task.TaskOption) (task.Task, error) {
	current, ok := s.Get(id)
	if !ok {
		return task.Task{}, NewNotFound("задача", id)
	}
	return s.Update(ctx, id, task.Apply(current, options...))
}

// Update отправляет полную задачу сразу, без очереди.
// При ошибке локальный список не меняется.
func (s *TaskStore) Update(ctx context.Context, id string, payload task.Task) (task.Task, error) {
	if s.isClosed() {
		return task.Task{}, NewViewClosed(s.projectID)
	}
	if _, ok := s.Get(id); !ok {
		return task.Task{}, NewNotFound("задача", id)
	}

	payload = payload.Clone()
	payload.ID = id
	if payload.ProjectID == "" {
		payload.ProjectID = s.projectID
	}
	if payload.ProjectID != s.projectID {
		return task.Task{}, NewValidationError("project_id", fmt.Sprintf("задачу нельзя перенести в проект %s", payload.ProjectID))
	}
	if err := payload.Validate(); err != nil {
		return task.Task{}, fromValidation(err)
	}

	updated, err := s.tasks.UpdateTask(ctx, id, payload)
	if err != nil {
		logger.Error("Service: задача не обновлена", err,
			zap.String("project_id", s.projectID),
			zap.String("task_id", id),
		)
		return task.Task{}, fromBackend("updateTask", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res := updated.Clone()
	res.AssigneeName = s.dir.DisplayName(res.AssignedTo)
	if s.closed {
		return res, nil
	}

	// задачу удалили, пока шёл запрос: обратно не добавляем
	i := s.indexLocked(id)
	if i < 0 {
		return res, nil
	}
	s.list[i] = res
	// в очереди могла остаться более старая полная копия этой задачи
	if s.sched.Pending().HasUpdate(id) {
		s.sched.QueueUpdate(res.Clone())
	}
	return res.Clone(), nil
}

func (s *TaskStore) Board() task.Board {
	return task.GroupByStatus(s.Tasks())
}

func (s *TaskStore) Stats(now time.Time) task.Stats {
	return task.ComputeStats(s.Tasks(), now)
}

func (s *TaskStore) Pending() scheduler.Pending {
	return s.sched.Pending()
}

func (s *TaskStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *TaskStore) Closed() bool {
	return s.isClosed()
}

// Close закрывает доску: мутации больше не принимаются,
// очередь отправляется до конца.
func (s *TaskStore) Close(ctx context.Context) scheduler.Report {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return scheduler.Report{}
	}
	s.closed = true
	s.mu.Unlock()

	report := s.sched.Close(ctx)
	logger.Info("Service: доска закрыта",
		zap.String("project_id", s.projectID),
		zap.Int("flushed", len(report.Results)),
		zap.Int("failed", len(report.Failed())),
	)
	return report
}

func (s *TaskStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *TaskStore) indexLocked(id string) int {
	return slices.IndexFunc(s.list, func(t task.Task) bool { return t.ID == id })
}

func cloneTasks(tasks []task.Task) []task.Task {
	res := make([]task.Task, len(tasks))
	for i, t := range tasks {
		res[i] = t.Clone()
	}
	return res
}
