package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"planora/internal/models/project"
	"planora/internal/models/task"
	"planora/internal/models/user"
	"planora/internal/repository"
	"planora/internal/scheduler"
	"planora/internal/scheduler/schedulertest"
	"planora/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskRepository - мок бэкенда задач
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskRepository) FetchTasks(ctx context.Context, filter repository.Filter) ([]task.Task, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]task.Task), args.Error(1)
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, payload task.Task) (*task.Task, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error) {
	args := m.Called(ctx, id, payload)
	if fn, ok := args.Get(0).(func(context.Context, string, task.Task) *task.Task); ok {
		return fn(ctx, id, payload), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) GetProject(ctx context.Context, id string) (*project.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*project.Project), args.Error(1)
}

var _ repository.TaskRepository = (*MockTaskRepository)(nil)
var _ repository.ProjectRepository = (*MockTaskRepository)(nil)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) ListUsers(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

const projectID = "p1"

func strPtr(s string) *string {
	return &s
}

func seedTasks() []task.Task {
	return []task.Task{
		{ID: "a", ProjectID: projectID, Title: "Design", Status: task.StatusTodo, AssignedTo: strPtr("u1")},
		{ID: "b", ProjectID: projectID, Title: "Build", Status: task.StatusTodo},
		{ID: "c", ProjectID: projectID, Title: "Ship", Status: task.StatusInProgress, AssignedTo: strPtr("ghost")},
	}
}

func echoUpdates(m *MockTaskRepository) {
	m.On("UpdateTask", mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, payload task.Task) *task.Task {
			return &payload
		}, nil)
}

type fixture struct {
	repo  *MockTaskRepository
	users *MockUserRepository
	clock *schedulertest.FakeClock
	store *service.TaskStore
}

func newFixture(t *testing.T, tasks []task.Task) *fixture {
	t.Helper()
	f := &fixture{
		repo:  new(MockTaskRepository),
		users: new(MockUserRepository),
		clock: schedulertest.NewFakeClock(),
	}
	f.repo.On("FetchTasks", mock.Anything, repository.Filter{ProjectID: projectID}).Return(tasks, nil)
	f.users.On("ListUsers", mock.Anything).Return([]user.User{{ID: "u1", Username: "alice"}}, nil)

	sched := scheduler.New(f.repo, scheduler.WithClock(f.clock))
	f.store = service.NewTaskStore(projectID, f.repo, f.users, sched)
	require.NoError(t, f.store.Load(context.Background()))
	return f
}

func statusOf(t *testing.T, store *service.TaskStore, id string) task.Status {
	t.Helper()
	tk, ok := store.Get(id)
	require.True(t, ok)
	return tk.Status
}

func TestTaskStore_Load(t *testing.T) {
	tasks := append(seedTasks(),
		task.Task{ID: "x", ProjectID: "other", Title: "Foreign", Status: task.StatusTodo},
		task.Task{ID: "d", ProjectID: projectID, Title: "Legacy", Status: "doing"},
	)
	f := newFixture(t, tasks)

	list := f.store.Tasks()
	require.Len(t, list, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{list[0].ID, list[1].ID, list[2].ID, list[3].ID})
	assert.Equal(t, "alice", list[0].AssigneeName)
	assert.Equal(t, user.Unassigned, list[1].AssigneeName)
	assert.Equal(t, user.Unassigned, list[2].AssigneeName)

	board := f.store.Board()
	assert.Len(t, board.Todo, 2)
	assert.Len(t, board.InProgress, 1)
	require.Len(t, board.Unknown, 1)
	assert.Equal(t, "d", board.Unknown[0].ID)
	assert.True(t, f.store.Loaded())
}

func TestTaskStore_Load_Errors(t *testing.T) {
	t.Run("fetch failure is a backend error", func(t *testing.T) {
		repo := new(MockTaskRepository)
		repo.On("FetchTasks", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		store := service.NewTaskStore(projectID, repo, nil, scheduler.New(repo))

		err := store.Load(context.Background())
		require.Error(t, err)
		assert.True(t, service.IsCode(err, service.CodeBackend))
		assert.False(t, store.Loaded())
	})

	t.Run("users failure leaves names unassigned", func(t *testing.T) {
		repo := new(MockTaskRepository)
		users := new(MockUserRepository)
		repo.On("FetchTasks", mock.Anything, mock.Anything).Return(seedTasks(), nil)
		users.On("ListUsers", mock.Anything).Return(nil, errors.New("boom"))
		store := service.NewTaskStore(projectID, repo, users, scheduler.New(repo))

		require.NoError(t, store.Load(context.Background()))
		tk, ok := store.Get("a")
		require.True(t, ok)
		assert.Equal(t, user.Unassigned, tk.AssigneeName)
	})
}

func TestTaskStore_SetStatus_IsOptimistic(t *testing.T) {
	f := newFixture(t, seedTasks())
	echoUpdates(f.repo)

	list, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)

	// изменение видно сразу, сеть ещё не тронута
	assert.Equal(t, task.StatusDone, list[0].Status)
	assert.Equal(t, task.StatusDone, statusOf(t, f.store, "a"))
	f.repo.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{"a"}, f.store.Pending().Updates)

	f.clock.Advance(scheduler.DefaultDelay)
	f.repo.AssertNumberOfCalls(t, "UpdateTask", 1)
	assert.True(t, f.store.Pending().Empty())
}

func TestTaskStore_SetStatus_Coalesces(t *testing.T) {
	f := newFixture(t, seedTasks())
	f.repo.On("UpdateTask", mock.Anything, "a", mock.MatchedBy(func(p task.Task) bool {
		return p.Status == task.StatusDone && p.Title == "Design"
	})).Return(&task.Task{ID: "a", ProjectID: projectID, Title: "Design", Status: task.StatusDone}, nil).Once()

	for _, st := range []task.Status{task.StatusInProgress, task.StatusTodo, task.StatusDone} {
		_, err := f.store.SetStatus("a", st)
		require.NoError(t, err)
		f.clock.Advance(100 * time.Millisecond)
	}
	f.clock.Advance(scheduler.DefaultDelay)

	f.repo.AssertExpectations(t)
	f.repo.AssertNumberOfCalls(t, "UpdateTask", 1)
}

func TestTaskStore_ExampleScenario(t *testing.T) {
	f := newFixture(t, seedTasks())
	echoUpdates(f.repo)

	_, err := f.store.SetStatus("a", task.StatusInProgress)
	require.NoError(t, err)
	f.clock.Advance(200 * time.Millisecond)
	_, err = f.store.SetStatus("b", task.StatusDone)
	require.NoError(t, err)

	// через 500ms после первого изменения таймер ещё не сработал
	f.clock.Advance(300 * time.Millisecond)
	f.repo.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)

	f.clock.Advance(200 * time.Millisecond)
	f.repo.AssertNumberOfCalls(t, "UpdateTask", 2)
	f.repo.AssertCalled(t, "UpdateTask", mock.Anything, "a", mock.MatchedBy(func(p task.Task) bool {
		return p.Status == task.StatusInProgress
	}))
	f.repo.AssertCalled(t, "UpdateTask", mock.Anything, "b", mock.MatchedBy(func(p task.Task) bool {
		return p.Status == task.StatusDone
	}))
	assert.Equal(t, task.StatusInProgress, statusOf(t, f.store, "a"))
	assert.Equal(t, task.StatusDone, statusOf(t, f.store, "b"))
}

func TestTaskStore_SetStatus_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		status     task.Status
		expectCode string
	}{
		{
			name:       "unknown status is rejected",
			id:         "a",
			status:     "doing",
			expectCode: service.CodeValidation,
		},
		{
			name:   "missing task is a no-op",
			id:     "missing",
			status: task.StatusDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, seedTasks())
			before := f.store.Tasks()

			_, err := f.store.SetStatus(tt.id, tt.status)
			if tt.expectCode != "" {
				require.Error(t, err)
				assert.True(t, service.IsCode(err, tt.expectCode))
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, before, f.store.Tasks())
			assert.True(t, f.store.Pending().Empty())
			assert.Equal(t, 0, f.clock.Armed())
		})
	}
}

func TestTaskStore_Remove_IsIdempotent(t *testing.T) {
	f := newFixture(t, seedTasks())
	f.repo.On("DeleteTask", mock.Anything, "b").Return(nil).Once()

	list, err := f.store.Remove("b")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.store.Remove("b")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f.clock.Advance(scheduler.DefaultDelay)
	f.repo.AssertExpectations(t)
	f.repo.AssertNumberOfCalls(t, "DeleteTask", 1)
}

func TestTaskStore_RemoveDropsPendingStatus(t *testing.T) {
	f := newFixture(t, seedTasks())
	f.repo.On("DeleteTask", mock.Anything, "a").Return(nil)

	_, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)
	_, err = f.store.Remove("a")
	require.NoError(t, err)

	f.clock.Advance(scheduler.DefaultDelay)
	f.repo.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNumberOfCalls(t, "DeleteTask", 1)
}

func TestTaskStore_FailedFlushIsNotRolledBack(t *testing.T) {
	f := newFixture(t, seedTasks())
	f.repo.On("UpdateTask", mock.Anything, "a", mock.Anything).Return(nil, errors.New("timeout"))
	f.repo.On("DeleteTask", mock.Anything, "b").Return(nil)

	_, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)
	_, err = f.store.Remove("b")
	require.NoError(t, err)
	f.clock.Advance(scheduler.DefaultDelay)

	assert.Equal(t, task.StatusDone, statusOf(t, f.store, "a"))
	_, ok := f.store.Get("b")
	assert.False(t, ok)
	assert.True(t, f.store.Pending().Empty())
	f.repo.AssertNumberOfCalls(t, "DeleteTask", 1)
}

func TestTaskStore_Create(t *testing.T) {
	tests := []struct {
		name       string
		draft      task.Draft
		setupMock  func(*MockTaskRepository)
		expectCode string
		expectLen  int
		// отклонено до обращения к бэкенду
		local bool
	}{
		{
			name:  "success - appended with resolved assignee",
			draft: task.Draft{Title: "  Write docs  ", AssignedTo: strPtr("u1")},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.MatchedBy(func(p task.Task) bool {
					return p.Title == "Write docs" && p.Status == task.StatusTodo && p.ProjectID == projectID && p.ID == ""
				})).Return(&task.Task{ID: "n1", ProjectID: projectID, Title: "Write docs", Status: task.StatusTodo, AssignedTo: strPtr("u1")}, nil)
			},
			expectLen: 4,
		},
		{
			name:       "validation - empty title never reaches backend",
			draft:      task.Draft{Title: "   "},
			setupMock:  func(m *MockTaskRepository) {},
			expectCode: service.CodeValidation,
			expectLen:  3,
			local:      true,
		},
		{
			name:       "validation - unknown status",
			draft:      task.Draft{Title: "x", Status: "doing"},
			setupMock:  func(m *MockTaskRepository) {},
			expectCode: service.CodeValidation,
			expectLen:  3,
			local:      true,
		},
		{
			name:  "backend failure - nothing appended",
			draft: task.Draft{Title: "Write docs"},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(nil, errors.New("500"))
			},
			expectCode: service.CodeBackend,
			expectLen:  3,
		},
		{
			name:  "backend 5xx - backend error",
			draft: task.Draft{Title: "Write docs"},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(nil, &repository.APIError{StatusCode: 503, Detail: "maintenance"})
			},
			expectCode: service.CodeBackend,
			expectLen:  3,
		},
		{
			name:  "backend rejects payload - validation",
			draft: task.Draft{Title: "Write docs"},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(nil, &repository.APIError{StatusCode: 422, Detail: "assigned_to: unknown user"})
			},
			expectCode: service.CodeValidation,
			expectLen:  3,
		},
		{
			name:  "unknown project on backend - not found",
			draft: task.Draft{Title: "Write docs"},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("создание задачи: %w", repository.ErrNotFound))
			},
			expectCode: service.CodeNotFound,
			expectLen:  3,
		},
		{
			name:  "duplicate - conflict",
			draft: task.Draft{Title: "Write docs"},
			setupMock: func(m *MockTaskRepository) {
				m.On("CreateTask", mock.Anything, mock.Anything).Return(nil, repository.ErrConflict)
			},
			expectCode: service.CodeConflict,
			expectLen:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, seedTasks())
			tt.setupMock(f.repo)

			created, err := f.store.Create(context.Background(), tt.draft)
			if tt.expectCode != "" {
				require.Error(t, err)
				assert.True(t, service.IsCode(err, tt.expectCode))
				if tt.local {
					f.repo.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, "n1", created.ID)
				assert.Equal(t, "alice", created.AssigneeName)
				list := f.store.Tasks()
				assert.Equal(t, "n1", list[len(list)-1].ID)
			}
			assert.Len(t, f.store.Tasks(), tt.expectLen)
			assert.True(t, f.store.Pending().Empty())
		})
	}
}

func TestTaskStore_Update(t *testing.T) {
	t.Run("success - replaced by canonical response", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		f.repo.On("UpdateTask", mock.Anything, "b", mock.Anything).
			Return(&task.Task{ID: "b", ProjectID: projectID, Title: "Build it", Status: task.StatusTodo, Priority: task.PriorityHigh, AssignedTo: strPtr("u1")}, nil)

		res, err := f.store.UpdateWith(context.Background(), "b",
			task.WithTitle("Build it"),
			task.WithPriority(task.PriorityHigh),
			task.WithAssignee("u1"),
		)
		require.NoError(t, err)
		assert.Equal(t, "alice", res.AssigneeName)

		got, ok := f.store.Get("b")
		require.True(t, ok)
		assert.Equal(t, "Build it", got.Title)
		assert.Equal(t, task.PriorityHigh, got.Priority)
		assert.Equal(t, 0, f.clock.Armed())
	})

	t.Run("failure - list unchanged", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		f.repo.On("UpdateTask", mock.Anything, "b", mock.Anything).Return(nil, errors.New("500"))
		before := f.store.Tasks()

		_, err := f.store.UpdateWith(context.Background(), "b", task.WithTitle("Build it"))
		require.Error(t, err)
		assert.True(t, service.IsCode(err, service.CodeBackend))
		assert.Equal(t, before, f.store.Tasks())
	})

	t.Run("backend rejections keep their meaning", func(t *testing.T) {
		cases := map[string]error{
			service.CodeNotFound:   repository.ErrNotFound,
			service.CodeConflict:   fmt.Errorf("обновление задачи b: %w", repository.ErrConflict),
			service.CodeValidation: &repository.APIError{StatusCode: 400, Detail: "bad deadline"},
			service.CodeBackend:    &repository.APIError{StatusCode: 502},
		}
		for code, backendErr := range cases {
			f := newFixture(t, seedTasks())
			f.repo.On("UpdateTask", mock.Anything, "b", mock.Anything).Return(nil, backendErr)

			_, err := f.store.UpdateWith(context.Background(), "b", task.WithTitle("Build it"))
			require.Error(t, err)
			assert.True(t, service.IsCode(err, code), "ожидался %s, получено %v", code, err)
			assert.ErrorIs(t, err, backendErr)
		}
	})

	t.Run("unknown id - not found", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		_, err := f.store.UpdateWith(context.Background(), "missing", task.WithTitle("x"))
		assert.True(t, service.IsCode(err, service.CodeNotFound))
	})

	t.Run("project cannot change", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		current, _ := f.store.Get("b")
		current.ProjectID = "other"

		_, err := f.store.Update(context.Background(), "b", current)
		assert.True(t, service.IsCode(err, service.CodeValidation))
		f.repo.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("removed while in flight - not re-added", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		f.repo.On("UpdateTask", mock.Anything, "b", mock.Anything).
			Run(func(mock.Arguments) {
				_, err := f.store.Remove("b")
				require.NoError(t, err)
			}).
			Return(&task.Task{ID: "b", ProjectID: projectID, Title: "Build it", Status: task.StatusTodo}, nil)

		_, err := f.store.UpdateWith(context.Background(), "b", task.WithTitle("Build it"))
		require.NoError(t, err)
		_, ok := f.store.Get("b")
		assert.False(t, ok)
	})

	t.Run("pending drag keeps the edited fields", func(t *testing.T) {
		f := newFixture(t, seedTasks())
		echoUpdates(f.repo)

		_, err := f.store.SetStatus("b", task.StatusDone)
		require.NoError(t, err)
		_, err = f.store.UpdateWith(context.Background(), "b", task.WithTitle("Build it"))
		require.NoError(t, err)

		f.clock.Advance(scheduler.DefaultDelay)
		f.repo.AssertCalled(t, "UpdateTask", mock.Anything, "b", mock.MatchedBy(func(p task.Task) bool {
			return p.Title == "Build it" && p.Status == task.StatusDone
		}))
		f.repo.AssertNotCalled(t, "UpdateTask", mock.Anything, "b", mock.MatchedBy(func(p task.Task) bool {
			return p.Title == "Build"
		}))
	})
}

func TestTaskStore_ReloadKeepsPendingChanges(t *testing.T) {
	f := newFixture(t, seedTasks())

	_, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)
	_, err = f.store.Remove("c")
	require.NoError(t, err)

	list, err := f.store.Reload(context.Background())
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, task.StatusDone, list[0].Status)
	assert.Equal(t, "b", list[1].ID)
}

func TestTaskStore_ReloadDuringFlushKeepsDrag(t *testing.T) {
	f := newFixture(t, seedTasks())

	started := make(chan struct{})
	release := make(chan struct{})
	f.repo.On("UpdateTask", mock.Anything, "a", mock.Anything).
		Return(func(_ context.Context, _ string, payload task.Task) *task.Task {
			close(started)
			<-release
			return &payload
		}, nil).Once()

	_, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)

	flushed := make(chan struct{})
	go func() {
		f.clock.Advance(scheduler.DefaultDelay)
		close(flushed)
	}()
	<-started

	// очередь уже пуста, но отправка не завершена
	pending := f.store.Pending()
	assert.Empty(t, pending.Updates)
	assert.Equal(t, []string{"a"}, pending.InFlight)
	assert.False(t, pending.Empty())

	// бэкенд ещё отдаёт старый статус
	list, err := f.store.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, list[0].Status)

	close(release)
	<-flushed
	assert.True(t, f.store.Pending().Empty())
	assert.Equal(t, task.StatusDone, statusOf(t, f.store, "a"))
}

func TestTaskStore_ReloadDuringDeleteKeepsRemoval(t *testing.T) {
	f := newFixture(t, seedTasks())

	started := make(chan struct{})
	release := make(chan struct{})
	f.repo.On("DeleteTask", mock.Anything, "c").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil).Once()

	_, err := f.store.Remove("c")
	require.NoError(t, err)

	flushed := make(chan struct{})
	go func() {
		f.clock.Advance(scheduler.DefaultDelay)
		close(flushed)
	}()
	<-started

	list, err := f.store.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, ok := f.store.Get("c")
	assert.False(t, ok)

	close(release)
	<-flushed
}

func TestTaskStore_Stats(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	tasks := seedTasks()
	tasks[1].Deadline = &past
	f := newFixture(t, tasks)

	stats := f.store.Stats(time.Now())
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Todo)
	assert.Equal(t, 1, stats.Overdue)
}

func TestTaskStore_Close(t *testing.T) {
	f := newFixture(t, seedTasks())
	echoUpdates(f.repo)

	_, err := f.store.SetStatus("a", task.StatusDone)
	require.NoError(t, err)

	report := f.store.Close(context.Background())
	require.Len(t, report.Results, 1)
	f.repo.AssertNumberOfCalls(t, "UpdateTask", 1)
	assert.True(t, f.store.Closed())

	_, err = f.store.SetStatus("b", task.StatusDone)
	assert.True(t, service.IsCode(err, service.CodeViewClosed))
	_, err = f.store.Remove("b")
	assert.True(t, service.IsCode(err, service.CodeViewClosed))
	_, err = f.store.Create(context.Background(), task.Draft{Title: "late"})
	assert.True(t, service.IsCode(err, service.CodeViewClosed))

	// таймер остановлен, отправок больше нет
	f.clock.Advance(time.Second)
	f.repo.AssertNumberOfCalls(t, "UpdateTask", 1)
	assert.True(t, f.store.Close(context.Background()).Empty())
}

func TestTaskStore_LateCreateIsDiscarded(t *testing.T) {
	f := newFixture(t, seedTasks())
	f.repo.On("CreateTask", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { f.store.Close(context.Background()) }).
		Return(&task.Task{ID: "n1", ProjectID: projectID, Title: "late", Status: task.StatusTodo}, nil)

	_, err := f.store.Create(context.Background(), task.Draft{Title: "late"})
	require.NoError(t, err)
	_, ok := f.store.Get("n1")
	assert.False(t, ok)
}
