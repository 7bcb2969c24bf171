package handlers

import (
	"errors"
	"net/http"
	"time"

	"planora/internal/handlers/dto"
	"planora/internal/logger"
	"planora/internal/models/task"
	"planora/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type TaskHandler struct {
	Sessions Sessions
	Events   EventSource
	now      func() time.Time
}

func NewTaskHandler(sessions Sessions, events EventSource) *TaskHandler {
	return &TaskHandler{
		Sessions: sessions,
		Events:   events,
		now:      time.Now,
	}
}

// WithNow подменяет часы для вычисления просрочки
func (h *TaskHandler) WithNow(now func() time.Time) *TaskHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// Routes регистрирует REST маршруты досок. Поток событий регистрируется
// отдельно через Events, чтобы на него не действовал таймаут запроса.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Put("/", h.UpdateTask)
			r.Delete("/", h.RemoveTask)
			r.Patch("/status", h.SetStatus)
		})

		r.Get("/board", h.GetBoard)
		r.Get("/stats", h.GetStats)
		r.Get("/pending", h.GetPending)
		r.Post("/reload", h.Reload)
		r.Delete("/session", h.CloseSession)
	})
}

func (h *TaskHandler) openStore(w http.ResponseWriter, r *http.Request) (*service.TaskStore, bool) {
	store, err := h.Sessions.Open(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		handleBusinessError(w, r, err)
		return nil, false
	}
	return store, true
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.HealthCheck(r.Context()); err != nil {
		logger.Error("HTTP: бэкенд недоступен", err)
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unhealthy"),
			toPayload("error", err.Error()),
		)
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	tasks := store.Tasks()
	logger.Info("HTTP_OUT: Задачи получены",
		zap.String("project_id", store.ProjectID()),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromTaskList(tasks, h.now())))
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.CreateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	created, err := store.Create(r.Context(), request.ToDraft())
	if err != nil {
		handleBusinessError(w, r, err)
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("task", dto.FromTask(created, h.now())))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.UpdateTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	updated, err := store.UpdateWith(r.Context(), taskID, request.ToOptions()...)
	if err != nil {
		handleBusinessError(w, r, err)
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", taskID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("task", dto.FromTask(updated, h.now())))
}

// SetStatus меняет статус локально и сразу отвечает, отправка идёт позже
func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.StatusRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	tasks, err := store.SetStatus(chi.URLParam(r, "taskID"), task.Status(request.Status))
	if err != nil {
		handleBusinessError(w, r, err)
		return
	}
	h.accepted(w, store, tasks)
}

func (h *TaskHandler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	tasks, err := store.Remove(chi.URLParam(r, "taskID"))
	if err != nil {
		handleBusinessError(w, r, err)
		return
	}
	h.accepted(w, store, tasks)
}

func (h *TaskHandler) accepted(w http.ResponseWriter, store *service.TaskStore, tasks []task.Task) {
	responseWithJSON(w, http.StatusAccepted,
		toPayload("tasks", dto.FromTaskList(tasks, h.now())),
		toPayload("pending", dto.FromPending(store.Pending())),
	)
}

func (h *TaskHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("board", dto.FromBoard(store.Board(), h.now())))
}

func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("stats", store.Stats(h.now())))
}

func (h *TaskHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("pending", dto.FromPending(store.Pending())))
}

func (h *TaskHandler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	store, ok := h.openStore(w, r)
	if !ok {
		return
	}

	tasks, err := store.Reload(r.Context())
	if err != nil {
		handleBusinessError(w, r, err)
		return
	}

	logger.Info("HTTP_OUT: Доска перечитана",
		zap.String("project_id", store.ProjectID()),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromTaskList(tasks, h.now())))
}

// CloseSession закрывает доску. Ошибки отправки очереди не мешают закрытию
// и возвращаются списком в sync_errors.
func (h *TaskHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	projectID := chi.URLParam(r, "projectID")
	err := h.Sessions.Close(r.Context(), projectID)

	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		handleBusinessError(w, r, err)
		return
	}

	syncErrors := make([]string, 0)
	for _, e := range multierr.Errors(err) {
		syncErrors = append(syncErrors, e.Error())
	}
	if len(syncErrors) > 0 {
		logger.Warn("HTTP: доска закрыта с ошибками синхронизации",
			zap.String("project_id", projectID),
			zap.Int("failed", len(syncErrors)))
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("closed", projectID),
		toPayload("sync_errors", syncErrors),
	)
}
