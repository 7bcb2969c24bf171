// Package rest - клиент HTTP API бэкенда задач.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"planora/internal/logger"
	"planora/internal/models/project"
	"planora/internal/models/task"
	"planora/internal/models/user"
	repo "planora/internal/repository"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const usersLimit = 1000

// размер страницы по умолчанию у GET /tasks
const pageSize = 100

// бэкенд отдаёт created_at и без зоны, и в RFC 3339
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

var _ repo.Backend = (*Client)(nil)

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("адрес бэкенда %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("адрес бэкенда %q: схема должна быть http или https", baseURL)
	}

	return &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// taskWire - задача в формате бэкенда
type taskWire struct {
	ID          string     `json:"id,omitempty"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    *string    `json:"priority"`
	AssignedTo  *string    `json:"assigned_to"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
}

func toWire(t task.Task) taskWire {
	w := taskWire{
		ProjectID:  t.ProjectID,
		Title:      t.Title,
		Status:     string(t.Status),
		AssignedTo: t.AssignedTo,
		Deadline:   t.Deadline,
	}
	if t.Description != "" {
		d := t.Description
		w.Description = &d
	}
	if t.Priority != task.PriorityUnset {
		p := string(t.Priority)
		w.Priority = &p
	}
	return w
}

func (w taskWire) toTask() task.Task {
	t := task.Task{
		ID:         w.ID,
		ProjectID:  w.ProjectID,
		Title:      w.Title,
		Status:     task.Status(w.Status),
		AssignedTo: w.AssignedTo,
		Deadline:   w.Deadline,
		CreatedAt:  parseTime(w.CreatedAt),
	}
	if w.Description != nil {
		t.Description = *w.Description
	}
	if w.Priority != nil {
		t.Priority = task.Priority(*w.Priority)
	}
	return t
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	logger.Warn("Repository: нераспознанный формат времени", zap.String("value", raw))
	return time.Time{}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil, nil)
}

// FetchTasks без Limit читает все страницы, пока бэкенд не вернёт неполную
func (c *Client) FetchTasks(ctx context.Context, filter repo.Filter) ([]task.Task, error) {
	if filter.Limit > 0 {
		return c.fetchPage(ctx, filter)
	}

	tasks := []task.Task{}
	page := filter
	page.Limit = pageSize
	for {
		batch, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, batch...)
		if len(batch) < pageSize {
			return tasks, nil
		}
		page.Skip += pageSize
	}
}

func (c *Client) fetchPage(ctx context.Context, filter repo.Filter) ([]task.Task, error) {
	query := url.Values{}
	if filter.ProjectID != "" {
		query.Set("project_id", filter.ProjectID)
	}
	if filter.AssignedTo != "" {
		query.Set("assigned_to_id", filter.AssignedTo)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Skip > 0 {
		query.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var wire []taskWire
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &wire); err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	tasks := make([]task.Task, 0, len(wire))
	for _, w := range wire {
		tasks = append(tasks, w.toTask())
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, payload task.Task) (*task.Task, error) {
	var created taskWire
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, toWire(payload), &created); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}
	t := created.toTask()
	return &t, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error) {
	var updated taskWire
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, toWire(payload), &updated); err != nil {
		return nil, fmt.Errorf("обновление задачи %s: %w", id, err)
	}
	t := updated.toTask()
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("удаление задачи %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	query := url.Values{}
	query.Set("skip", "0")
	query.Set("limit", strconv.Itoa(usersLimit))

	var users []user.User
	if err := c.do(ctx, http.MethodGet, "/users", query, nil, &users); err != nil {
		return nil, fmt.Errorf("получение пользователей: %w", err)
	}
	return users, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("получение проекта %s: %w", id, err)
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	start := time.Now()

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("кодирование запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("сборка запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("Repository: запрос к бэкенду не выполнен", err,
			zap.String("method", method),
			zap.String("path", path),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug("Repository: ответ бэкенда",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("ms", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа: %w", err)
	}
	return nil
}

// decodeError разбирает тело {"detail": ...}; detail бывает строкой или списком ошибок
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	detail := strings.TrimSpace(string(raw))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			detail = s
		} else {
			detail = string(body.Detail)
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", repo.ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", repo.ErrConflict, detail)
	}
	return &repo.APIError{StatusCode: resp.StatusCode, Detail: detail}
}
