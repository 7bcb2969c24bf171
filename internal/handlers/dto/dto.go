package dto

import (
	"time"

	"planora/internal/models/task"
	"planora/internal/scheduler"
)

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

func (r CreateTaskRequest) ToDraft() task.Draft {
	return task.Draft{
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		Priority:    task.Priority(r.Priority),
		AssignedTo:  r.AssignedTo,
		Deadline:    r.Deadline,
	}
}

// UpdateTaskRequest - частичное редактирование, отсутствующее поле не меняется.
// Пустой assigned_to снимает исполнителя, clear_deadline снимает дедлайн.
type UpdateTaskRequest struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	AssignedTo    *string    `json:"assigned_to,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
}

func (r UpdateTaskRequest) ToOptions() []task.TaskOption {
	var opts []task.TaskOption
	if r.Title != nil {
		opts = append(opts, task.WithTitle(*r.Title))
	}
	if r.Description != nil {
		opts = append(opts, task.WithDescription(*r.Description))
	}
	if r.Status != nil {
		opts = append(opts, task.WithStatus(task.Status(*r.Status)))
	}
	if r.Priority != nil {
		opts = append(opts, task.WithPriority(task.Priority(*r.Priority)))
	}
	if r.AssignedTo != nil {
		opts = append(opts, task.WithAssignee(*r.AssignedTo))
	}
	if r.Deadline != nil {
		opts = append(opts, task.WithDeadline(*r.Deadline))
	}
	if r.ClearDeadline {
		opts = append(opts, task.WithDeadline(time.Time{}))
	}
	return opts
}

type StatusRequest struct {
	Status string `json:"status"`
}

type TaskResponse struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority,omitempty"`
	AssignedTo   *string    `json:"assigned_to"`
	AssigneeName string     `json:"assignee_name"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	IsOverdue    bool       `json:"is_overdue"`
}

func FromTask(t task.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		AssignedTo:   t.AssignedTo,
		AssigneeName: t.AssigneeName,
		Deadline:     t.Deadline,
		CreatedAt:    t.CreatedAt,
		IsOverdue:    t.IsOverdue(now),
	}
}

func FromTaskList(tasks []task.Task, now time.Time) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, now)
	}
	return result
}

type BoardResponse struct {
	Todo       []TaskResponse `json:"todo"`
	InProgress []TaskResponse `json:"in_progress"`
	Done       []TaskResponse `json:"done"`
	Unknown    []TaskResponse `json:"unknown,omitempty"`
}

func FromBoard(b task.Board, now time.Time) BoardResponse {
	res := BoardResponse{
		Todo:       FromTaskList(b.Todo, now),
		InProgress: FromTaskList(b.InProgress, now),
		Done:       FromTaskList(b.Done, now),
	}
	if len(b.Unknown) > 0 {
		res.Unknown = FromTaskList(b.Unknown, now)
	}
	return res
}

type PendingResponse struct {
	Updates  []string `json:"updates"`
	Deletes  []string `json:"deletes"`
	InFlight []string `json:"in_flight"`
}

func FromPending(p scheduler.Pending) PendingResponse {
	return PendingResponse{
		Updates:  orEmpty(p.Updates),
		Deletes:  orEmpty(p.Deletes),
		InFlight: orEmpty(p.InFlight),
	}
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
