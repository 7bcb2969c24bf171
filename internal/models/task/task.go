package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Task struct {
	ID           string     `json:"id" db:"id"`
	ProjectID    string     `json:"project_id" db:"project_id"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description,omitempty" db:"description"`
	Status       Status     `json:"status" db:"status"`
	Priority     Priority   `json:"priority,omitempty" db:"priority"`
	AssignedTo   *string    `json:"assigned_to,omitempty" db:"assigned_to_id"`
	AssigneeName string     `json:"assignee_name,omitempty" db:"-"`
	Deadline     *time.Time `json:"deadline,omitempty" db:"deadline"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

type Status string
type Priority string

const StatusTodo Status = "todo"
const StatusInProgress Status = "in_progress"
const StatusDone Status = "done"

// не статус задачи, а корзина доски для значений вне словаря
const StatusUnknown Status = "unknown"

const PriorityUnset Priority = ""
const PriorityLow Priority = "low"
const PriorityMedium Priority = "medium"
const PriorityHigh Priority = "high"

const MaxTitleLength = 200

var ErrUnknownStatus = errors.New("неизвестный статус задачи")

var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUnset, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Clone возвращает копию без общих указателей
func (t Task) Clone() Task {
	c := t
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		c.AssignedTo = &a
	}
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	return c
}

func (t Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Status != StatusDone && t.Deadline.Before(now)
}

func (t Task) Validate() error {
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("недопустимое значение %q", t.Status))
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", fmt.Sprintf("недопустимое значение %q", t.Priority))
	}
	if t.ProjectID == "" {
		return NewValidationError("project_id", "не может быть пустым")
	}
	return nil
}

// Draft - частичная задача для создания, id и created_at назначает бэкенд
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

func (d Draft) Validate() error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if d.Status != "" && !d.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("недопустимое значение %q", d.Status))
	}
	if !d.Priority.Valid() {
		return NewValidationError("priority", fmt.Sprintf("недопустимое значение %q", d.Priority))
	}
	return nil
}

// ToTask собирает полезную нагрузку для запроса создания
func (d Draft) ToTask(projectID string) Task {
	status := d.Status
	if status == "" {
		status = StatusTodo
	}
	t := Task{
		ProjectID:   projectID,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Status:      status,
		Priority:    d.Priority,
		AssignedTo:  d.AssignedTo,
		Deadline:    d.Deadline,
	}
	return t.Clone()
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return NewValidationError("title", "не может быть пустым")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("длиннее %d символов", MaxTitleLength))
	}
	return nil
}

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("поле '%s': %s", e.Field, e.Reason)
}
