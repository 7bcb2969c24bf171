package task

import (
	"time"
)

// TaskOption изменяет копию задачи при сборке полной полезной нагрузки.
// nil-опция означает "поле не менять".
type TaskOption func(*Task)

func Apply(t Task, options ...TaskOption) Task {
	res := t.Clone()
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&res)
	}
	return res
}

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithPriority(priority Priority) TaskOption {
	return func(task *Task) {
		task.Priority = priority
	}
}

// WithAssignee с пустым id снимает исполнителя
func WithAssignee(userID string) TaskOption {
	return func(task *Task) {
		if userID == "" {
			task.AssignedTo = nil
			return
		}
		id := userID
		task.AssignedTo = &id
	}
}

// WithDeadline с нулевым временем снимает дедлайн
func WithDeadline(deadline time.Time) TaskOption {
	return func(task *Task) {
		if deadline.IsZero() {
			task.Deadline = nil
			return
		}
		d := deadline
		task.Deadline = &d
	}
}
