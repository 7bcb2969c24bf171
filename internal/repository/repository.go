// Package repository описывает контракт внешнего бэкенда задач.
// Формат на проводе принадлежит бэкенду, здесь только логические вызовы.
package repository

import (
	"context"

	"planora/internal/models/project"
	"planora/internal/models/task"
	"planora/internal/models/user"
)

type Filter struct {
	ProjectID  string
	AssignedTo string
	Status     task.Status
	Skip       int
	Limit      int
}

type TaskRepository interface {
	FetchTasks(ctx context.Context, filter Filter) ([]task.Task, error)
	CreateTask(ctx context.Context, payload task.Task) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
}

type UserRepository interface {
	ListUsers(ctx context.Context) ([]user.User, error)
}

// ProjectRepository отвечает ErrNotFound на неизвестный проект
type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (*project.Project, error)
}

// Backend - бэкенд, который отдаёт задачи, пользователей и проекты
type Backend interface {
	TaskRepository
	UserRepository
	ProjectRepository
}
