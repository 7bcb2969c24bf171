package handlers

import (
	"context"

	"planora/internal/events"
	"planora/internal/service"
)

type Sessions interface {
	Open(ctx context.Context, projectID string) (*service.TaskStore, error)
	Close(ctx context.Context, projectID string) error
	HealthCheck(ctx context.Context) error
}

type EventSource interface {
	Subscribe(projectID string) (<-chan events.Event, func())
}
