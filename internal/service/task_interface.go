package service

import (
	"context"

	"planora/internal/models/task"
	"planora/internal/scheduler"
)

// Scheduler - очередь отложенной синхронизации одной доски
type Scheduler interface {
	QueueUpdate(task.Task)
	QueueDelete(id string)
	RequestFlush()
	Pending() scheduler.Pending
	Close(ctx context.Context) scheduler.Report
}

type SchedulerFactory func(projectID string) Scheduler

var _ Scheduler = (*scheduler.Scheduler)(nil)
