// Package events раздаёт итоги синхронизации подписчикам доски.
package events

import (
	"sync"
	"time"

	"planora/internal/logger"
	"planora/internal/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const TypeFlushed Type = "sync.flushed"
const TypeFailed Type = "sync.failed"

const defaultBuffer = 16

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ProjectID string    `json:"project_id"`
	Time      time.Time `json:"time"`

	// sync.flushed
	Updates int `json:"updates,omitempty"`
	Deletes int `json:"deletes,omitempty"`
	Failed  int `json:"failed,omitempty"`

	// sync.failed
	Op     string `json:"op,omitempty"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FromReport превращает итог отправки в события: одно общее и по одному на каждую ошибку
func FromReport(projectID string, report scheduler.Report) []Event {
	if report.Empty() {
		return nil
	}
	failed := report.Failed()
	now := time.Now()

	res := make([]Event, 0, 1+len(failed))
	res = append(res, Event{
		ID:        uuid.NewString(),
		Type:      TypeFlushed,
		ProjectID: projectID,
		Time:      now,
		Updates:   report.Count(scheduler.OpUpdate),
		Deletes:   report.Count(scheduler.OpDelete),
		Failed:    len(failed),
	})
	for _, f := range failed {
		res = append(res, Event{
			ID:        uuid.NewString(),
			Type:      TypeFailed,
			ProjectID: projectID,
			Time:      now,
			Op:        string(f.Op),
			TaskID:    f.TaskID,
			Error:     f.Err.Error(),
		})
	}
	return res
}

type subscriber struct {
	ch chan Event
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
	}
}

// Publish не блокируется: медленный подписчик теряет событие
func (h *Hub) Publish(events ...Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range events {
		for sub := range h.subs[e.ProjectID] {
			select {
			case sub.ch <- e:
			default:
				logger.Warn("Events: подписчик не успевает, событие отброшено",
					zap.String("project_id", e.ProjectID),
					zap.String("type", string(e.Type)),
				)
			}
		}
	}
}

// Subscribe возвращает канал событий проекта и функцию отписки.
// После отписки канал закрывается.
func (h *Hub) Subscribe(projectID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[*subscriber]struct{})
	}
	h.subs[projectID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[projectID], sub)
			if len(h.subs[projectID]) == 0 {
				delete(h.subs, projectID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

func (h *Hub) Subscribers(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

// Reporter - колбэк для планировщика доски
func (h *Hub) Reporter(projectID string) func(scheduler.Report) {
	return func(report scheduler.Report) {
		h.Publish(FromReport(projectID, report)...)
	}
}
