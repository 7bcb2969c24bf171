package worker

import (
	"context"
	"time"

	"planora/internal/logger"
	"planora/internal/service"

	"go.uber.org/zap"
)

type Boards interface {
	Each(fn func(*service.TaskStore))
}

// ReloadWorker периодически перечитывает открытые доски без очереди,
// чтобы после неудачной отправки интерфейс сошёлся с бэкендом.
type ReloadWorker struct {
	boards   Boards
	interval time.Duration
	now      func() time.Time
}

func NewReloadWorker(boards Boards, interval *time.Duration) *ReloadWorker {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}

	return &ReloadWorker{
		boards:   boards,
		interval: intervalToSet,
		now:      time.Now,
	}
}

func (w *ReloadWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		logger.Info("Worker: перечитывание досок отключено")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновое перечитывание досок", zap.Time("started_at", w.now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновое перечитывание останавливается")
			return
		}
	}
}

// Check перечитывает доски без операций в очереди и в отправке.
// Возвращает число перечитанных досок.
func (w *ReloadWorker) Check(ctx context.Context) int {
	start := time.Now()
	reloaded, skipped := 0, 0

	w.boards.Each(func(store *service.TaskStore) {
		if ctx.Err() != nil {
			return
		}
		if store.Closed() || !store.Pending().Empty() {
			skipped++
			return
		}

		tasks, err := store.Reload(ctx)
		if err != nil {
			logger.Warn("Worker: ошибка перечитывания доски",
				zap.String("project_id", store.ProjectID()),
				zap.Error(err))
			return
		}
		reloaded++

		stats := store.Stats(w.now())
		if stats.Overdue > 0 {
			logger.Info("Worker: просроченные задачи",
				zap.String("project_id", store.ProjectID()),
				zap.Int("tasks", len(tasks)),
				zap.Int("overdue", stats.Overdue))
		}
	})

	logger.Info(
		"Worker: Завершение перечитывания досок",
		zap.Duration("ms", time.Since(start)),
		zap.Int("reloaded", reloaded),
		zap.Int("skipped", skipped),
	)
	return reloaded
}
