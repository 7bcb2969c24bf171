// Package scheduler копит оптимистичные изменения задач и отправляет их
// бэкенду одним пакетом после паузы в действиях пользователя.
package scheduler

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"planora/internal/logger"
	"planora/internal/models/task"
	"planora/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const DefaultDelay = 500 * time.Millisecond

var ErrCallPanicked = errors.New("удалённый вызов завершился паникой")

// Remote - часть бэкенда, нужная для отправки отложенных операций
type Remote interface {
	UpdateTask(ctx context.Context, id string, payload task.Task) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type Scheduler struct {
	remote      Remote
	clock       Clock
	delay       time.Duration
	retries     uint64
	backoffBase time.Duration
	callTimeout time.Duration
	reporter    func(Report)

	mu      sync.Mutex
	idle    *sync.Cond
	updates map[string]task.Task
	deletes map[string]struct{}
	timer   Timer
	// поколение таймера: сработавший, но уже перевзведённый таймер игнорируется
	gen      uint64
	inflight int
	// id операций, отправленных, но ещё не завершившихся
	flying map[string]int
	closed bool
}

func New(remote Remote, opts ...Option) *Scheduler {
	s := &Scheduler{
		remote:      remote,
		clock:       RealClock(),
		delay:       DefaultDelay,
		backoffBase: 100 * time.Millisecond,
		updates:     make(map[string]task.Task),
		deletes:     make(map[string]struct{}),
		flying:      make(map[string]int),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// QueueUpdate запоминает полное состояние задачи, последняя запись побеждает.
// Если задача уже ждёт удаления, обновление не ставится.
func (s *Scheduler) QueueUpdate(t task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, deleted := s.deletes[t.ID]; deleted {
		return
	}
	s.updates[t.ID] = t.Clone()
}

func (s *Scheduler) QueueDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	delete(s.updates, id)
	s.deletes[id] = struct{}{}
}

// RequestFlush перевзводит таймер: из серии вызовов срабатывает только последний
func (s *Scheduler) RequestFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopTimerLocked()
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Cancel останавливает таймер, очередь сохраняется
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.inflight++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.idle.Broadcast()
		s.mu.Unlock()
	}()
	s.Flush(context.Background())
}

// Wait ждёт завершения отправок, запущенных таймером
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

// WaitContext как Wait, но возвращает ошибку ctx, если отправки не успели завершиться
func (s *Scheduler) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending возвращает очередь и операции, которые сейчас отправляются
func (s *Scheduler) Pending() Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Pending{
		Updates:  sortedKeys(s.updates),
		Deletes:  sortedKeys(s.deletes),
		InFlight: sortedKeys(s.flying),
	}
}

func (s *Scheduler) settle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flying[id]--; s.flying[id] <= 0 {
		delete(s.flying, id)
	}
}

// Flush забирает обе очереди и очищает их до начала отправки.
// Операции, поставленные во время отправки, уйдут следующим пакетом.
// До завершения вызова id операции числится в Pending().InFlight.
func (s *Scheduler) Flush(ctx context.Context) Report {
	s.mu.Lock()
	updates, deletes := s.updates, s.deletes
	s.updates = make(map[string]task.Task)
	s.deletes = make(map[string]struct{})
	for id := range updates {
		s.flying[id]++
	}
	for id := range deletes {
		s.flying[id]++
	}
	s.mu.Unlock()

	report := s.dispatch(ctx, updates, deletes)
	if report.Empty() {
		return report
	}

	for _, res := range report.Failed() {
		logger.Warn("Scheduler: операция не синхронизирована",
			zap.String("op", string(res.Op)),
			zap.String("task_id", res.TaskID),
			zap.Error(res.Err),
		)
	}
	logger.Info("Scheduler: пакет отправлен",
		zap.Int("updates", report.Count(OpUpdate)),
		zap.Int("deletes", report.Count(OpDelete)),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.Duration),
	)
	if s.reporter != nil {
		s.reporter(report)
	}
	return report
}

// Close останавливает таймер и синхронно отправляет остаток очереди.
// После Close новые операции игнорируются.
func (s *Scheduler) Close(ctx context.Context) Report {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Report{}
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	report := s.Flush(ctx)
	if err := s.WaitContext(ctx); err != nil {
		logger.Warn("Scheduler: отправки по таймеру не завершились до закрытия", zap.Error(err))
	}
	return report
}

func (s *Scheduler) dispatch(ctx context.Context, updates map[string]task.Task, deletes map[string]struct{}) Report {
	report := Report{StartedAt: time.Now()}
	if len(updates)+len(deletes) == 0 {
		return report
	}

	// до вызова результат помечен паникой: если вызов упадёт, пометка останется
	results := make([]Result, 0, len(updates)+len(deletes))
	for _, id := range sortedKeys(updates) {
		results = append(results, Result{Op: OpUpdate, TaskID: id, Err: ErrCallPanicked})
	}
	for _, id := range sortedKeys(deletes) {
		results = append(results, Result{Op: OpDelete, TaskID: id, Err: ErrCallPanicked})
	}

	var wg conc.WaitGroup
	for i := range results {
		res := &results[i]
		switch res.Op {
		case OpUpdate:
			payload := updates[res.TaskID]
			wg.Go(func() {
				defer s.settle(res.TaskID)
				res.Task, res.Err = s.sendUpdate(ctx, res.TaskID, payload)
			})
		case OpDelete:
			wg.Go(func() {
				defer s.settle(res.TaskID)
				res.Err = s.sendDelete(ctx, res.TaskID)
			})
		}
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		logger.Error("Scheduler: паника при отправке", recovered.AsError())
	}

	report.Results = results
	report.Duration = time.Since(report.StartedAt)
	return report
}

func (s *Scheduler) sendUpdate(ctx context.Context, id string, payload task.Task) (*task.Task, error) {
	var updated *task.Task
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		res, err := s.remote.UpdateTask(callCtx, id, payload)
		if err != nil {
			return err
		}
		updated = res
		return nil
	})
	return updated, err
}

func (s *Scheduler) sendDelete(ctx context.Context, id string) error {
	return s.withRetry(ctx, func(callCtx context.Context) error {
		return s.remote.DeleteTask(callCtx, id)
	})
}

func (s *Scheduler) withRetry(ctx context.Context, call func(context.Context) error) error {
	op := func() error {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		err := call(callCtx)
		if err != nil && repository.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.backoffBase
	b := backoff.WithContext(backoff.WithMaxRetries(exp, s.retries), ctx)
	return backoff.Retry(op, b)
}

func (s *Scheduler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout > 0 {
		return context.WithTimeout(ctx, s.callTimeout)
	}
	return context.WithCancel(ctx)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
