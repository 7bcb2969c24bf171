package scheduler

import "time"

type Option func(*Scheduler)

func WithDelay(d time.Duration) Option {
	if d <= 0 {
		return nil
	}
	return func(s *Scheduler) {
		s.delay = d
	}
}

func WithClock(c Clock) Option {
	if c == nil {
		return nil
	}
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithRetries - сколько раз повторить упавший вызов внутри одного пакета
func WithRetries(n int) Option {
	if n <= 0 {
		return nil
	}
	return func(s *Scheduler) {
		s.retries = uint64(n)
	}
}

func WithBackoff(initial time.Duration) Option {
	if initial <= 0 {
		return nil
	}
	return func(s *Scheduler) {
		s.backoffBase = initial
	}
}

func WithCallTimeout(d time.Duration) Option {
	if d <= 0 {
		return nil
	}
	return func(s *Scheduler) {
		s.callTimeout = d
	}
}

func WithReporter(fn func(Report)) Option {
	return func(s *Scheduler) {
		s.reporter = fn
	}
}
