package scheduler

import "time"

type Timer interface {
	Stop() bool
}

// Clock откладывает вызов функции. В тестах подменяется фейком,
// чтобы управлять временем без реальных таймеров.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func RealClock() Clock {
	return realClock{}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
