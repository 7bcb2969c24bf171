package scheduler

import (
	"fmt"
	"time"

	"planora/internal/models/task"

	"go.uber.org/multierr"
)

type Op string

const OpUpdate Op = "update"
const OpDelete Op = "delete"

type Result struct {
	Op     Op
	TaskID string
	// канонический ответ сервера, только для update
	Task *task.Task
	Err  error
}

// Report - итог одного цикла отправки
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
}

func (r Report) Empty() bool {
	return len(r.Results) == 0
}

func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r Report) Succeeded() int {
	return len(r.Results) - len(r.Failed())
}

func (r Report) Count(op Op) int {
	n := 0
	for _, res := range r.Results {
		if res.Op == op {
			n++
		}
	}
	return n
}

func (r Report) Err() error {
	var err error
	for _, res := range r.Failed() {
		err = multierr.Append(err, fmt.Errorf("%s %s: %w", res.Op, res.TaskID, res.Err))
	}
	return err
}

// Pending - снимок ещё не отправленных и отправляемых сейчас операций
type Pending struct {
	Updates  []string `json:"updates"`
	Deletes  []string `json:"deletes"`
	InFlight []string `json:"in_flight"`
}

func (p Pending) Empty() bool {
	return len(p.Updates) == 0 && len(p.Deletes) == 0 && len(p.InFlight) == 0
}

// Touches - есть ли по задаче операция в очереди или в отправке
func (p Pending) Touches(id string) bool {
	return p.HasUpdate(id) || p.HasDelete(id) || p.HasInFlight(id)
}

func (p Pending) HasUpdate(id string) bool {
	for _, u := range p.Updates {
		if u == id {
			return true
		}
	}
	return false
}

func (p Pending) HasDelete(id string) bool {
	for _, d := range p.Deletes {
		if d == id {
			return true
		}
	}
	return false
}

func (p Pending) HasInFlight(id string) bool {
	for _, f := range p.InFlight {
		if f == id {
			return true
		}
	}
	return false
}
