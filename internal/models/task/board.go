package task

import "time"

// Board - представление канбан-доски. Задача со статусом вне словаря
// попадает в Unknown, а не пропадает со всех колонок.
type Board struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"in_progress"`
	Done       []Task `json:"done"`
	Unknown    []Task `json:"unknown,omitempty"`
}

func GroupByStatus(tasks []Task) Board {
	board := Board{
		Todo:       []Task{},
		InProgress: []Task{},
		Done:       []Task{},
	}
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			board.Todo = append(board.Todo, t)
		case StatusInProgress:
			board.InProgress = append(board.InProgress, t)
		case StatusDone:
			board.Done = append(board.Done, t)
		default:
			board.Unknown = append(board.Unknown, t)
		}
	}
	return board
}

func (b Board) Bucket(status Status) []Task {
	switch status {
	case StatusTodo:
		return b.Todo
	case StatusInProgress:
		return b.InProgress
	case StatusDone:
		return b.Done
	default:
		return b.Unknown
	}
}

type Stats struct {
	Total          int     `json:"total"`
	Todo           int     `json:"todo"`
	InProgress     int     `json:"in_progress"`
	Done           int     `json:"done"`
	Unknown        int     `json:"unknown"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

func ComputeStats(tasks []Task, now time.Time) Stats {
	var s Stats
	s.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			s.Todo++
		case StatusInProgress:
			s.InProgress++
		case StatusDone:
			s.Done++
		default:
			s.Unknown++
		}
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Done) / float64(s.Total) * 100
	}
	return s
}
