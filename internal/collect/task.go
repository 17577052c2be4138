package collect

import (
	"fmt"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
)

// Task collects one snapshot of one underlying.
type Task struct {
	Instrument dhan.Instrument
}

func (t Task) String() string {
	return t.Instrument.Name
}

// TasksFor builds one task per instrument.
func TasksFor(instruments []dhan.Instrument) []Task {
	tasks := make([]Task, len(instruments))
	for i, inst := range instruments {
		tasks[i] = Task{Instrument: inst}
	}
	return tasks
}

type TaskResult struct {
	Task          Task
	Success       bool
	NoExpiry      bool
	NoChain       bool
	Expiry        string
	Rows          int
	MaxPainStrike float64
	Error         error
}

// BatchResult summarises one collection run.
type BatchResult struct {
	Total    int
	Success  int
	NoExpiry int
	NoChain  int
	Failed   int
	Errors   []string
	Results  []TaskResult
}

// Ok reports whether every task produced a snapshot.
func (b *BatchResult) Ok() bool {
	return b.Success == b.Total
}

func (b *BatchResult) String() string {
	return fmt.Sprintf("%d/%d saved, %d no expiry, %d no chain, %d failed",
		b.Success, b.Total, b.NoExpiry, b.NoChain, b.Failed)
}
