package jobs

import (
	"context"

	"github.com/izpodvypodvert/todoapi/internal/logger"
)

// Sweeper drops expired in-memory entries and reports how many went.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SweepRecorder receives the result of each sweep.
type SweepRecorder interface {
	Swept(kind string, n int)
}

// Janitor is a JobProcessor that sweeps every registered Sweeper.
type Janitor struct {
	sweepers map[string]Sweeper
	order    []string
	recorder SweepRecorder
}

func NewJanitor(recorder SweepRecorder) *Janitor {
	return &Janitor{sweepers: make(map[string]Sweeper), recorder: recorder}
}

// Add registers s under kind. Adding a kind twice replaces the sweeper.
func (j *Janitor) Add(kind string, s Sweeper) *Janitor {
	if _, ok := j.sweepers[kind]; !ok {
		j.order = append(j.order, kind)
	}
	j.sweepers[kind] = s
	return j
}

// Len is the number of registered sweepers.
func (j *Janitor) Len() int {
	return len(j.order)
}

func (j *Janitor) ProcessJobs(ctx context.Context) error {
	for _, kind := range j.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := j.sweepers[kind].Sweep(ctx)
		if j.recorder != nil {
			j.recorder.Swept(kind, n)
		}
		if n > 0 {
			logger.FromContext(ctx).Debug("swept expired entries", "kind", kind, "count", n)
		}
	}
	return nil
}
