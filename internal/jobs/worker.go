// Package jobs runs periodic maintenance in the background.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/izpodvypodvert/todoapi/internal/logger"
)

// JobProcessor is one unit of periodic work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls a JobProcessor on a fixed interval. Each run gets a deadline
// of one interval so a stuck run cannot pile up behind the ticker.
type Worker struct {
	name      string
	processor JobProcessor
	interval  time.Duration
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewWorker(name string, processor JobProcessor, interval time.Duration) *Worker {
	return &Worker{
		name:      name,
		processor: processor,
		interval:  interval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log := logger.FromContext(ctx).With("worker", w.name)
	log.Info("worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped", "reason", "context cancelled")
			return
		case <-w.stopChan:
			log.Info("worker stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			w.runOnce(ctx, log)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, log logger.Logger) {
	runCtx, cancel := context.WithTimeout(logger.ContextWithLogger(ctx, log), w.interval)
	defer cancel()

	if err := w.processor.ProcessJobs(runCtx); err != nil {
		log.Error("job run failed", "error", err)
	}
}

// Stop ends the loop and waits for it to exit. It is safe to call more than
// once. Start must have been called.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
