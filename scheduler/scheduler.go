package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"nodemint/logger"
)

// Task is a unit of periodic background work. Tasks are expected to be
// idempotent; the runner may invoke them more often than strictly needed.
type Task interface {
	Name() string
	Run() error
}

// Runner fires every registered task on a fixed interval. Accrual is driven
// by this rather than by HTTP request handling.
type Runner struct {
	interval time.Duration
	tasks    []Task
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewRunner(interval time.Duration) *Runner {
	return &Runner{
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (r *Runner) Add(t Task) {
	r.tasks = append(r.tasks, t)
}

// Start launches the run loop. Each task also runs once immediately, so a
// restarted process catches up without waiting a full interval.
func (r *Runner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runAll()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runAll()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the run loop and waits for an in-flight pass to finish.
func (r *Runner) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Runner) runAll() {
	for _, t := range r.tasks {
		if err := t.Run(); err != nil {
			logger.Logger.Warn("Scheduled task failed",
				zap.String("task", t.Name()), zap.Error(err))
		}
	}
}
