// Package scheduler runs periodic tasks until their context ends.
package scheduler

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Task is a named unit of periodic work. A failed run is logged and retried
// on the next tick.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each task on its own ticker. Runs of one task never overlap.
type Scheduler struct {
	tasks []Task
}

// New creates a scheduler for tasks.
func New(tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Run starts every task immediately and then once per interval. It blocks
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, task := range s.tasks {
		if task.Interval <= 0 {
			return errors.New("scheduler: task " + task.Name + " has no interval")
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range s.tasks {
		task := task
		g.Go(func() error {
			loop(ctx, task)
			return nil
		})
		log.WithFields(log.Fields{"task": task.Name, "interval": task.Interval}).Info("periodic task started")
	}
	return g.Wait()
}

// RunOnce runs every task a single time in order and returns the first error.
func RunOnce(ctx context.Context, tasks ...Task) error {
	for _, task := range tasks {
		if err := task.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

func loop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		runSafely(ctx, task)
		select {
		case <-ctx.Done():
			log.WithField("task", task.Name).Info("periodic task stopped")
			return
		case <-ticker.C:
		}
	}
}

func runSafely(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"task": task.Name, "panic": r}).Error("periodic task panicked")
		}
	}()
	if err := task.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).WithField("task", task.Name).Error("periodic task failed, retrying next tick")
	}
}
