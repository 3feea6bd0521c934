// Package scheduler runs the recurring background jobs of the clinic
// service on a shared gocron scheduler.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler wraps a single async gocron scheduler.
type Scheduler struct {
	inner *gocron.Scheduler
}

func New() *Scheduler {
	return &Scheduler{inner: gocron.NewScheduler(time.UTC)}
}

// Every registers a recurring job. The first run happens one interval
// after Start, not immediately.
func (s *Scheduler) Every(interval time.Duration, job func()) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	if job == nil {
		return fmt.Errorf("scheduler: job must not be nil")
	}
	if _, err := s.inner.Every(interval).WaitForSchedule().Do(job); err != nil {
		return fmt.Errorf("scheduler: register job: %w", err)
	}
	return nil
}

// Start launches the scheduler in the background.
func (s *Scheduler) Start() {
	s.inner.StartAsync()
}

// Stop halts all jobs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	s.inner.Stop()
}
