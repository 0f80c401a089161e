// Package scheduler runs configured pipeline jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
)

// JobFunc is one schedulable pipeline step.
type JobFunc func(ctx context.Context) error

// Scheduler wires yaml job entries to registered runners. Overlapping
// runs of the same job are skipped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	runners map[string]JobFunc
}

// New builds an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runners: make(map[string]JobFunc),
	}
}

// Register binds a job type name to its runner.
func (s *Scheduler) Register(jobType string, fn JobFunc) {
	s.runners[jobType] = fn
}

// Load adds every enabled job from the configuration. Unknown job types
// and invalid schedules are configuration errors.
func (s *Scheduler) Load(ctx context.Context, jobs []config.Job) error {
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		fn, ok := s.runners[job.Type]
		if !ok {
			return fmt.Errorf("scheduler: unknown job type %q for job %q", job.Type, job.Name)
		}

		name, jobType := job.Name, job.Type
		_, err := s.cron.AddFunc(job.Schedule, func() {
			started := time.Now()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("job", name).Str("type", jobType).
					Msg("scheduled job failed")
				return
			}
			log.Info().Str("job", name).Str("type", jobType).
				Dur("took", time.Since(started)).Msg("scheduled job done")
		})
		if err != nil {
			return fmt.Errorf("scheduler: job %q schedule %q: %w", job.Name, job.Schedule, err)
		}
		log.Info().Str("job", job.Name).Str("type", job.Type).
			Str("schedule", job.Schedule).Msg("job scheduled")
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
