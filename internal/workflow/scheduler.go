package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
)

// Scheduler triggers a job on a cron schedule. A trigger that fires while
// the previous run is still going is skipped; this includes the start-up
// run, so at most one run is active at any time.
type Scheduler struct {
	// RunOnStart triggers one run as soon as Run starts, in addition to the
	// schedule.
	RunOnStart bool

	cron  *cron.Cron
	chain cron.Chain
	spec  string
	job   func(ctx context.Context)
	log   *logger.Logger
}

// NewScheduler validates spec (standard five-field cron) and returns a
// scheduler for job.
func NewScheduler(spec string, log *logger.Logger, job func(ctx context.Context)) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if log == nil {
		log = logger.Default()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:  cron.New(cron.WithLogger(cl)),
		chain: cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		spec:  spec,
		job:   job,
		log:   log,
	}, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to finish. The job receives ctx, so cancellation reaches it.
func (s *Scheduler) Run(ctx context.Context) error {
	// One wrapped job serves both the schedule and the start-up run, so they
	// share the SkipIfStillRunning guard.
	job := s.chain.Then(cron.FuncJob(func() { s.job(ctx) }))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	var startup sync.WaitGroup
	if s.RunOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			job.Run()
		}()
	}
	s.cron.Start()
	s.log.WithField("schedule", s.spec).WithField("run_on_start", s.RunOnStart).Info("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	startup.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(kvFields(kv)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(kv)).Error(msg)
}

func kvFields(kv []interface{}) logger.Fields {
	f := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
