// Package workflow runs the end-to-end refresh: table copy, dbt build and
// test, then dashboard refresh. Steps run in order and the first failing
// step stops the run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metabase"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
)

// JobName labels logs and metrics of workflow runs.
const JobName = "workflow"

// Step is one stage of the workflow.
type Step struct {
	Name string
	Run  func(ctx context.Context, r *Report) error
}

// StepResult records how a step ended.
type StepResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // ok, failed, skipped
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Report is the outcome of one workflow run.
type Report struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"` // success, partial_failure, failed
	Steps      []StepResult       `json:"steps"`
	Extract    *batch.Result      `json:"extract,omitempty"`
	Dashboards []metabase.Summary `json:"dashboards,omitempty"`
	DurationMs int64              `json:"duration_ms"`
}

// Extractor runs the table copy.
type Extractor func(ctx context.Context) (batch.Result, error)

// Refresher refreshes one dashboard.
type Refresher interface {
	RefreshDashboard(ctx context.Context, dashboardID int) (metabase.Summary, error)
}

// Pipeline assembles the workflow steps. Nil members drop their steps.
type Pipeline struct {
	Extract      Extractor
	DBT          *DBT
	Refresher    Refresher
	DashboardIDs []int
}

// Steps returns the ordered steps of p.
func (p Pipeline) Steps() []Step {
	var steps []Step
	if p.Extract != nil {
		steps = append(steps, Step{Name: "extract", Run: func(ctx context.Context, r *Report) error {
			res, err := p.Extract(ctx)
			r.Extract = &res
			return err
		}})
	}
	if p.DBT != nil {
		steps = append(steps,
			Step{Name: "dbt_run", Run: func(ctx context.Context, _ *Report) error { return p.DBT.Run(ctx, "run") }},
			Step{Name: "dbt_test", Run: func(ctx context.Context, _ *Report) error { return p.DBT.Run(ctx, "test") }},
		)
	}
	if p.Refresher != nil {
		for _, id := range p.DashboardIDs {
			id := id
			steps = append(steps, Step{Name: fmt.Sprintf("refresh_dashboard_%d", id), Run: func(ctx context.Context, r *Report) error {
				sum, err := p.Refresher.RefreshDashboard(ctx, id)
				if err == nil {
					r.Dashboards = append(r.Dashboards, sum)
				}
				return err
			}})
		}
	}
	return steps
}

// Run executes p once.
func (p Pipeline) Run(ctx context.Context) (Report, error) {
	return Run(ctx, p.Steps())
}

// Run executes steps in order. After a failure the remaining steps are
// reported as skipped and the error is returned. A partial extraction does
// not stop the run but marks the report partial_failure.
func Run(ctx context.Context, steps []Step) (Report, error) {
	start := time.Now()
	r := Report{RunID: uuid.NewString(), Status: "success", Steps: make([]StepResult, 0, len(steps))}
	ctx = logger.WithFieldsContext(ctx, logger.Fields{logger.FieldRunID: r.RunID, logger.FieldJob: JobName})
	log := logger.FromContext(ctx)

	var runErr error
	for _, s := range steps {
		if runErr == nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			r.Steps = append(r.Steps, StepResult{Name: s.Name, Status: "skipped"})
			continue
		}

		stepLog := log.WithField(logger.FieldStep, s.Name)
		stepLog.Info("step started")
		stepStart := time.Now()
		err := s.Run(ctx, &r)
		d := time.Since(stepStart)
		metrics.RecordStep(JobName, s.Name, err, d)

		res := StepResult{Name: s.Name, Status: "ok", DurationMs: d.Milliseconds()}
		if err != nil {
			res.Status = "failed"
			res.Error = err.Error()
			runErr = fmt.Errorf("step %s: %w", s.Name, err)
			stepLog.WithError(err).Error("step failed")
		} else {
			stepLog.WithField(logger.FieldDurationMs, res.DurationMs).Info("step finished")
		}
		r.Steps = append(r.Steps, res)
	}

	switch {
	case runErr != nil:
		r.Status = "failed"
	case r.Extract != nil && r.Extract.Status == batch.StatusPartialFailure:
		r.Status = string(batch.StatusPartialFailure)
	}
	r.DurationMs = time.Since(start).Milliseconds()
	metrics.RecordRun(JobName, r.Status)
	return r, runErr
}

// IsCancelled reports whether err came from a cancelled context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
