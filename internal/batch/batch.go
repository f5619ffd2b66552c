// Package batch drives a list of independent units through a job function,
// one at a time, and aggregates their outcomes into a Result.
//
// A unit failure never stops the batch. The run ends early only when the
// context is cancelled or a unit reports a connectivity failure, in which
// case the partial Result is returned together with ErrAborted.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// ErrAborted is returned by Run when it stops before visiting every unit.
var ErrAborted = errors.New("batch: run aborted")

// Disposition classifies a finished unit.
type Disposition int

const (
	Processed Disposition = iota
	Failed
	Skipped
)

func (d Disposition) String() string {
	switch d {
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Status is the overall verdict of a run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
)

// Outcome is the tagged result of one unit.
type Outcome struct {
	Unit        string
	Target      string
	Disposition Disposition
	// State is the last step the unit reached.
	State    string
	Rows     int64
	Checksum uint64
	Duration time.Duration
	// Err is set for failed units; Reason explains a skip.
	Err    error
	Reason string
}

// Done builds a processed outcome.
func Done(unit, target, state string, rows int64) Outcome {
	return Outcome{Unit: unit, Target: target, Disposition: Processed, State: state, Rows: rows}
}

// Fail builds a failed outcome.
func Fail(unit, target, state string, rows int64, err error) Outcome {
	return Outcome{Unit: unit, Target: target, Disposition: Failed, State: state, Rows: rows, Err: err}
}

// Skip builds a skipped outcome.
func Skip(unit, target, reason string) Outcome {
	return Outcome{Unit: unit, Target: target, Disposition: Skipped, Reason: reason}
}

// MarshalJSON renders the outcome for the run summary.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type out struct {
		Unit       string `json:"unit"`
		Target     string `json:"target,omitempty"`
		Outcome    string `json:"outcome"`
		State      string `json:"state,omitempty"`
		Rows       int64  `json:"rows"`
		Checksum   string `json:"checksum,omitempty"`
		DurationMs int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
		Reason     string `json:"reason,omitempty"`
	}
	v := out{
		Unit:       o.Unit,
		Target:     o.Target,
		Outcome:    o.Disposition.String(),
		State:      o.State,
		Rows:       o.Rows,
		DurationMs: o.Duration.Milliseconds(),
		Reason:     o.Reason,
	}
	if o.Checksum != 0 {
		v.Checksum = strconv.FormatUint(o.Checksum, 16)
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return json.Marshal(v)
}

// Result aggregates the outcomes of a run. Counters only ever increase.
type Result struct {
	RunID          string    `json:"run_id"`
	Job            string    `json:"job"`
	UnitsProcessed int       `json:"units_processed"`
	UnitsFailed    int       `json:"units_failed"`
	UnitsSkipped   int       `json:"units_skipped"`
	RowsProcessed  int64     `json:"rows_processed"`
	Status         Status    `json:"status"`
	DurationMs     int64     `json:"duration_ms"`
	Units          []Outcome `json:"units,omitempty"`
}

// Total returns the number of units visited.
func (r Result) Total() int { return r.UnitsProcessed + r.UnitsFailed + r.UnitsSkipped }

func (r *Result) add(o Outcome) {
	switch o.Disposition {
	case Processed:
		r.UnitsProcessed++
	case Failed:
		r.UnitsFailed++
	case Skipped:
		r.UnitsSkipped++
	}
	if o.Rows > 0 {
		r.RowsProcessed += o.Rows
	}
	r.Units = append(r.Units, o)
	r.Status = statusOf(r.UnitsFailed)
}

func statusOf(failed int) Status {
	if failed == 0 {
		return StatusSuccess
	}
	return StatusPartialFailure
}

// UnitFunc runs one unit. It reports problems through the Outcome and never
// panics for expected failures.
type UnitFunc[U any] func(ctx context.Context, unit U) Outcome

// Run visits units in order and aggregates their outcomes under job.
//
// The returned error is nil for a completed run, whatever the number of
// failed units; Result.Status carries that signal. On cancellation or a
// connectivity failure the partial Result is returned with an error matching
// ErrAborted and the underlying cause.
func Run[U any](ctx context.Context, job string, units []U, fn UnitFunc[U]) (Result, error) {
	start := time.Now()
	res := Result{
		RunID:  uuid.NewString(),
		Job:    job,
		Status: StatusSuccess,
		Units:  make([]Outcome, 0, len(units)),
	}

	ctx = logger.WithFieldsContext(ctx, logger.Fields{
		logger.FieldRunID: res.RunID,
		logger.FieldJob:   job,
	})
	log := logger.FromContext(ctx)
	log.WithField("units", len(units)).Info("run started")

	finish := func(err error) (Result, error) {
		res.DurationMs = time.Since(start).Milliseconds()
		fields := logger.Fields{
			"units_processed":      res.UnitsProcessed,
			"units_failed":         res.UnitsFailed,
			"units_skipped":        res.UnitsSkipped,
			"rows_processed":       res.RowsProcessed,
			"status":               string(res.Status),
			logger.FieldDurationMs: res.DurationMs,
		}
		if err != nil {
			metrics.RecordRun(job, "aborted")
			log.WithFields(fields).WithError(err).Error("run aborted")
			return res, err
		}
		metrics.RecordRun(job, string(res.Status))
		log.WithFields(fields).Info("run finished")
		return res, nil
	}

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Errorf("%w: %w", ErrAborted, err))
		}

		unitStart := time.Now()
		o := fn(ctx, u)
		if o.Duration == 0 {
			o.Duration = time.Since(unitStart)
		}
		res.add(o)
		metrics.RecordUnit(job, o.Disposition.String())

		if o.Disposition == Failed && storage.IsConnectivity(o.Err) {
			return finish(fmt.Errorf("%w: unit %s: %w", ErrAborted, o.Unit, o.Err))
		}
	}
	return finish(nil)
}
