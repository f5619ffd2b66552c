// Package copyjob copies whole tables from a source database into a raw
// schema on the destination.
//
// Each unit is fetched in full, its schema is inferred from the field names,
// and the destination table is replaced and filled inside a single
// transaction. A unit that fails leaves its destination table exactly as it
// was before the run.
package copyjob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/records"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// JobName labels logs, metrics and results of copy runs.
const JobName = "copy"

// Defaults for Config.
const (
	DefaultTargetSchema = "raw"
	DefaultTablePrefix  = "olist_"
)

// Unit is one table to copy: Name picks the destination table, Source is the
// "schema.table" locator on the source database.
type Unit struct {
	Name   string `mapstructure:"name" json:"name"`
	Source string `mapstructure:"source" json:"source"`
}

// Config describes a copy run.
type Config struct {
	TargetSchema string
	TablePrefix  string
	ChunkSize    int
	Units        []Unit
}

func (c Config) withDefaults() Config {
	if c.TargetSchema == "" {
		c.TargetSchema = DefaultTargetSchema
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = storage.DefaultChunkSize
	}
	return c
}

// Job copies units from src to dst. Both handles are owned by the caller.
type Job struct {
	src storage.Repository
	dst storage.Repository
	cfg Config
}

// New returns a Job over already opened handles.
func New(src, dst storage.Repository, cfg Config) *Job {
	return &Job{src: src, dst: dst, cfg: cfg.withDefaults()}
}

// Run opens independent source and destination handles, copies every unit
// and closes the handles. Failing to open either handle or to create the
// target schema is returned before any unit runs.
func Run(ctx context.Context, srcCfg, dstCfg storage.Config, cfg Config) (batch.Result, error) {
	src, err := storage.New(ctx, srcCfg)
	if err != nil {
		return batch.Result{}, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := storage.New(ctx, dstCfg)
	if err != nil {
		return batch.Result{}, fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	return New(src, dst, cfg).Run(ctx)
}

// Target returns the destination table of u.
func (j *Job) Target(u Unit) storage.Target {
	return storage.Target{Schema: j.cfg.TargetSchema, Table: j.cfg.TablePrefix + u.Name}
}

// Run prepares both databases and drives every unit through the batch
// driver.
func (j *Job) Run(ctx context.Context) (batch.Result, error) {
	if err := j.prepareSource(ctx); err != nil {
		return batch.Result{}, err
	}
	if err := storage.EnsureSchemas(ctx, j.dst, j.cfg.TargetSchema); err != nil {
		return batch.Result{}, err
	}
	return batch.Run(ctx, JobName, j.cfg.Units, j.RunUnit)
}

// prepareSource attaches the schemas named by the unit locators when the
// source is SQLite, where a schema only exists once attached.
func (j *Job) prepareSource(ctx context.Context) error {
	if j.src.Kind() != "sqlite" {
		return nil
	}
	names := make([]string, 0, len(j.cfg.Units))
	for _, u := range j.cfg.Units {
		if i := strings.IndexByte(u.Source, '.'); i > 0 {
			names = append(names, u.Source[:i])
		}
	}
	return storage.EnsureSchemas(ctx, j.src, names...)
}

// RunUnit copies a single unit and reports its outcome. It never returns a
// processed outcome for a table that was not committed.
func (j *Job) RunUnit(ctx context.Context, u Unit) batch.Outcome {
	start := time.Now()
	target := j.Target(u)
	state := Pending

	ctx = logger.WithFieldsContext(ctx, logger.Fields{
		logger.FieldUnit:  u.Name,
		logger.FieldTable: target.FQN(),
	})
	log := logger.FromContext(ctx)

	fail := func(err error) batch.Outcome {
		err = fmt.Errorf("copy unit %q: %w", u.Name, err)
		log.WithError(err).WithField(logger.FieldStep, state.String()).Error("unit failed")
		o := batch.Fail(u.Name, target.FQN(), state.String(), 0, err)
		o.Duration = time.Since(start)
		return o
	}

	// Fetch.
	stepStart := time.Now()
	set, err := j.src.Query(ctx, ddl.SelectAllSQL(j.src.Dialect(), u.Source))
	metrics.RecordStep(JobName, "fetch", err, time.Since(stepStart))
	if err != nil {
		return fail(fmt.Errorf("fetch %s: %w", u.Source, err))
	}
	state = Fetched

	// Infer.
	s, err := schema.FromRecords(set)
	if errors.Is(err, schema.ErrNoData) {
		log.Warn("source returned no rows; destination left untouched")
		o := batch.Done(u.Name, target.FQN(), Done.String(), 0)
		o.Duration = time.Since(start)
		return o
	}
	if err != nil {
		return fail(fmt.Errorf("infer schema: %w", err))
	}
	state = SchemaInferred

	rows := set.Rows
	for _, row := range rows {
		records.TextRow(row)
	}
	columns := s.Names()

	// Replace and write in one transaction.
	stepStart = time.Now()
	var written int64
	err = storage.WithTx(ctx, j.dst, func(tx storage.Tx) error {
		if err := storage.ReplaceTable(ctx, tx, j.dst.Dialect(), target, s); err != nil {
			return fmt.Errorf("replace table: %w", err)
		}
		state = TableReplaced

		copyFn := func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
			return tx.CopyFrom(ctx, target, cols, chunk)
		}
		n, err := storage.WriteChunks(ctx, columns, rows, j.cfg.ChunkSize, copyFn, storage.LogProgress(ctx, JobName, target))
		written = n
		if err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		state = Written
		return nil
	})
	metrics.RecordStep(JobName, "write", err, time.Since(stepStart))
	if err != nil {
		if written > 0 {
			log.WithField(logger.FieldRows, written).Warn("rolled back written rows")
		}
		return fail(err)
	}

	o := batch.Done(u.Name, target.FQN(), Done.String(), written)
	o.Checksum = records.Checksum(columns, rows)
	o.Duration = time.Since(start)
	log.WithFields(logger.Fields{
		logger.FieldRows:       written,
		logger.FieldDurationMs: o.Duration.Milliseconds(),
	}).Info("unit copied")
	return o
}
