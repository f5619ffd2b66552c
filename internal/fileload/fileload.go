// Package fileload bulk-loads CSV files into destination tables.
//
// Files are streamed: a reader goroutine parses rows while the loader writes
// them in chunks. Each chunk commits in its own transaction, the first one
// replacing the table. A failure part way through therefore leaves the rows
// of the chunks already committed in place.
package fileload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/datasource/file"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
	csvparser "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/parser/csv"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/schema"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// JobName labels logs, metrics and results of load runs.
const JobName = "load"

// DefaultSchema is the destination schema when none is configured.
const DefaultSchema = "raw"

// Unit states reported in outcomes.
const (
	statePending        = "pending"
	stateOpened         = "opened"
	stateSchemaInferred = "schema_inferred"
	stateTableReplaced  = "table_replaced"
	stateDone           = "done"
)

// Unit is one CSV file and the table it loads into.
type Unit struct {
	Path  string `mapstructure:"file" json:"file"`
	Table string `mapstructure:"table" json:"table"`
}

// Config describes a load run.
type Config struct {
	// Dir resolves relative unit paths.
	Dir       string
	Schema    string
	ChunkSize int
	// GrantTo, when set on Postgres, receives privileges on every loaded
	// table.
	GrantTo string
	CSV     csvparser.Options
	Units   []Unit
}

func (c Config) withDefaults() Config {
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = storage.DefaultChunkSize
	}
	return c
}

// Job loads units into dst, which is owned by the caller.
type Job struct {
	dst storage.Repository
	cfg Config
	dl  Downloader
}

// New returns a Job. A nil Downloader skips the download stage.
func New(dst storage.Repository, cfg Config, dl Downloader) *Job {
	return &Job{dst: dst, cfg: cfg.withDefaults(), dl: dl}
}

// Run opens the destination, runs the job and closes it.
func Run(ctx context.Context, dstCfg storage.Config, cfg Config, dl Downloader) (batch.Result, error) {
	dst, err := storage.New(ctx, dstCfg)
	if err != nil {
		return batch.Result{}, fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()
	return New(dst, cfg, dl).Run(ctx)
}

// Target returns the destination table of u.
func (j *Job) Target(u Unit) storage.Target {
	return storage.Target{Schema: j.cfg.Schema, Table: u.Table}
}

func (j *Job) path(u Unit) string {
	if filepath.IsAbs(u.Path) || j.cfg.Dir == "" {
		return u.Path
	}
	return filepath.Join(j.cfg.Dir, u.Path)
}

// Run downloads the inputs if configured, ensures the schema and loads every
// unit. Download and schema failures abort before any unit runs.
func (j *Job) Run(ctx context.Context) (batch.Result, error) {
	if j.dl != nil {
		start := time.Now()
		err := j.dl.Download(ctx, j.cfg.Dir)
		metrics.RecordStep(JobName, "download", err, time.Since(start))
		if err != nil {
			return batch.Result{}, err
		}
	}
	if err := storage.EnsureSchemas(ctx, j.dst, j.cfg.Schema); err != nil {
		return batch.Result{}, err
	}
	return batch.Run(ctx, JobName, j.cfg.Units, j.RunUnit)
}

// RunUnit loads one file. A missing file is skipped; an empty file is a
// no-op; a header-only file leaves an empty table.
func (j *Job) RunUnit(ctx context.Context, u Unit) batch.Outcome {
	start := time.Now()
	target := j.Target(u)
	path := j.path(u)
	state := statePending

	ctx = logger.WithFieldsContext(ctx, logger.Fields{
		logger.FieldUnit:  u.Table,
		logger.FieldTable: target.FQN(),
		"file":            path,
	})
	log := logger.FromContext(ctx)

	var written int64
	finish := func(o batch.Outcome) batch.Outcome {
		o.Duration = time.Since(start)
		return o
	}
	fail := func(err error) batch.Outcome {
		err = fmt.Errorf("load unit %q: %w", u.Table, err)
		log.WithError(err).WithFields(logger.Fields{
			logger.FieldStep: state,
			logger.FieldRows: written,
		}).Error("unit failed")
		return finish(batch.Fail(u.Table, target.FQN(), state, written, err))
	}

	src := file.NewLocal(path)
	ok, err := src.Exists()
	if err != nil {
		return fail(err)
	}
	if !ok {
		log.Warn("file not found; skipping table")
		return finish(batch.Skip(u.Table, target.FQN(), "file not found: "+path))
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return fail(err)
	}
	defer rc.Close()
	state = stateOpened

	rd := csvparser.NewReader(rc, j.cfg.CSV)
	header, err := rd.Header()
	if err != nil && !errors.Is(err, csvparser.ErrEmpty) {
		return fail(err)
	}
	s, err := schema.FromHeader(header)
	if errors.Is(err, schema.ErrNoData) {
		log.Warn("file is empty; table left untouched")
		return finish(batch.Done(u.Table, target.FQN(), stateDone, 0))
	}
	if err != nil {
		return fail(fmt.Errorf("infer schema: %w", err))
	}
	state = stateSchemaInferred
	columns := s.Names()

	replaced := false
	copyFn := func(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
		var n int64
		err := storage.WithTx(ctx, j.dst, func(tx storage.Tx) error {
			if !replaced {
				if err := storage.ReplaceTable(ctx, tx, j.dst.Dialect(), target, s); err != nil {
					return fmt.Errorf("replace table: %w", err)
				}
			}
			var err error
			n, err = tx.CopyFrom(ctx, target, cols, chunk)
			return err
		})
		if err != nil {
			return 0, err
		}
		if !replaced {
			replaced = true
			state = stateTableReplaced
		}
		return n, nil
	}

	rowsCh := make(chan []any, j.cfg.ChunkSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rowsCh)
		return rd.Stream(gctx, len(columns), rowsCh)
	})
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, columns, rowsCh, j.cfg.ChunkSize, copyFn, storage.LogProgress(ctx, JobName, target))
		written = n
		return err
	})
	err = g.Wait()
	metrics.RecordStep(JobName, "write", err, time.Since(start))
	if err != nil {
		return fail(err)
	}

	// Header-only file: no chunk ran, so the table still needs replacing.
	if !replaced {
		err := storage.WithTx(ctx, j.dst, func(tx storage.Tx) error {
			return storage.ReplaceTable(ctx, tx, j.dst.Dialect(), target, s)
		})
		if err != nil {
			return fail(fmt.Errorf("replace table: %w", err))
		}
	}

	j.grant(ctx, target)

	log.WithFields(logger.Fields{
		logger.FieldRows:       written,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("unit loaded")
	return finish(batch.Done(u.Table, target.FQN(), stateDone, written))
}

// grant gives the configured role access to target. Only Postgres supports
// it; failures are logged and do not fail the unit.
func (j *Job) grant(ctx context.Context, target storage.Target) {
	if j.cfg.GrantTo == "" || j.dst.Kind() != "postgres" {
		return
	}
	d := j.dst.Dialect()
	role := d.QuoteIdent(j.cfg.GrantTo)
	err := storage.WithTx(ctx, j.dst, func(tx storage.Tx) error {
		if err := tx.Exec(ctx, "GRANT USAGE ON SCHEMA "+d.QuoteIdent(target.Schema)+" TO "+role); err != nil {
			return err
		}
		return tx.Exec(ctx, "GRANT ALL PRIVILEGES ON TABLE "+ddl.QuoteFQN(d, target.FQN())+" TO "+role)
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("role", j.cfg.GrantTo).Warn("grant failed")
	}
}
