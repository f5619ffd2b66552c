package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/config"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"

	// register all backends with the storage factory.
	_ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/all"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2
)

// errPartialFailure is returned when --fail-on-partial is set and a run
// finished with failed units.
var errPartialFailure = errors.New("run finished with partial_failure")

// app holds state resolved by the root command for its subcommands.
type app struct {
	cfgPath       string
	logLevel      string
	logFormat     string
	failOnPartial bool

	cfg *config.Config
	log *logger.Logger
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartialFailure):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitPartial
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "elt",
		Short:         "Extract-load engine for the e-commerce analytics warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "config file (default: ./configs/elt.yaml or ./elt.yaml if present)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides config)")
	pf.BoolVar(&a.failOnPartial, "fail-on-partial", false, "exit with status 2 when any unit failed")

	root.AddCommand(
		newCopyCmd(a),
		newLoadCmd(a),
		newRefreshCmd(a),
		newProbeCmd(),
		newRunCmd(a),
		newScheduleCmd(a),
		newValidateCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	a.log = logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cmd.ErrOrStderr(),
		ServiceName: "elt",
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
	logger.SetDefault(a.log)
	cmd.SetContext(a.log.WithContext(cmd.Context()))

	setupMetrics(cfg.Metrics, a.log)
	return nil
}

func (a *app) teardown() error {
	if err := metrics.Close(); err != nil && a.log != nil {
		a.log.WithError(err).Warn("metrics flush failed")
	}
	return logger.Sync()
}

// report prints v as indented JSON.
func report(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// finish prints a run result and maps its status to the command error.
func (a *app) finish(w io.Writer, res batch.Result, runErr error) error {
	if err := report(w, res); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if a.failOnPartial && res.Status == batch.StatusPartialFailure {
		return errPartialFailure
	}
	return nil
}
