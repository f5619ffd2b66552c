package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/config"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metabase"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/probe"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/workflow"
)

func newCopyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy the configured source tables into the raw schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runCopy(cmd.Context(), a.cfg)
			return a.finish(cmd.OutOrStdout(), res, err)
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	var download bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the configured CSV files into the destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("download") {
				a.cfg.Load.Download.Enabled = download
			}
			res, err := runLoad(cmd.Context(), a.cfg)
			return a.finish(cmd.OutOrStdout(), res, err)
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "download the dataset before loading (overrides config)")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	var ids []int
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh Metabase dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(ids) == 0 {
				ids = a.cfg.Metabase.DashboardIDs
			}
			if a.cfg.Metabase.URL == "" || len(ids) == 0 {
				return errors.New("no metabase url or dashboards configured")
			}
			client := metabaseClient(a.cfg)
			sums := make([]metabase.Summary, 0, len(ids))
			var errs []error
			for _, id := range ids {
				s, err := client.RefreshDashboard(cmd.Context(), id)
				if err != nil {
					errs = append(errs, fmt.Errorf("dashboard %d: %w", id, err))
					continue
				}
				sums = append(sums, s)
			}
			if err := report(cmd.OutOrStdout(), sums); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().IntSliceVar(&ids, "dashboard", nil, "dashboard id to refresh (repeatable; default from config)")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the whole workflow once: copy, dbt run, dbt test, dashboard refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := pipeline(a.cfg).Run(cmd.Context())
			if perr := report(cmd.OutOrStdout(), r); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if a.failOnPartial && r.Status == string(batch.StatusPartialFailure) {
				return errPartialFailure
			}
			return nil
		},
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	var cronSpec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the workflow on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cronSpec == "" {
				cronSpec = a.cfg.Schedule.Cron
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline(a.cfg)
			runOnce := func(ctx context.Context) {
				r, err := p.Run(ctx)
				log := a.log.WithField("run_id", r.RunID).WithField("status", r.Status)
				if ferr := metrics.Flush(); ferr != nil {
					log.WithError(ferr).Warn("metrics flush failed")
				}
				if err != nil && !workflow.IsCancelled(err) {
					log.WithError(err).Error("scheduled run failed")
					return
				}
				log.Info("scheduled run finished")
			}

			s, err := workflow.NewScheduler(cronSpec, a.log, runOnce)
			if err != nil {
				return err
			}

			s.RunOnStart = a.cfg.Schedule.RunOnStart
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "", "cron expression (default from config)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without contacting any service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := config.Validate(*a.cfg)
			w := cmd.OutOrStdout()
			for _, iss := range issues {
				fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return errors.New("configuration is invalid")
			}
			fmt.Fprintln(w, "Configuration is valid.")
			return nil
		},
	}
}

func newProbeCmd() *cobra.Command {
	var (
		maxBytes int
		delim    string
	)
	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Sample CSV files and print their normalized columns and a load entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := probe.Options{MaxBytes: maxBytes}
			if delim != "" {
				opt.Delimiter = config.LoadConfig{Delimiter: delim}.Comma()
			}
			out := make([]probe.Result, 0, len(args))
			for _, path := range args {
				res, err := probe.Probe(cmd.Context(), path, opt)
				if err != nil {
					return err
				}
				out = append(out, res)
			}
			return report(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&maxBytes, "bytes", probe.DefaultMaxBytes, "bytes to sample from the start of each file")
	cmd.Flags().StringVar(&delim, "delimiter", "", "field delimiter (default: detect)")
	return cmd
}
