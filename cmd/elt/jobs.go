package main

import (
	"context"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/config"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/copyjob"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/fileload"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metabase"
	csvparser "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/parser/csv"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/workflow"
)

func copyConfig(c *config.Config) copyjob.Config {
	units := make([]copyjob.Unit, len(c.Copy.Tables))
	for i, t := range c.Copy.Tables {
		units[i] = copyjob.Unit{Name: t.Name, Source: t.Source}
	}
	return copyjob.Config{
		TargetSchema: c.Copy.TargetSchema,
		TablePrefix:  c.Copy.TablePrefix,
		ChunkSize:    c.Copy.ChunkSize,
		Units:        units,
	}
}

func loadConfig(c *config.Config) fileload.Config {
	units := make([]fileload.Unit, len(c.Load.Files))
	for i, f := range c.Load.Files {
		units[i] = fileload.Unit{Path: f.File, Table: f.Table}
	}
	return fileload.Config{
		Dir:       c.Load.Dir,
		Schema:    c.Load.Schema,
		ChunkSize: c.Load.ChunkSize,
		GrantTo:   c.Load.GrantTo,
		CSV:       csvparser.Options{Comma: c.Load.Comma(), LazyQuotes: c.Load.LazyQuotes},
		Units:     units,
	}
}

func downloader(c *config.Config) fileload.Downloader {
	if !c.Load.Download.Enabled {
		return nil
	}
	return fileload.CommandDownloader{Dataset: c.Load.Download.Dataset, Binary: c.Load.Download.Binary}
}

func runCopy(ctx context.Context, c *config.Config) (batch.Result, error) {
	return copyjob.Run(ctx, c.Source.Storage(), c.Destination.Storage(), copyConfig(c))
}

func runLoad(ctx context.Context, c *config.Config) (batch.Result, error) {
	return fileload.Run(ctx, c.Destination.Storage(), loadConfig(c), downloader(c))
}

func metabaseClient(c *config.Config) *metabase.Client {
	m := c.Metabase
	return metabase.New(metabase.Config{
		URL:            m.URL,
		Username:       m.Username,
		Password:       m.Password,
		RetryCount:     m.RetryCount,
		SessionTimeout: m.SessionTimeout,
		QueryTimeout:   m.QueryTimeout,
	})
}

// pipeline assembles the workflow from c. dbt and dashboard steps are left
// out when they are not configured.
func pipeline(c *config.Config) workflow.Pipeline {
	p := workflow.Pipeline{
		Extract: func(ctx context.Context) (batch.Result, error) { return runCopy(ctx, c) },
	}
	if c.DBT.Enabled {
		p.DBT = &workflow.DBT{Binary: c.DBT.Binary, ProjectDir: c.DBT.ProjectDir, ProfilesDir: c.DBT.ProfilesDir}
	}
	if c.Metabase.Enabled() {
		p.Refresher = metabaseClient(c)
		p.DashboardIDs = c.Metabase.DashboardIDs
	}
	return p
}
