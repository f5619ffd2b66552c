package workflow

import (
	"context"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/command"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
)

// DBT runs dbt subcommands in a project directory.
type DBT struct {
	Binary      string // defaults to "dbt"
	ProjectDir  string
	ProfilesDir string
	Runner      command.Runner
}

// Spec returns the invocation for a subcommand such as "run" or "test".
func (d *DBT) Spec(sub string) command.Spec {
	bin := d.Binary
	if bin == "" {
		bin = "dbt"
	}
	args := []string{sub}
	if d.ProfilesDir != "" {
		args = append(args, "--profiles-dir="+d.ProfilesDir)
	}
	return command.Spec{Name: bin, Args: args, Dir: d.ProjectDir}
}

// Run executes one subcommand and logs its output at debug level.
func (d *DBT) Run(ctx context.Context, sub string) error {
	runner := d.Runner
	if runner == nil {
		runner = command.Exec{}
	}
	spec := d.Spec(sub)
	out, err := runner.Run(ctx, spec)
	logger.FromContext(ctx).WithField("cmd", spec.String()).Debug(string(out))
	return err
}
