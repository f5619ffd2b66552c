package fileload

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/command"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestCommandDownloader(t *testing.T) {
	t.Parallel()

	creds := map[string]string{"KAGGLE_USERNAME": "u", "KAGGLE_KEY": "k"}

	tests := []struct {
		name    string
		env     map[string]string
		runErr  error
		wantErr error
		wantRun bool
	}{
		{name: "missing credentials", env: map[string]string{"KAGGLE_USERNAME": "u"}, wantErr: ErrMissingCredentials},
		{name: "success", env: creds, wantRun: true},
		{name: "command fails", env: creds, runErr: errors.New("exit status 1"), wantRun: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), "data", "raw")
			var got *command.Spec
			d := CommandDownloader{
				Getenv: envOf(tc.env),
				Runner: command.RunnerFunc(func(_ context.Context, s command.Spec) ([]byte, error) {
					got = &s
					return nil, tc.runErr
				}),
			}

			err := d.Download(context.Background(), dir)
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.runErr != nil:
				assert.ErrorIs(t, err, tc.runErr)
				assert.ErrorContains(t, err, DefaultDataset)
			default:
				require.NoError(t, err)
				assert.DirExists(t, dir)
			}

			if !tc.wantRun {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "kaggle", got.Name)
			assert.Equal(t, []string{"datasets", "download", DefaultDataset, "--path", dir, "--unzip"}, got.Args)
		})
	}
}
