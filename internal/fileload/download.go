package fileload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/command"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
)

// DefaultDataset is the Kaggle dataset holding the olist CSV files.
const DefaultDataset = "olistbr/brazilian-ecommerce"

// ErrMissingCredentials is returned when the Kaggle credentials are not set.
var ErrMissingCredentials = errors.New("fileload: KAGGLE_USERNAME and KAGGLE_KEY must be set")

// Downloader fetches the input files into dir before a load.
type Downloader interface {
	Download(ctx context.Context, dir string) error
}

// CommandDownloader downloads and unzips a dataset with the kaggle CLI.
type CommandDownloader struct {
	Dataset string
	// Binary defaults to "kaggle".
	Binary string
	Runner command.Runner
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Download implements Downloader.
func (d CommandDownloader) Download(ctx context.Context, dir string) error {
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("KAGGLE_USERNAME") == "" || getenv("KAGGLE_KEY") == "" {
		return ErrMissingCredentials
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	dataset := d.Dataset
	if dataset == "" {
		dataset = DefaultDataset
	}
	bin := d.Binary
	if bin == "" {
		bin = "kaggle"
	}
	runner := d.Runner
	if runner == nil {
		runner = command.Exec{}
	}

	log := logger.FromContext(ctx).WithFields(logger.Fields{"dataset": dataset, "dir": dir})
	log.Info("downloading dataset")
	spec := command.Spec{Name: bin, Args: []string{"datasets", "download", dataset, "--path", dir, "--unzip"}}
	if _, err := runner.Run(ctx, spec); err != nil {
		return fmt.Errorf("download %s: %w", dataset, err)
	}
	log.Info("dataset downloaded")
	return nil
}
