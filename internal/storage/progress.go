package storage

import (
	"context"
	"time"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
)

// LogProgress returns a ProgressFn that logs each chunk for target and counts
// it in metrics under job.
func LogProgress(ctx context.Context, job string, target Target) ProgressFn {
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJob:   job,
		logger.FieldTable: target.FQN(),
	})
	return func(p Progress) {
		metrics.RecordChunks(job, 1)
		metrics.RecordRow(job, "written", p.Rows)
		log.WithFields(logger.Fields{
			"chunk":      p.Chunk,
			"inserted":   p.Rows,
			"total":      p.Total,
			"rps":        int64(p.RowsPerSec()),
			"elapsed":    p.Elapsed.Truncate(time.Millisecond).String(),
			"since_last": p.SinceLast.Truncate(time.Millisecond).String(),
		}).Info("chunk written")
	}
}
