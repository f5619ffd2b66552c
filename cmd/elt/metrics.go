package main

import (
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/config"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/logger"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics/datadog"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend. Failures leave the
// nop backend in place.
func setupMetrics(cfg config.MetricsConfig, log *logger.Logger) {
	log = log.WithField("backend", cfg.Backend)

	switch cfg.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			log.WithError(err).Warn("metrics: failed to init prom push backend; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithField("url", cfg.PushgatewayURL).Debug("metrics enabled")

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.DatadogAddr, Namespace: cfg.Namespace, Job: cfg.Job})
		if err != nil {
			log.WithError(err).Warn("metrics: failed to init datadog backend; using nop")
			return
		}
		metrics.SetBackend(b)
		log.WithField("addr", cfg.DatadogAddr).Debug("metrics enabled")

	case "", "none":
		log.Debug("metrics disabled")

	default:
		log.Warn("metrics: unknown backend; metrics disabled")
	}
}
