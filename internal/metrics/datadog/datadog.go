// Package datadog implements a DogStatsD backend for the metrics package.
// Labels become sorted "key:value" tags; the job name and any configured
// tags are attached to every metric by the client.
package datadog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string
	// Namespace prefixes every metric name, e.g. "elt.".
	Namespace string
	// Job, when set, becomes a "job_name:<Job>" tag on every metric.
	Job string
	// GlobalTags are extra tags for every metric, e.g. "env:prod".
	GlobalTags []string
}

// client is the subset of statsd.ClientInterface the backend uses.
type client interface {
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Flush() error
	Close() error
}

// Backend is a Datadog implementation of metrics.Backend. It stays usable
// across Flush calls, so a scheduler can flush after every run; Close ends
// it.
type Backend struct {
	client client
}

// NewBackend dials the DogStatsD agent. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: Addr is required")
	}

	tags := append([]string(nil), cfg.GlobalTags...)
	if cfg.Job != "" {
		tags = append(tags, "job_name:"+cfg.Job)
	}

	opts := []statsd.Option{statsd.WithNamespace(cfg.Namespace)}
	if len(tags) > 0 {
		opts = append(opts, statsd.WithTags(tags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: dial %s: %w", cfg.Addr, err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a Count. Row and unit deltas are whole numbers; a
// fractional delta is truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(name, int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(name, value, tags(labels), 1)
}

// Flush sends buffered metrics to the agent.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Flush()
}

// Close flushes and releases the client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
