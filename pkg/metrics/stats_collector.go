package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

// StatsFunc returns the current per-status item counts.
type StatsFunc func(ctx context.Context) (mailqueue.Stats, error)

// StatsCollector reports queue depth per status as gauges, queried on every scrape.
type StatsCollector struct {
	stats   StatsFunc
	timeout time.Duration
	logger  *slog.Logger
	desc    *prometheus.Desc
}

// NewStatsCollector creates a collector backed by stats. A store error
// during a scrape is logged and the sample is omitted.
func NewStatsCollector(namespace string, stats StatsFunc, logger *slog.Logger) *StatsCollector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsCollector{
		stats:   stats,
		timeout: 5 * time.Second,
		logger:  logger,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "items"),
			"Number of queue items by status",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.stats(ctx)
	if err != nil {
		c.logger.Error("failed to collect queue stats", slog.String("error", err.Error()))
		return
	}

	for status, value := range map[mailqueue.Status]int64{
		mailqueue.StatusPending:    stats.Pending,
		mailqueue.StatusProcessing: stats.Processing,
		mailqueue.StatusSent:       stats.Sent,
		mailqueue.StatusFailed:     stats.Failed,
	} {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(value), status.String())
	}
}
