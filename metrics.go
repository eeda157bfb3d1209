package commitlog

// metrics.go exports commit-log statistics to Prometheus.

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exposes a Statistics instance and, optionally, a
// LogBufferManager as Prometheus metrics. Tickers become counters named after
// the ticker with dots replaced by underscores and a _total suffix; histograms
// become summaries without quantiles.
type PrometheusCollector struct {
	stats   Statistics
	manager *LogBufferManager

	tickers    [TickerEnumMax]*prometheus.Desc
	histograms [HistogramEnumMax]*prometheus.Desc

	retained     *prometheus.Desc
	retainedPeak *prometheus.Desc
	limit        *prometheus.Desc
	stalled      *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector over stats and manager; either may
// be nil. constLabels are attached to every metric, for example the database path.
func NewPrometheusCollector(stats Statistics, manager *LogBufferManager, constLabels prometheus.Labels) *PrometheusCollector {
	c := &PrometheusCollector{stats: stats, manager: manager}

	for i := range TickerEnumMax {
		c.tickers[i] = prometheus.NewDesc(metricName(i.String())+"_total",
			"Commit-log ticker "+i.String()+".", nil, constLabels)
	}
	for i := range HistogramEnumMax {
		c.histograms[i] = prometheus.NewDesc(metricName(i.String()),
			"Commit-log histogram "+i.String()+".", nil, constLabels)
	}

	c.retained = prometheus.NewDesc("commitlog_retained_bytes",
		"Payload bytes currently retained by registries.", nil, constLabels)
	c.retainedPeak = prometheus.NewDesc("commitlog_retained_bytes_peak",
		"Peak payload bytes retained by registries.", nil, constLabels)
	c.limit = prometheus.NewDesc("commitlog_retained_bytes_limit",
		"Configured retained-bytes limit, 0 when unlimited.", nil, constLabels)
	c.stalled = prometheus.NewDesc("commitlog_writer_stalled",
		"1 while a writer is stalled on retained memory.", nil, constLabels)
	return c
}

func metricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	if c.stats != nil {
		for _, d := range c.tickers {
			ch <- d
		}
		for _, d := range c.histograms {
			ch <- d
		}
	}
	if c.manager != nil {
		ch <- c.retained
		ch <- c.retainedPeak
		ch <- c.limit
		ch <- c.stalled
	}
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		for i := range TickerEnumMax {
			ch <- prometheus.MustNewConstMetric(c.tickers[i], prometheus.CounterValue,
				float64(c.stats.GetTickerCount(i)))
		}
		for i := range HistogramEnumMax {
			data := c.stats.GetHistogramData(i)
			ch <- prometheus.MustNewConstSummary(c.histograms[i], data.Count, float64(data.Sum), nil)
		}
	}
	if c.manager != nil {
		stalled := 0.0
		if c.manager.IsStalled() {
			stalled = 1
		}
		ch <- prometheus.MustNewConstMetric(c.retained, prometheus.GaugeValue, float64(c.manager.MemoryUsage()))
		ch <- prometheus.MustNewConstMetric(c.retainedPeak, prometheus.GaugeValue, float64(c.manager.Stats().PeakUsage))
		ch <- prometheus.MustNewConstMetric(c.limit, prometheus.GaugeValue, float64(c.manager.BufferSize()))
		ch <- prometheus.MustNewConstMetric(c.stalled, prometheus.GaugeValue, stalled)
	}
}
