// Package metrics exports sampler and dispatch diagnostics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srodi/proctop/pkg/sampler"
	"github.com/srodi/proctop/pkg/types"
)

const namespace = "proctop"

// StatsSource is satisfied by *sampler.Sampler.
type StatsSource interface {
	Stats() sampler.Stats
}

// BatchSource is satisfied by *store.Store.
type BatchSource interface {
	Current() *types.Batch
}

// Collector reads counters on scrape; it holds no state of its own.
type Collector struct {
	stats StatsSource
	batch BatchSource

	cyclesDesc    *prometheus.Desc
	readsDesc     *prometheus.Desc
	overflowsDesc *prometheus.Desc
	durationDesc  *prometheus.Desc
	tasksDesc     *prometheus.Desc
	cpuDesc       *prometheus.Desc
	memUsedDesc   *prometheus.Desc
}

// NewCollector describes the metrics served for stats and batch. batch may be nil.
func NewCollector(stats StatsSource, batch BatchSource) *Collector {
	return &Collector{
		stats: stats,
		batch: batch,
		cyclesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sampler", "cycles_total"),
			"Completed sampling cycles.",
			nil, nil),
		readsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sampler", "recovered_reads_total"),
			"Process reads recovered locally, by outcome.",
			[]string{"outcome"}, nil),
		overflowsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "dispatch", "overflows_total"),
			"Batches dropped because the consumer had not taken the previous one.",
			nil, nil),
		durationDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sampler", "last_cycle_seconds"),
			"Duration of the most recent sampling cycle.",
			nil, nil),
		tasksDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "processes"),
			"Processes in the latest published batch.",
			nil, nil),
		cpuDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cpu_percent"),
			"Aggregate CPU utilisation in the latest published batch.",
			nil, nil),
		memUsedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "memory_used_bytes"),
			"Used memory in the latest published batch.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cyclesDesc
	ch <- c.readsDesc
	ch <- c.overflowsDesc
	ch <- c.durationDesc
	ch <- c.tasksDesc
	ch <- c.cpuDesc
	ch <- c.memUsedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.cyclesDesc, prometheus.CounterValue, float64(st.Cycles))
	ch <- prometheus.MustNewConstMetric(c.readsDesc, prometheus.CounterValue, float64(st.Vanished), "vanished")
	ch <- prometheus.MustNewConstMetric(c.readsDesc, prometheus.CounterValue, float64(st.Denied), "denied")
	ch <- prometheus.MustNewConstMetric(c.readsDesc, prometheus.CounterValue, float64(st.Skipped), "skipped")
	ch <- prometheus.MustNewConstMetric(c.overflowsDesc, prometheus.CounterValue, float64(st.Overflows))
	ch <- prometheus.MustNewConstMetric(c.durationDesc, prometheus.GaugeValue, st.LastDuration.Seconds())

	if c.batch == nil {
		return
	}
	b := c.batch.Current()
	if b == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.tasksDesc, prometheus.GaugeValue, float64(b.Stats.Tasks))
	ch <- prometheus.MustNewConstMetric(c.cpuDesc, prometheus.GaugeValue, b.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memUsedDesc, prometheus.GaugeValue, float64(b.System.MemUsed()))
}

var _ prometheus.Collector = (*Collector)(nil)
