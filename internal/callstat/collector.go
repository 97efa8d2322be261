package callstat

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/memscope/internal/acquire"
)

const (
	layerEngine  = "engine"
	layerAcquire = "acquire"
)

// Collector implements prometheus.Collector over a Registry. Values are read
// on each scrape; nothing is cached.
type Collector struct {
	registry *Registry

	invocationsDesc *prometheus.Desc
	secondsDesc     *prometheus.Desc
	enabledDesc     *prometheus.Desc
}

// NewCollector creates a collector for r.
func NewCollector(r *Registry) *Collector {
	return &Collector{
		registry: r,
		invocationsDesc: prometheus.NewDesc(
			"memscope_call_invocations_total",
			"Total completed invocations per instrumented operation.",
			[]string{"layer", "operation"}, nil,
		),
		secondsDesc: prometheus.NewDesc(
			"memscope_call_seconds_total",
			"Total time spent per instrumented operation.",
			[]string{"layer", "operation"}, nil,
		),
		enabledDesc: prometheus.NewDesc(
			"memscope_call_statistics_enabled",
			"1 when call statistics are being recorded.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.invocationsDesc
	ch <- c.secondsDesc
	ch <- c.enabledDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	enabled := 0.0
	if c.registry.IsEnabled() {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.enabledDesc, prometheus.GaugeValue, enabled)
	if enabled == 0 {
		return
	}

	freq := c.registry.Frequency()
	for _, s := range c.registry.Snapshot() {
		c.emit(ch, layerEngine, s.Name, s.Count, s.Ticks, freq)
	}
	if stats := c.registry.foreignStatistics(); stats != nil {
		for i, call := range stats.Calls {
			c.emit(ch, layerAcquire, acquire.Kind(i).Name(), call.Count, call.Ticks, stats.Frequency)
		}
	}
}

func (c *Collector) emit(ch chan<- prometheus.Metric, layer, name string, count, ticks, freq uint64) {
	ch <- prometheus.MustNewConstMetric(c.invocationsDesc, prometheus.CounterValue, float64(count), layer, name)
	ch <- prometheus.MustNewConstMetric(c.secondsDesc, prometheus.CounterValue, float64(ticks)/float64(freq), layer, name)
}
