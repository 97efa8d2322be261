package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/memscope/internal/progress"
)

// PrometheusSink exports the latest progress of each action as gauges.
// One sink may be shared by several trackers; series are keyed by action.
type PrometheusSink struct {
	pagesRead   *prometheus.GaugeVec
	pagesFailed *prometheus.GaugeVec
	pagesTotal  *prometheus.GaugeVec
	runs        *prometheus.GaugeVec
	frames      *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"action"}
	s := &PrometheusSink{
		pagesRead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_progress_pages_read",
			Help: "Pages successfully read by the current bulk operation.",
		}, labels),
		pagesFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_progress_pages_failed",
			Help: "Pages that failed to read in the current bulk operation.",
		}, labels),
		pagesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_progress_pages_total",
			Help: "Pages in the range of the current bulk operation; absent when unknown.",
		}, labels),
		runs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_progress_memmap_runs",
			Help: "Contiguous readable extents recorded so far.",
		}, labels),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memscope_progress_frames_total",
			Help: "Progress frames rendered.",
		}, labels),
	}
	for _, collector := range []prometheus.Collector{
		s.pagesRead,
		s.pagesFailed,
		s.pagesTotal,
		s.runs,
		s.frames,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the gauges from snap.
func (s *PrometheusSink) Consume(_ context.Context, snap progress.Snapshot) error {
	action := snap.Action
	if action == "" {
		action = "unknown"
	}
	s.pagesRead.WithLabelValues(action).Set(float64(snap.Success))
	s.pagesFailed.WithLabelValues(action).Set(float64(snap.Fail))
	if !snap.Unknown() {
		s.pagesTotal.WithLabelValues(action).Set(float64(snap.Total))
	}
	s.runs.WithLabelValues(action).Set(float64(len(snap.Runs)))
	s.frames.WithLabelValues(action).Inc()
	return nil
}

// Close implements the Sink interface; series are kept for the last scrape.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
