package adaptivity

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the progress of the adaptive loop
type Metrics struct {
	Iterations      prometheus.Counter
	ErrorEstimate   prometheus.Gauge
	FunctionalValue prometheus.Gauge
	Dofs            prometheus.Gauge
	Cells           prometheus.Gauge
	Marked          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "iterations_total",
			Help:      "Completed iterations of the adaptive loop.",
		}),
		ErrorEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "error_estimate",
			Help:      "Latest estimate of the error in the goal functional.",
		}),
		FunctionalValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "functional_value",
			Help:      "Latest value of the goal functional.",
		}),
		Dofs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "dofs",
			Help:      "Dimension of the latest primal space.",
		}),
		Cells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "cells",
			Help:      "Cells in the latest mesh.",
		}),
		Marked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "femkernel",
			Subsystem: "adaptive",
			Name:      "marked_cells",
			Help:      "Cells flagged for refinement in the latest iteration.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Iterations, m.ErrorEstimate, m.FunctionalValue, m.Dofs, m.Cells, m.Marked)
	}
	return m
}

// Observe records one iteration
func (m *Metrics) Observe(d Datum) {
	m.Iterations.Inc()
	m.ErrorEstimate.Set(d.ErrorEstimate)
	m.FunctionalValue.Set(d.FunctionalValue)
	m.Dofs.Set(float64(d.NumDofs))
	m.Cells.Set(float64(d.NumCells))
	m.Marked.Set(float64(d.NumMarked))
}
