package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EditorCollector bundles Prometheus metrics for an editing session and its
// persistence layer. It satisfies the recorder interfaces of the graph,
// history, store and persistence packages so each can drive its metrics
// directly.
type EditorCollector struct {
	gatherer prometheus.Gatherer

	ScenarioNodes  prometheus.Gauge
	ScenarioEdges  prometheus.Gauge
	HistoryEntries prometheus.Gauge
	HistoryCursor  prometheus.Gauge

	AutoSaveEvents *prometheus.CounterVec
	StoreOps       *prometheus.CounterVec
	StoreDurations *prometheus.HistogramVec
}

// NewEditorCollector registers editor Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewEditorCollector(reg prometheus.Registerer) (*EditorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_nodes",
		Help: "Current number of nodes in the open scenario.",
	}), "scenario_nodes")
	if err != nil {
		return nil, err
	}
	edges, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_edges",
		Help: "Current number of edges in the open scenario.",
	}), "scenario_edges")
	if err != nil {
		return nil, err
	}
	entries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "history_entries",
		Help: "Number of snapshots held in undo history.",
	}), "history_entries")
	if err != nil {
		return nil, err
	}
	cursor, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "history_cursor",
		Help: "Index of the current snapshot in undo history.",
	}), "history_cursor")
	if err != nil {
		return nil, err
	}

	autosave, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autosave_events_total",
		Help: "Auto-save lifecycle events, labeled by event (scheduled, suppressed, written, failed, retried, dropped).",
	}, []string{"event"}), "autosave_events_total")
	if err != nil {
		return nil, err
	}
	ops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "Scenario store calls, labeled by operation and result.",
	}, []string{"op", "result"}), "store_operations_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Scenario store call latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"op"}), "store_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &EditorCollector{
		gatherer:       gatherer,
		ScenarioNodes:  nodes,
		ScenarioEdges:  edges,
		HistoryEntries: entries,
		HistoryCursor:  cursor,
		AutoSaveEvents: autosave,
		StoreOps:       ops,
		StoreDurations: durations,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EditorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetScenarioCounts updates the node and edge gauges.
func (c *EditorCollector) SetScenarioCounts(nodes, edges int) {
	if c == nil {
		return
	}
	if c.ScenarioNodes != nil {
		c.ScenarioNodes.Set(float64(nodes))
	}
	if c.ScenarioEdges != nil {
		c.ScenarioEdges.Set(float64(edges))
	}
}

// SetHistory updates the undo history gauges.
func (c *EditorCollector) SetHistory(entries, cursor int) {
	if c == nil {
		return
	}
	if c.HistoryEntries != nil {
		c.HistoryEntries.Set(float64(entries))
	}
	if c.HistoryCursor != nil {
		c.HistoryCursor.Set(float64(cursor))
	}
}

// AutoSaveEvent counts one auto-save lifecycle event.
func (c *EditorCollector) AutoSaveEvent(event string) {
	if c == nil || c.AutoSaveEvents == nil {
		return
	}
	c.AutoSaveEvents.WithLabelValues(event).Inc()
}

// ObserveStoreOp records the result and latency of one store call.
func (c *EditorCollector) ObserveStoreOp(op, result string, d time.Duration) {
	if c == nil {
		return
	}
	if c.StoreOps != nil {
		c.StoreOps.WithLabelValues(op, result).Inc()
	}
	if c.StoreDurations != nil {
		c.StoreDurations.WithLabelValues(op).Observe(d.Seconds())
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
