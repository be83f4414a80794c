// Package metrics provides Prometheus instrumentation for resbridge connectors.
//
// # Overview
//
// The metrics package provides:
//   - Pre-registered vectors for attribute, notification and conversion traffic
//   - A per-connector Collector that binds the connector label once
//   - A Timer for measuring hook latency
//
// # Basic Usage
//
//	c := metrics.NewCollector("process")
//	timer := metrics.NewTimer()
//	v, err := hook()
//	c.ObserveHook("get_attribute_value", timer.Stop())
//	c.RecordOperation("get_attribute", err)
//
// All vectors are registered on the default Prometheus registry through
// promauto; the CLI exposes them with promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttributeOperations counts facade calls.
	// Labels: connector, operation (connect/get/set/...), status (ok/error)
	AttributeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resbridge",
			Subsystem: "connector",
			Name:      "operations_total",
			Help:      "Total number of connector facade operations",
		},
		[]string{"connector", "operation", "status"},
	)

	// HookLatency tracks how long connector hooks hold a registry lock.
	// Labels: connector, hook
	HookLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resbridge",
			Subsystem: "connector",
			Name:      "hook_duration_seconds",
			Help:      "Duration of connector hook invocations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"connector", "hook"},
	)

	// RegisteredAttributes tracks the size of each connector's attribute map.
	RegisteredAttributes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resbridge",
			Subsystem: "connector",
			Name:      "registered_attributes",
			Help:      "Number of connected attributes",
		},
		[]string{"connector"},
	)

	// NotificationListeners tracks subscribed listeners per connector.
	NotificationListeners = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resbridge",
			Subsystem: "connector",
			Name:      "notification_listeners",
			Help:      "Number of subscribed notification listeners",
		},
		[]string{"connector"},
	)

	// NotificationsEmitted counts notifications delivered to listeners.
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resbridge",
			Subsystem: "notification",
			Name:      "emitted_total",
			Help:      "Total number of notifications delivered",
		},
		[]string{"category"},
	)

	// Conversions counts converter invocations.
	// Labels: from, to (Go type names), status (ok/error)
	Conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resbridge",
			Subsystem: "entity",
			Name:      "conversions_total",
			Help:      "Total number of value conversions",
		},
		[]string{"from", "to", "status"},
	)
)

// Collector binds the connector label for one connector instance.
type Collector struct {
	connector string
}

// NewCollector creates a collector for the named connector.
func NewCollector(connector string) *Collector {
	return &Collector{connector: connector}
}

// RecordOperation counts one facade call with its outcome.
func (c *Collector) RecordOperation(operation string, err error) {
	AttributeOperations.WithLabelValues(c.connector, operation, status(err)).Inc()
}

// RecordOutcome counts one facade call reported as a boolean success.
func (c *Collector) RecordOutcome(operation string, ok bool) {
	s := "ok"
	if !ok {
		s = "error"
	}
	AttributeOperations.WithLabelValues(c.connector, operation, s).Inc()
}

// ObserveHook records a hook duration.
func (c *Collector) ObserveHook(hook string, d time.Duration) {
	HookLatency.WithLabelValues(c.connector, hook).Observe(d.Seconds())
}

// SetAttributes records the current attribute count.
func (c *Collector) SetAttributes(n int) {
	RegisteredAttributes.WithLabelValues(c.connector).Set(float64(n))
}

// AddListeners moves the listener gauge by delta.
func (c *Collector) AddListeners(delta int) {
	NotificationListeners.WithLabelValues(c.connector).Add(float64(delta))
}

// Reset zeroes the gauges of a closed connector.
func (c *Collector) Reset() {
	RegisteredAttributes.WithLabelValues(c.connector).Set(0)
	NotificationListeners.WithLabelValues(c.connector).Set(0)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It may be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
