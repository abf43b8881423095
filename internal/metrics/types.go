// Package metrics exports evaluation results in Prometheus text format.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter represents a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	value  int64
	labels map[string]string
}

// NewCounter creates a new counter.
func NewCounter(name, help string, labels map[string]string) *Counter {
	if labels == nil {
		labels = make(map[string]string)
	}
	return &Counter{
		name:   name,
		help:   help,
		labels: labels,
	}
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return // Counters can't decrease
	}
	atomic.AddInt64(&c.value, delta)
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Gauge represents a float64 gauge.
type Gauge struct {
	name   string
	help   string
	bits   uint64
	labels map[string]string
}

// NewGauge creates a new gauge.
func NewGauge(name, help string, labels map[string]string) *Gauge {
	if labels == nil {
		labels = make(map[string]string)
	}
	return &Gauge{
		name:   name,
		help:   help,
		labels: labels,
	}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(value float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(value))
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

// GaugeVec is a family of gauges that differ by label values.
type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	gauges     map[string]*Gauge
	mu         sync.RWMutex
}

// NewGaugeVec creates a new gauge vector.
func NewGaugeVec(name, help string, labelNames []string) *GaugeVec {
	return &GaugeVec{
		name:       name,
		help:       help,
		labelNames: labelNames,
		gauges:     make(map[string]*Gauge),
	}
}

// WithLabels returns the gauge for the given label values, creating it on first use.
func (gv *GaugeVec) WithLabels(labelValues ...string) *Gauge {
	if len(labelValues) != len(gv.labelNames) {
		panic(fmt.Sprintf("expected %d label values, got %d", len(gv.labelNames), len(labelValues)))
	}

	labels := make(map[string]string, len(gv.labelNames))
	for i, name := range gv.labelNames {
		labels[name] = labelValues[i]
	}
	key := labelsToKey(labels)

	gv.mu.RLock()
	gauge, exists := gv.gauges[key]
	gv.mu.RUnlock()
	if exists {
		return gauge
	}

	gv.mu.Lock()
	defer gv.mu.Unlock()

	// Double-check after acquiring write lock
	if gauge, exists := gv.gauges[key]; exists {
		return gauge
	}
	gauge = NewGauge(gv.name, gv.help, labels)
	gv.gauges[key] = gauge
	return gauge
}

// GetAll returns all gauges in the vector ordered by label key.
func (gv *GaugeVec) GetAll() []*Gauge {
	gv.mu.RLock()
	defer gv.mu.RUnlock()

	keys := make([]string, 0, len(gv.gauges))
	for k := range gv.gauges {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*Gauge, 0, len(keys))
	for _, k := range keys {
		result = append(result, gv.gauges[k])
	}
	return result
}

// labelsToKey builds a stable map key from labels.
func labelsToKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
		sb.WriteString(";")
	}
	return sb.String()
}
