package metrics

import (
	"sort"
	"strconv"
	"strings"
)

// PrometheusFormat exports all metrics in Prometheus text exposition format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func (m *Metrics) PrometheusFormat() string {
	var sb strings.Builder

	// Run metrics
	writeCounter(&sb, m.RunsTotal)
	writeCounter(&sb, m.RecordsTotal)
	writeGauge(&sb, m.LastRunTimestamp)
	writeGauge(&sb, m.LastRunDuration)
	writeGauge(&sb, m.TopK)
	writeGauge(&sb, m.Truncated)

	// Partition metrics
	writeGaugeVec(&sb, m.Queries)
	writeGaugeVec(&sb, m.MRR)
	writeGaugeVec(&sb, m.SuccessRate)

	return sb.String()
}

func writeHeader(sb *strings.Builder, name, help, kind string) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(help)
	sb.WriteString("\n")

	sb.WriteString("# TYPE ")
	sb.WriteString(name)
	sb.WriteString(" ")
	sb.WriteString(kind)
	sb.WriteString("\n")
}

// writeCounter writes a counter in Prometheus format.
func writeCounter(sb *strings.Builder, c *Counter) {
	writeHeader(sb, c.name, c.help, "counter")

	sb.WriteString(c.name)
	writeLabels(sb, c.labels)
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatInt(c.Value(), 10))
	sb.WriteString("\n")
}

// writeGauge writes a gauge in Prometheus format.
func writeGauge(sb *strings.Builder, g *Gauge) {
	writeHeader(sb, g.name, g.help, "gauge")
	writeGaugeSample(sb, g)
}

// writeGaugeVec writes a gauge vector in Prometheus format.
func writeGaugeVec(sb *strings.Builder, gv *GaugeVec) {
	gauges := gv.GetAll()
	if len(gauges) == 0 {
		return
	}

	writeHeader(sb, gv.name, gv.help, "gauge")
	for _, g := range gauges {
		writeGaugeSample(sb, g)
	}
}

func writeGaugeSample(sb *strings.Builder, g *Gauge) {
	sb.WriteString(g.name)
	writeLabels(sb, g.labels)
	sb.WriteString(" ")
	sb.WriteString(strconv.FormatFloat(g.Value(), 'g', -1, 64))
	sb.WriteString("\n")
}

// writeLabels writes labels in Prometheus format {key="value",key2="value2"}.
func writeLabels(sb *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}

	// Sort keys for stable output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeString(labels[k]))
		sb.WriteString("\"")
	}
	sb.WriteString("}")
}

// escapeString escapes special characters in label values.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
