// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes pipeline counters to Prometheus and over HTTP.
package metrics

import (
	"strconv"

	"code.hybscloud.com/msgroute"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "msgroute"

// StatsSource provides counter snapshots. It must be safe for concurrent use.
type StatsSource interface {
	Stats() msgroute.Stats
}

// Collector reads a fresh Stats snapshot on every scrape, so the pipeline's
// hot loops never touch Prometheus state.
type Collector struct {
	src StatsSource

	produced         *prometheus.Desc
	producerDropped  *prometheus.Desc
	routed           *prometheus.Desc
	routingErrors    *prometheus.Desc
	processed        *prometheus.Desc
	processorDropped *prometheus.Desc
	delivered        *prometheus.Desc
	violations       *prometheus.Desc
	strictViolations *prometheus.Desc
	queueDepth       *prometheus.Desc
}

// NewCollector creates a collector. Labels are attached to every metric,
// typically the run ID and scenario.
func NewCollector(src StatsSource, labels prometheus.Labels) *Collector {
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}
	return &Collector{
		src:              src,
		produced:         desc("produced_total", "Messages enqueued by producers."),
		producerDropped:  desc("producer_dropped_total", "Messages producers dropped on a full ring."),
		routed:           desc("routed_total", "Messages forwarded by a routing stage.", "stage"),
		routingErrors:    desc("routing_errors_total", "Messages a routing stage dropped.", "stage", "reason"),
		processed:        desc("processed_total", "Messages forwarded by processors."),
		processorDropped: desc("processor_dropped_total", "Messages processors dropped on a full ring."),
		delivered:        desc("delivered_total", "Messages delivered by strategies."),
		violations:       desc("ordering_violations_total", "Per (producer, type) sequence discontinuities."),
		strictViolations: desc("strict_ordering_violations_total", "Ordering violations on types that require ordering."),
		queueDepth:       desc("queue_depth", "Messages waiting in a ring.", "edge", "index"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.produced
	ch <- c.producerDropped
	ch <- c.routed
	ch <- c.routingErrors
	ch <- c.processed
	ch <- c.processorDropped
	ch <- c.delivered
	ch <- c.violations
	ch <- c.strictViolations
	ch <- c.queueDepth
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.produced, s.Produced)
	counter(c.producerDropped, s.ProducerDropped)
	for _, st := range []struct {
		stage msgroute.Stage
		rs    msgroute.RouterStats
	}{{msgroute.Stage1, s.Stage1}, {msgroute.Stage2, s.Stage2}} {
		name := st.stage.String()
		counter(c.routed, st.rs.Routed, name)
		counter(c.routingErrors, st.rs.Misrouted, name, "misrouted")
		counter(c.routingErrors, st.rs.Dropped, name, "backpressure")
	}
	counter(c.processed, s.Processed)
	counter(c.processorDropped, s.ProcessorDropped)
	counter(c.delivered, s.Delivered)
	counter(c.violations, s.Violations)
	counter(c.strictViolations, s.StrictViolations)

	for _, e := range []struct {
		edge   string
		depths []int
	}{
		{"producer", s.ProducerDepth},
		{"processor_in", s.ProcessorInDepth},
		{"processor_out", s.ProcessorOutDepth},
		{"strategy", s.StrategyDepth},
	} {
		for i, d := range e.depths {
			ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(d), e.edge, strconv.Itoa(i))
		}
	}
}
