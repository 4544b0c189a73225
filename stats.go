// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

// RouterStats is a snapshot of one routing stage's counters.
type RouterStats struct {
	Routed    uint64 `json:"routed"`
	Errors    uint64 `json:"errors"`
	Misrouted uint64 `json:"misrouted"`
	Dropped   uint64 `json:"dropped"`
}

// Stats is a monitoring snapshot of the whole pipeline.
//
// Counters are read one by one while workers run, so values from
// different stages are not taken at the same instant. After Wait they
// satisfy
//
//	Produced == Delivered + Stage1.Errors + ProcessorDropped + Stage2.Errors + InFlight()
type Stats struct {
	Produced         uint64      `json:"produced"`
	ProducerDropped  uint64      `json:"producer_dropped"`
	Stage1           RouterStats `json:"stage1"`
	Processed        uint64      `json:"processed"`
	ProcessorDropped uint64      `json:"processor_dropped"`
	Stage2           RouterStats `json:"stage2"`
	Delivered        uint64      `json:"delivered"`
	Violations       uint64      `json:"ordering_violations"`
	StrictViolations uint64      `json:"strict_ordering_violations"`

	ProducerDepth     []int `json:"producer_depth"`
	ProcessorInDepth  []int `json:"processor_in_depth"`
	ProcessorOutDepth []int `json:"processor_out_depth"`
	StrategyDepth     []int `json:"strategy_depth"`
}

// RoutingErrors returns the drops counted by both routers.
func (s *Stats) RoutingErrors() uint64 {
	return s.Stage1.Errors + s.Stage2.Errors
}

// Lost returns every message dropped at any stage, including messages
// a producer created but never got into its ring.
func (s *Stats) Lost() uint64 {
	return s.ProducerDropped + s.Stage1.Errors + s.ProcessorDropped + s.Stage2.Errors
}

// InFlight returns the number of messages sitting in rings.
func (s *Stats) InFlight() uint64 {
	var n int
	for _, depths := range [][]int{s.ProducerDepth, s.ProcessorInDepth, s.ProcessorOutDepth, s.StrategyDepth} {
		for _, d := range depths {
			n += d
		}
	}
	return uint64(n)
}

// Stats reads every counter and ring depth of the pipeline.
// Downstream counters are read first so a running pipeline never reports
// more delivered than produced.
func (p *Pipeline) Stats() Stats {
	var s Stats
	s.Delivered = p.strategies.Delivered()
	s.Violations = p.strategies.Violations()
	s.StrictViolations = p.strategies.StrictViolations()
	s.Stage2 = routerStats(p.stage2)
	s.Processed = p.processors.Processed()
	s.ProcessorDropped = p.processors.Dropped()
	s.Stage1 = routerStats(p.stage1)
	s.Produced = p.producers.Produced()
	s.ProducerDropped = p.producers.Dropped()

	s.ProducerDepth = depths(p.producerRings)
	s.ProcessorInDepth = depths(p.processorIn)
	s.ProcessorOutDepth = depths(p.processorOut)
	s.StrategyDepth = depths(p.strategyRings)
	return s
}

func routerStats(r *Router) RouterStats {
	misrouted, dropped := r.Misrouted(), r.Dropped()
	return RouterStats{
		Routed:    r.Routed(),
		Errors:    misrouted + dropped,
		Misrouted: misrouted,
		Dropped:   dropped,
	}
}

func depths(rings []*Queue) []int {
	d := make([]int, len(rings))
	for i, q := range rings {
		d[i] = q.Len()
	}
	return d
}
