// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "time"

// Latency is the transit time of one delivered message, in nanoseconds.
type Latency struct {
	Upstream   int64 // Origin to processor stamp: producer ring, Stage-1, processor ring
	Downstream int64 // Processor stamp to delivery: output ring, Stage-2, strategy ring
}

// Total returns the end-to-end latency.
func (l Latency) Total() int64 {
	return l.Upstream + l.Downstream
}

// StrategyConfig configures a single strategy.
type StrategyConfig struct {
	ID             uint32
	Wait           WaitPolicy
	Work           map[Type]time.Duration // Simulated per-type strategy time
	Rules          *RuleTable             // Optional; enables StrictViolations
	LatencySamples int                    // Sample ring size; 0 disables sampling
}

// Strategy is the terminal stage. It checks sequence continuity per
// (producer, type) and counts deliveries.
//
// Violations are observational: an out-of-order, duplicated or skipped
// message is counted and still delivered. The tracker is private to the
// strategy goroutine.
type Strategy struct {
	lifecycle
	id        uint32
	in        *Queue
	wait      waiter
	work      [NumTypes]time.Duration
	rules     *RuleTable
	expected  map[Key]uint64
	samples   *Ring[Latency]
	delivered counter
	violation counter
	strict    counter
}

// NewStrategy creates a strategy that is the single consumer of in.
func NewStrategy(cfg StrategyConfig, in *Queue) *Strategy {
	s := &Strategy{
		lifecycle: newLifecycle(),
		id:        cfg.ID,
		in:        in,
		wait:      newWaiter(cfg.Wait),
		rules:     cfg.Rules,
		expected:  make(map[Key]uint64),
	}
	for t, d := range cfg.Work {
		s.work[t] = d
	}
	if cfg.LatencySamples > 0 {
		s.samples = NewRing[Latency](cfg.LatencySamples)
	}
	return s
}

// ID returns the strategy index.
func (s *Strategy) ID() uint32 { return s.id }

// Start spawns the delivery loop.
func (s *Strategy) Start() { s.start(s.run) }

func (s *Strategy) run() {
	for s.running() {
		if s.Poll() == 0 {
			s.wait.Wait()
			continue
		}
		s.wait.Reset()
	}
}

// Poll drains the input ring once and returns the number of messages delivered.
// Poll is the loop body; call it directly only on a strategy that is not started.
func (s *Strategy) Poll() int {
	n := 0
	for {
		m, err := s.in.Dequeue()
		if err != nil {
			return n
		}
		n++
		s.deliver(&m)
	}
}

func (s *Strategy) deliver(m *Message) {
	key := m.Key()
	want, ok := s.expected[key]
	if ok && m.Seq != want {
		s.violation.inc()
		if s.rules != nil && s.rules.OrderingRequired(m.Type) {
			s.strict.inc()
		}
	}
	// The tracker only moves forward: a late message is counted once and
	// does not make its successors look late too.
	if next := m.Seq + 1; !ok || next > want {
		s.expected[key] = next
	}

	busy(s.work[m.Type])

	if s.samples != nil && m.Processed != 0 {
		now := Now()
		l := Latency{Upstream: m.Processed - m.Origin, Downstream: now - m.Processed}
		_ = s.samples.Enqueue(&l) // A full sample ring drops the sample
	}
	s.delivered.inc()
}

// Delivered returns the number of messages delivered.
func (s *Strategy) Delivered() uint64 { return s.delivered.load() }

// Violations returns the number of sequence discontinuities observed.
func (s *Strategy) Violations() uint64 { return s.violation.load() }

// StrictViolations returns the violations on types whose Stage-2 rule
// requires ordering. Always 0 without a rule table.
func (s *Strategy) StrictViolations() uint64 { return s.strict.load() }

// Input returns the ring the strategy consumes.
func (s *Strategy) Input() *Queue { return s.in }

// Samples returns the latency sample ring, or nil when sampling is off.
// Exactly one goroutine may dequeue from it.
func (s *Strategy) Samples() *Ring[Latency] { return s.samples }
