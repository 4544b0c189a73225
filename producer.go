// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import (
	"math"
	"math/rand/v2"

	"golang.org/x/time/rate"
)

// TypeWeight is the relative emission frequency of one message type.
type TypeWeight struct {
	Type   Type
	Weight float64
}

// DefaultTypes is the distribution used when none is configured:
// types 0 through 3 with equal weight.
func DefaultTypes() []TypeWeight {
	return []TypeWeight{{0, 1}, {1, 1}, {2, 1}, {3, 1}}
}

// ProducerConfig configures a single producer.
type ProducerConfig struct {
	ID             uint32
	MessagesPerSec int // 0 means unpaced
	Types          []TypeWeight
	Retries        int
	Wait           WaitPolicy
	Seed           uint64
}

// Producer emits a paced stream of sequenced messages into its own ring.
//
// Every created message takes the next sequence number, including
// messages later dropped because the ring stayed full. Dropped() makes
// those gaps visible.
type Producer struct {
	lifecycle
	id       uint32
	out      *Queue
	limiter  *rate.Limiter
	pick     typePicker
	retries  int
	wait     waiter
	seq      uint64
	produced counter
	dropped  counter
}

// NewProducer creates a producer writing to out. The producer is the
// only goroutine that may enqueue on out.
func NewProducer(cfg ProducerConfig, out *Queue) *Producer {
	limit := rate.Inf
	if cfg.MessagesPerSec > 0 {
		limit = rate.Limit(cfg.MessagesPerSec)
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultProducerRetries
	}
	types := cfg.Types
	if len(types) == 0 {
		types = DefaultTypes()
	}
	return &Producer{
		lifecycle: newLifecycle(),
		id:        cfg.ID,
		out:       out,
		limiter:   rate.NewLimiter(limit, 1),
		pick:      newTypePicker(types, cfg.Seed^uint64(cfg.ID)),
		retries:   retries,
		wait:      newWaiter(cfg.Wait),
	}
}

// ID returns the producer identity stamped on its messages.
func (p *Producer) ID() uint32 { return p.id }

// Start spawns the emission loop.
func (p *Producer) Start() { p.start(p.run) }

func (p *Producer) run() {
	idle := newWaiter(p.wait.policy)
	for p.running() {
		if !p.limiter.Allow() {
			idle.Wait()
			continue
		}
		idle.Reset()
		p.Emit()
	}
}

// Emit creates the next message and tries to deliver it, bypassing pacing.
// Reports whether the message reached the ring.
// Emit is the loop body; call it directly only on a producer that is not started.
func (p *Producer) Emit() bool {
	p.seq++
	m := Message{
		Type:     p.pick.next(),
		Producer: p.id,
		Seq:      p.seq,
		Origin:   Now(),
	}
	if p.wait.push(p.out, &m, p.retries) {
		p.produced.inc()
		return true
	}
	p.dropped.inc()
	return false
}

// Produced returns the number of messages delivered to the ring.
func (p *Producer) Produced() uint64 { return p.produced.load() }

// Dropped returns the number of created messages lost to backpressure.
func (p *Producer) Dropped() uint64 { return p.dropped.load() }

// Sequence returns the last assigned sequence number.
// Only the producer goroutine may call it while the producer runs.
func (p *Producer) Sequence() uint64 { return p.seq }

// Queue returns the producer's output ring.
func (p *Producer) Queue() *Queue { return p.out }

// typePicker draws message types from a weighted distribution.
type typePicker struct {
	types []Type
	cum   []float64
	rng   *rand.Rand
}

func newTypePicker(weights []TypeWeight, seed uint64) typePicker {
	tp := typePicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	total := 0.0
	for _, w := range weights {
		if w.Weight <= 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			continue
		}
		total += w.Weight
		tp.types = append(tp.types, w.Type)
		tp.cum = append(tp.cum, total)
	}
	if total == 0 {
		return newTypePicker(DefaultTypes(), seed)
	}
	for i := range tp.cum {
		tp.cum[i] /= total
	}
	return tp
}

func (tp *typePicker) next() Type {
	if len(tp.types) == 1 {
		return tp.types[0]
	}
	x := tp.rng.Float64()
	for i, c := range tp.cum {
		if x < c {
			return tp.types[i]
		}
	}
	return tp.types[len(tp.types)-1]
}
