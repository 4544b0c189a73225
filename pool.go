// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

// Pool is a fixed set of workers built at wiring time, each with its own
// rings. Lifecycle calls broadcast to every worker.
//
// Aggregates sum per-worker counters without a common snapshot point, so
// they are eventually consistent: fine for monitoring, not for gating.
type Pool[W Runner] struct {
	workers []W
}

// NewPool wraps workers. The slice is owned by the pool afterwards.
func NewPool[W Runner](workers []W) Pool[W] {
	return Pool[W]{workers: workers}
}

// StartAll starts every worker. Idempotent.
func (p *Pool[W]) StartAll() {
	for _, w := range p.workers {
		w.Start()
	}
}

// StopAll requests every worker to stop. Idempotent, does not block.
func (p *Pool[W]) StopAll() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Wait blocks until every started worker has exited.
func (p *Pool[W]) Wait() {
	for _, w := range p.workers {
		w.Wait()
	}
}

// Len returns the number of workers.
func (p *Pool[W]) Len() int { return len(p.workers) }

// Worker returns worker i.
func (p *Pool[W]) Worker(i int) W { return p.workers[i] }

// Sum adds f over all workers.
func (p *Pool[W]) Sum(f func(W) uint64) uint64 {
	var total uint64
	for _, w := range p.workers {
		total += f(w)
	}
	return total
}

// ProducerPool owns one producer per producer ring.
type ProducerPool struct {
	Pool[*Producer]
}

// NewProducerPool builds one producer per ring in outs. Producer i gets
// identity i and writes only to outs[i].
func NewProducerPool(cfg ProducerConfig, outs []*Queue) *ProducerPool {
	workers := make([]*Producer, len(outs))
	for i, q := range outs {
		c := cfg
		c.ID = uint32(i)
		workers[i] = NewProducer(c, q)
	}
	return &ProducerPool{NewPool(workers)}
}

// Produced returns the total of messages delivered by all producers.
func (p *ProducerPool) Produced() uint64 { return p.Sum((*Producer).Produced) }

// Dropped returns the total of messages dropped by all producers.
func (p *ProducerPool) Dropped() uint64 { return p.Sum((*Producer).Dropped) }

// ProcessorPool owns one processor per input/output ring pair.
type ProcessorPool struct {
	Pool[*Processor]
}

// NewProcessorPool builds processor i on ins[i] and outs[i].
// It panics if the ring slices differ in length.
func NewProcessorPool(cfg ProcessorConfig, ins, outs []*Queue) *ProcessorPool {
	if len(ins) != len(outs) {
		panic("msgroute: processor input and output ring counts differ")
	}
	workers := make([]*Processor, len(ins))
	for i := range ins {
		c := cfg
		c.ID = uint32(i)
		workers[i] = NewProcessor(c, ins[i], outs[i])
	}
	return &ProcessorPool{NewPool(workers)}
}

// Processed returns the total of messages forwarded by all processors.
func (p *ProcessorPool) Processed() uint64 { return p.Sum((*Processor).Processed) }

// Dropped returns the total of messages dropped by all processors.
func (p *ProcessorPool) Dropped() uint64 { return p.Sum((*Processor).Dropped) }

// StrategyPool owns one strategy per strategy ring.
type StrategyPool struct {
	Pool[*Strategy]
}

// NewStrategyPool builds strategy i on ins[i].
func NewStrategyPool(cfg StrategyConfig, ins []*Queue) *StrategyPool {
	workers := make([]*Strategy, len(ins))
	for i, q := range ins {
		c := cfg
		c.ID = uint32(i)
		workers[i] = NewStrategy(c, q)
	}
	return &StrategyPool{NewPool(workers)}
}

// Delivered returns the total of messages delivered by all strategies.
func (p *StrategyPool) Delivered() uint64 { return p.Sum((*Strategy).Delivered) }

// Violations returns the total of ordering violations.
func (p *StrategyPool) Violations() uint64 { return p.Sum((*Strategy).Violations) }

// StrictViolations returns the total of violations on ordering-required types.
func (p *StrategyPool) StrictViolations() uint64 { return p.Sum((*Strategy).StrictViolations) }
