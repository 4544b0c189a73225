// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "time"

// ProcessorConfig configures a single processor.
type ProcessorConfig struct {
	ID      uint32
	Retries int
	Wait    WaitPolicy
	Work    map[Type]time.Duration // Simulated per-type processing time
}

// Processor drains its input ring, stamps processing metadata and
// forwards each message to its paired output ring.
type Processor struct {
	lifecycle
	id        uint32
	in, out   *Queue
	retries   int
	wait      waiter
	work      [NumTypes]time.Duration
	processed counter
	dropped   counter
}

// NewProcessor creates a processor that is the single consumer of in and
// the single producer of out.
func NewProcessor(cfg ProcessorConfig, in, out *Queue) *Processor {
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultForwardRetries
	}
	p := &Processor{
		lifecycle: newLifecycle(),
		id:        cfg.ID,
		in:        in,
		out:       out,
		retries:   retries,
		wait:      newWaiter(cfg.Wait),
	}
	for t, d := range cfg.Work {
		p.work[t] = d
	}
	return p
}

// ID returns the processor index.
func (p *Processor) ID() uint32 { return p.id }

// Start spawns the processing loop.
func (p *Processor) Start() { p.start(p.run) }

func (p *Processor) run() {
	idle := newWaiter(p.wait.policy)
	for p.running() {
		if p.Poll() == 0 {
			idle.Wait()
			continue
		}
		idle.Reset()
	}
}

// Poll drains the input ring once and returns the number of messages taken.
// Poll is the loop body; call it directly only on a processor that is not started.
func (p *Processor) Poll() int {
	n := 0
	for {
		m, err := p.in.Dequeue()
		if err != nil {
			return n
		}
		n++
		m.Processor = p.id
		m.Processed = Now()
		busy(p.work[m.Type])
		if p.wait.push(p.out, &m, p.retries) {
			p.processed.inc()
		} else {
			p.dropped.inc()
		}
	}
}

// Processed returns the number of messages forwarded downstream.
func (p *Processor) Processed() uint64 { return p.processed.load() }

// Dropped returns the number of messages lost because the output ring
// stayed full for every retry.
func (p *Processor) Dropped() uint64 { return p.dropped.load() }

// Input returns the ring the processor consumes.
func (p *Processor) Input() *Queue { return p.in }

// Output returns the ring the processor produces into.
func (p *Processor) Output() *Queue { return p.out }
