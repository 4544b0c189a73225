// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import (
	"context"
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline owns every ring and worker of one run:
//
//	Producers → Stage-1 → Processors → Stage-2 → Strategies
//
// Each ring has exactly one writer and one reader, fixed at wiring time.
type Pipeline struct {
	id  uuid.UUID
	cfg Config
	log *zap.Logger

	producerRings []*Queue
	processorIn   []*Queue
	processorOut  []*Queue
	strategyRings []*Queue
	producers     *ProducerPool
	stage1        *Router
	processors    *ProcessorPool
	stage2        *Router
	strategies    *StrategyPool
	stopOnce      sync.Once

	mu        sync.Mutex // Guards the fields below
	startedAt time.Time
	stoppedAt time.Time
	stopped   bool
}

func wire(cfg Config, log *zap.Logger) *Pipeline {
	p := &Pipeline{
		id:            uuid.New(),
		cfg:           cfg,
		producerRings: makeRings(cfg.Producers, cfg.QueueSize),
		processorIn:   makeRings(cfg.Processors, cfg.QueueSize),
		processorOut:  makeRings(cfg.Processors, cfg.QueueSize),
		strategyRings: makeRings(cfg.Strategies, cfg.QueueSize),
	}
	p.log = log.With(zap.String("run", p.id.String()), zap.String("scenario", cfg.Scenario))

	p.producers = NewProducerPool(ProducerConfig{
		MessagesPerSec: cfg.MessagesPerSec,
		Types:          cfg.Types,
		Retries:        cfg.ProducerRetries,
		Wait:           cfg.Wait,
		Seed:           uint64(time.Now().UnixNano()),
	}, p.producerRings)
	routing := RouterConfig{Retries: cfg.ForwardRetries, Wait: cfg.Wait}
	p.stage1 = NewStage1Router(routing, cfg.Rules, p.producerRings, p.processorIn)
	p.processors = NewProcessorPool(ProcessorConfig{
		Retries: cfg.ForwardRetries,
		Wait:    cfg.Wait,
		Work:    cfg.ProcessingTime,
	}, p.processorIn, p.processorOut)
	p.stage2 = NewStage2Router(routing, cfg.Rules, p.processorOut, p.strategyRings)
	p.strategies = NewStrategyPool(StrategyConfig{
		Wait:           cfg.Wait,
		Work:           cfg.StrategyTime,
		Rules:          cfg.Rules,
		LatencySamples: cfg.LatencySamples,
	}, p.strategyRings)

	if s1, s2 := cfg.Rules.outOfRange(cfg.Processors, cfg.Strategies); len(s1)+len(s2) > 0 {
		p.log.Warn("routing rules name missing destinations; matching messages will be misrouted",
			zap.Int("stage1_types", len(s1)),
			zap.Int("stage2_types", len(s2)),
		)
	}
	return p
}

func makeRings(n, size int) []*Queue {
	rings := make([]*Queue, n)
	for i := range rings {
		rings[i] = NewQueue(size)
	}
	return rings
}

// ID returns the unique identifier of this run.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Config returns the configuration with defaults applied.
func (p *Pipeline) Config() Config { return p.cfg }

// Start launches every stage, consumers before producers so the first
// messages find a reader. Idempotent. Start after Stop does nothing.
func (p *Pipeline) Start() {
	p.start()
}

// start reports whether the pipeline is running after the call.
func (p *Pipeline) start() bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if !p.startedAt.IsZero() {
		p.mu.Unlock()
		return true
	}
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.stage1.Start()
	p.processors.StartAll()
	p.stage2.Start()
	p.strategies.StartAll()
	p.producers.StartAll()
	p.log.Info("pipeline started",
		zap.Int("producers", p.producers.Len()),
		zap.Int("processors", p.processors.Len()),
		zap.Int("strategies", p.strategies.Len()),
		zap.Int("queue_capacity", p.producerRings[0].Cap()),
		zap.Stringer("wait_policy", p.cfg.Wait),
	)
	return true
}

// Stop halts the producers, then the downstream stages. Idempotent.
//
// With a drain timeout, Stop blocks while each stage empties its input
// rings before the stage after it is told to stop, so messages already
// produced can still reach a strategy. Without one, Stop only requests
// termination and returns.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		p.producers.StopAll()
		if p.cfg.DrainTimeout > 0 && p.stage1.State() == StateRunning {
			deadline := time.Now().Add(p.cfg.DrainTimeout)
			p.producers.Wait()
			drained := waitEmpty(p.producerRings, deadline)
			p.stage1.Stop()
			p.stage1.Wait()
			drained = waitEmpty(p.processorIn, deadline) && drained
			p.processors.StopAll()
			p.processors.Wait()
			drained = waitEmpty(p.processorOut, deadline) && drained
			p.stage2.Stop()
			p.stage2.Wait()
			drained = waitEmpty(p.strategyRings, deadline) && drained
			if !drained {
				p.log.Warn("drain timeout elapsed with messages in flight",
					zap.Duration("timeout", p.cfg.DrainTimeout))
			}
		}
		p.stage1.Stop()
		p.processors.StopAll()
		p.stage2.Stop()
		p.strategies.StopAll()
		p.log.Info("pipeline stopping")
	})
}

// waitEmpty backs off until every ring looks empty or deadline passes.
func waitEmpty(rings []*Queue, deadline time.Time) bool {
	backoff := iox.Backoff{}
	for {
		empty := true
		for _, q := range rings {
			if !q.Empty() {
				empty = false
				break
			}
		}
		if empty {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		backoff.Wait()
	}
}

// Wait blocks until every worker goroutine has exited.
func (p *Pipeline) Wait() {
	p.producers.Wait()
	p.stage1.Wait()
	p.processors.Wait()
	p.stage2.Wait()
	p.strategies.Wait()
}

// Run starts the pipeline and keeps it running for the configured
// duration or until ctx is done, then stops it and waits for every worker.
// It returns ctx.Err() when the run was cut short.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.start() {
		p.log.Warn("run on a stopped pipeline ignored")
		return nil
	}
	timer := time.NewTimer(p.cfg.Duration)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
		p.log.Info("run duration elapsed", zap.Duration("duration", p.cfg.Duration))
	case <-ctx.Done():
		err = ctx.Err()
		p.log.Info("run interrupted", zap.Error(err))
	}
	p.Stop()
	p.Wait()
	p.mu.Lock()
	p.stoppedAt = time.Now()
	p.mu.Unlock()
	p.log.Info("pipeline stopped", zap.Duration("elapsed", p.Elapsed()))
	return err
}

// Elapsed returns the time since Start, or the length of the run once
// Run has returned. It is 0 before Start.
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.startedAt.IsZero():
		return 0
	case !p.stoppedAt.IsZero():
		return p.stoppedAt.Sub(p.startedAt)
	}
	return time.Since(p.startedAt)
}

// Producers returns the producer pool.
func (p *Pipeline) Producers() *ProducerPool { return p.producers }

// Processors returns the processor pool.
func (p *Pipeline) Processors() *ProcessorPool { return p.processors }

// Strategies returns the strategy pool.
func (p *Pipeline) Strategies() *StrategyPool { return p.strategies }

// Stage1 returns the producer-to-processor router.
func (p *Pipeline) Stage1() *Router { return p.stage1 }

// Stage2 returns the processor-to-strategy router.
func (p *Pipeline) Stage2() *Router { return p.stage2 }

// Latencies appends every pending latency sample to dst and returns it.
// The samples are consumed: exactly one goroutine may call Latencies.
func (p *Pipeline) Latencies(dst []Latency) []Latency {
	for i := range p.strategies.Len() {
		ring := p.strategies.Worker(i).Samples()
		if ring == nil {
			continue
		}
		for {
			l, err := ring.Dequeue()
			if err != nil {
				break
			}
			dst = append(dst, l)
		}
	}
	return dst
}
