// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// Tests in this file run every worker on its own goroutine. Ring payloads
// and lifecycle state are published with atomix acquire/release operations,
// which the race detector does not model, so the file is excluded from race
// testing.

package msgroute_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/msgroute"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func singleTypeRules(processors, strategies int) *msgroute.RuleTable {
	return msgroute.NewRuleTable(
		[]msgroute.Stage1Rule{{Type: 0, Processors: []int{processors - 1}}},
		[]msgroute.Stage2Rule{{Type: 0, Strategy: strategies - 1, OrderingRequired: true}},
	)
}

func checkAccounting(t *testing.T, s msgroute.Stats) {
	t.Helper()
	accounted := s.Delivered + s.Stage1.Errors + s.ProcessorDropped + s.Stage2.Errors + s.InFlight()
	if s.Produced != accounted {
		t.Fatalf("accounting: produced %d, accounted %d (%+v)", s.Produced, accounted, s)
	}
}

func TestPoolLifecycle(t *testing.T) {
	pool := msgroute.NewStrategyPool(msgroute.StrategyConfig{}, rings(4, 16))
	for i := range pool.Len() {
		if st := pool.Worker(i).State(); st != msgroute.StateIdle {
			t.Fatalf("worker %d before start: got %v, want idle", i, st)
		}
	}

	pool.StartAll()
	pool.StartAll() // idempotent
	for i := range pool.Len() {
		if st := pool.Worker(i).State(); st != msgroute.StateRunning && st != msgroute.StateStopped {
			t.Fatalf("worker %d after start: got %v", i, st)
		}
	}

	pool.StopAll()
	pool.StopAll() // idempotent
	pool.Wait()
	for i := range pool.Len() {
		if st := pool.Worker(i).State(); st != msgroute.StateStopped {
			t.Fatalf("worker %d after wait: got %v, want stopped", i, st)
		}
	}
}

func TestPoolWaitWithoutStart(t *testing.T) {
	pool := msgroute.NewProcessorPool(msgroute.ProcessorConfig{}, rings(2, 4), rings(2, 4))
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait on idle pool blocked")
	}
}

func TestPipelineRun(t *testing.T) {
	p, err := msgroute.New(msgroute.Config{
		Scenario:       "test",
		Duration:       200 * time.Millisecond,
		Producers:      2,
		MessagesPerSec: 20_000,
		Types:          []msgroute.TypeWeight{{Type: 0, Weight: 1}},
		Processors:     2,
		Strategies:     2,
		Rules:          singleTypeRules(2, 2),
		QueueSize:      1 << 12,
		DrainTimeout:   2 * time.Second,
	}).Logger(zaptest.NewLogger(t)).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := p.Stats()
	if s.Produced == 0 {
		t.Fatalf("Produced: got 0")
	}
	checkAccounting(t, s)
	if s.Lost() == 0 {
		if s.Delivered != s.Produced {
			t.Fatalf("Delivered: got %d, want %d after full drain", s.Delivered, s.Produced)
		}
		// One type per producer, FIFO end to end, nothing dropped.
		if s.Violations != 0 {
			t.Fatalf("Violations: got %d, want 0", s.Violations)
		}
	}
	if s.Stage1.Misrouted != 0 || s.Stage2.Misrouted != 0 {
		t.Fatalf("Misrouted: got %d/%d, want 0/0", s.Stage1.Misrouted, s.Stage2.Misrouted)
	}
	for _, w := range []msgroute.Runner{p.Stage1(), p.Stage2(), p.Producers().Worker(0), p.Strategies().Worker(1)} {
		if w.State() != msgroute.StateStopped {
			t.Fatalf("worker state after Run: got %v, want stopped", w.State())
		}
	}
	if p.Elapsed() < 200*time.Millisecond {
		t.Fatalf("Elapsed: got %v, want at least 200ms", p.Elapsed())
	}
	if lat := p.Latencies(nil); len(lat) == 0 && s.Delivered > 0 {
		t.Fatalf("Latencies: got none for %d deliveries", s.Delivered)
	}
}

func TestPipelineMisrouting(t *testing.T) {
	// Type 2 resolves to a processor that does not exist.
	rules := msgroute.NewRuleTable(
		[]msgroute.Stage1Rule{{Type: 2, Processors: []int{5}}},
		[]msgroute.Stage2Rule{{Type: 2, Strategy: 0}},
	)
	p, err := msgroute.New(msgroute.Config{
		Duration:       100 * time.Millisecond,
		Producers:      1,
		MessagesPerSec: 5_000,
		Types:          []msgroute.TypeWeight{{Type: 2, Weight: 1}},
		Processors:     4,
		Strategies:     1,
		Rules:          rules,
		QueueSize:      1 << 10,
		DrainTimeout:   time.Second,
	}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := p.Stats()
	checkAccounting(t, s)
	if s.Delivered != 0 || s.Stage1.Routed != 0 {
		t.Fatalf("Delivered/Routed: got %d/%d, want 0/0", s.Delivered, s.Stage1.Routed)
	}
	if s.Stage1.Misrouted == 0 || s.Stage1.Misrouted != s.Produced-s.InFlight() {
		t.Fatalf("Misrouted: got %d, produced %d", s.Stage1.Misrouted, s.Produced)
	}
}

func TestPipelineCancel(t *testing.T) {
	p, err := msgroute.New(msgroute.Config{
		Duration:       time.Hour,
		Producers:      1,
		MessagesPerSec: 1000,
		Processors:     1,
		Strategies:     1,
		Rules:          singleTypeRules(1, 1),
		QueueSize:      256,
		Wait:           msgroute.WaitBackoff,
	}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: got %v, want DeadlineExceeded", err)
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Fatalf("Run returned after %v", d)
	}
	checkAccounting(t, p.Stats())
}

func TestPipelineStopIdempotent(t *testing.T) {
	p, err := msgroute.New(msgroute.Config{
		Duration:   time.Second,
		Producers:  1,
		Processors: 1,
		Strategies: 1,
		Rules:      singleTypeRules(1, 1),
		QueueSize:  64,
	}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p.Stop()
	p.Stop()
	p.Wait()
	if p.Elapsed() != 0 {
		t.Fatalf("Elapsed before Start: got %v, want 0", p.Elapsed())
	}
	if st := p.Stage1().State(); st != msgroute.StateStopped {
		t.Fatalf("Stage1 after Stop: got %v, want stopped", st)
	}
}

func TestPipelineStartAfterStop(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p, err := msgroute.New(msgroute.Config{
		Duration:   time.Minute,
		Producers:  1,
		Processors: 1,
		Strategies: 1,
		Rules:      singleTypeRules(1, 1),
		QueueSize:  64,
	}).Logger(zap.New(core)).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p.Stop()
	p.Start()
	p.Wait()
	if p.Elapsed() != 0 {
		t.Fatalf("Elapsed after Start on stopped pipeline: got %v, want 0", p.Elapsed())
	}
	if st := p.Producers().Worker(0).State(); st != msgroute.StateStopped {
		t.Fatalf("producer after Start on stopped pipeline: got %v, want stopped", st)
	}

	start := time.Now()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run on stopped pipeline: got %v, want nil", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Fatalf("Run on stopped pipeline took %v", d)
	}
	if n := logs.FilterMessage("pipeline started").Len(); n != 0 {
		t.Fatalf("pipeline started logged %d times, want 0", n)
	}
}
