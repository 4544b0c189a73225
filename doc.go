// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgroute is a high-throughput message-routing pipeline built
// entirely on single-producer single-consumer lock-free rings.
//
// Producers inject typed, sequenced messages that pass through two routing
// stages and a pool of processors before strategies deliver them:
//
//	Producers → Stage-1 → Processors → Stage-2 → Strategies
//
// Every arrow is a set of [Ring]s with exactly one writer and one reader,
// fixed when the pipeline is wired. Each worker runs on its own goroutine
// locked to an OS thread. No worker blocks on a lock while running.
//
// # Quick Start
//
//	rules := msgroute.NewRuleTable(
//	    []msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}, {Type: 1, Processors: []int{1}}},
//	    []msgroute.Stage2Rule{{Type: 0, Strategy: 0, OrderingRequired: true}, {Type: 1, Strategy: 1}},
//	)
//	p, err := msgroute.New(msgroute.Config{
//	    Duration:       10 * time.Second,
//	    Producers:      4,
//	    MessagesPerSec: 100_000,
//	    Processors:     2,
//	    Strategies:     2,
//	    Rules:          rules,
//	}).Logger(log).Build()
//	if err != nil {
//	    return err
//	}
//	err = p.Run(ctx)
//	stats := p.Stats()
//
// # Rings
//
// [Ring] is a Lamport ring buffer with one reserved slot: NewRing(n) holds
// n-1 elements. Enqueue and Dequeue never block; they return
// [ErrWouldBlock] when the ring is full or empty.
//
//	q := msgroute.NewRing[int](8) // Cap() == 7
//
//	v := 42
//	if err := q.Enqueue(&v); msgroute.IsWouldBlock(err) {
//	    // Ring is full - backpressure
//	}
//	v, err := q.Dequeue()
//
// # Routing
//
// A [RuleTable] maps each message [Type] to a processor for Stage-1 and a
// strategy for Stage-2. A type without a rule resolves to [NoRoute] unless
// the table was built with [FallbackProcessor] or [FallbackStrategy]. The
// routers count unroutable messages and destinations outside the wired
// rings as misrouted and drop them.
//
// # Loss Accounting
//
// The pipeline is lossy. A worker retries a full destination ring a bounded
// number of times, pausing between attempts, then drops the message and
// counts it: Producer.Dropped, Router.Dropped, Processor.Dropped. After the
// pipeline has stopped, [Stats] balances:
//
//	Produced == Delivered + Stage1.Errors + ProcessorDropped + Stage2.Errors + InFlight()
//
// # Ordering
//
// Strategies check that each (producer, type) stream arrives with
// consecutive sequence numbers. A mismatch is counted as a violation and
// the message is delivered anyway. Producers number messages across all
// types, so a producer that interleaves types yields violations by
// construction; single-type streams are violation free in FIFO order.
//
// # Waiting
//
// Idle workers and retry loops pause according to a [WaitPolicy]:
// runtime.Gosched (default), CPU pause via [code.hybscloud.com/spin], or
// adaptive backoff via [code.hybscloud.com/iox].
//
// # Race Detection
//
// Go's race detector cannot observe happens-before edges established by
// acquire-release atomics on separate variables. Ring payloads are guarded
// by such edges, so concurrent tests over generic rings are excluded via
// //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics with explicit
// memory ordering, [code.hybscloud.com/iox] for semantic errors and
// backoff, [code.hybscloud.com/spin] for CPU pause instructions,
// golang.org/x/time/rate for producer pacing, github.com/google/uuid for
// run IDs, and go.uber.org/zap for lifecycle logging.
package msgroute
