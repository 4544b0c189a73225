// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package report turns pipeline counters and latency samples into periodic
// progress logs and a final run summary.
package report

import (
	"context"
	"sync"
	"time"

	"code.hybscloud.com/msgroute"
	"go.uber.org/zap"
)

// Source is the read side of a running pipeline.
type Source interface {
	Stats() msgroute.Stats
	// Latencies drains pending samples into dst. Only the reporter calls it.
	Latencies(dst []msgroute.Latency) []msgroute.Latency
}

// Options configures a Reporter.
type Options struct {
	Interval   time.Duration // Progress period, default 1s
	MaxSamples int           // Latency reservoir size, default 1 << 20
	Seed       uint64
}

// Reporter logs progress on a fixed interval and keeps a bounded uniform
// sample of delivered-message latencies for the summary.
type Reporter struct {
	src      Source
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex // Guards everything below
	samples *reservoir
	scratch []msgroute.Latency
	last    msgroute.Stats
	lastAt  time.Time
	start   time.Time
}

// New creates a reporter reading from src.
func New(src Source, log *zap.Logger, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1 << 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	return &Reporter{
		src:      src,
		log:      log,
		interval: opts.Interval,
		samples:  newReservoir(opts.MaxSamples, opts.Seed),
		scratch:  make([]msgroute.Latency, 0, 4096),
		lastAt:   now,
		start:    now,
	}
}

// Run reports every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Report(now)
		}
	}
}

// Report collects pending latency samples and logs one progress line.
func (r *Reporter) Report(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collect()
	s := r.src.Stats()
	dt := now.Sub(r.lastAt).Seconds()
	rate := 0.0
	if dt > 0 {
		rate = float64(s.Delivered-r.last.Delivered) / dt
	}

	r.log.Info("progress",
		zap.Duration("elapsed", now.Sub(r.start).Round(time.Millisecond)),
		zap.Uint64("produced", s.Produced),
		zap.Uint64("processed", s.Processed),
		zap.Uint64("delivered", s.Delivered),
		zap.Uint64("lost", s.Lost()),
		zap.Uint64("violations", s.Violations),
		zap.Float64("delivered_per_sec", rate),
		zap.Ints("producer_depth", s.ProducerDepth),
		zap.Ints("processor_in_depth", s.ProcessorInDepth),
		zap.Ints("processor_out_depth", s.ProcessorOutDepth),
		zap.Ints("strategy_depth", s.StrategyDepth),
	)
	r.last, r.lastAt = s, now
}

// collect drains the source's sample rings into the reservoir.
func (r *Reporter) collect() {
	r.scratch = r.src.Latencies(r.scratch[:0])
	for _, l := range r.scratch {
		r.samples.add(l)
	}
}

// Summary drains the remaining samples and builds the final report.
// Call it after the pipeline has stopped.
func (r *Reporter) Summary(run RunInfo) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collect()
	s := r.src.Stats()
	sum := Summary{
		RunID:       run.ID,
		Scenario:    run.Scenario,
		ElapsedSecs: run.Elapsed.Seconds(),
		Stats:       s,
		Lost:        s.Lost(),
		Latency:     r.samples.report(),
	}
	if sum.ElapsedSecs > 0 {
		sum.Throughput = float64(s.Delivered) / sum.ElapsedSecs
	}
	sum.Passed = sum.Lost == 0 && s.Violations == 0
	return sum
}
