// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package report

import (
	"math/rand/v2"
	"slices"

	"code.hybscloud.com/msgroute"
	"gonum.org/v1/gonum/stat"
)

// Percentiles summarizes one latency series in nanoseconds.
type Percentiles struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	P999  float64 `json:"p99_9"`
	Max   float64 `json:"max"`
}

// LatencyReport holds percentiles per pipeline segment.
type LatencyReport struct {
	Upstream   Percentiles `json:"upstream"`   // Origin to processor
	Downstream Percentiles `json:"downstream"` // Processor to delivery
	Total      Percentiles `json:"total"`
}

// reservoir keeps a uniform sample of at most cap(up) latencies.
type reservoir struct {
	up, down, total []float64
	seen            uint64
	rng             *rand.Rand
}

func newReservoir(size int, seed uint64) *reservoir {
	return &reservoir{
		up:    make([]float64, 0, size),
		down:  make([]float64, 0, size),
		total: make([]float64, 0, size),
		rng:   rand.New(rand.NewPCG(seed, seed+1)),
	}
}

func (r *reservoir) add(l msgroute.Latency) {
	r.seen++
	if len(r.up) < cap(r.up) {
		r.up = append(r.up, float64(l.Upstream))
		r.down = append(r.down, float64(l.Downstream))
		r.total = append(r.total, float64(l.Total()))
		return
	}
	if cap(r.up) == 0 {
		return
	}
	if i := r.rng.Uint64N(r.seen); i < uint64(cap(r.up)) {
		r.up[i] = float64(l.Upstream)
		r.down[i] = float64(l.Downstream)
		r.total[i] = float64(l.Total())
	}
}

func (r *reservoir) report() LatencyReport {
	return LatencyReport{
		Upstream:   percentiles(r.up),
		Downstream: percentiles(r.down),
		Total:      percentiles(r.total),
	}
}

// percentiles sorts a copy of xs and reads empirical quantiles from it.
func percentiles(xs []float64) Percentiles {
	if len(xs) == 0 {
		return Percentiles{}
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return Percentiles{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
		P999:  stat.Quantile(0.999, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
}
