// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute_test

import (
	"math"
	"strconv"
	"testing"

	"code.hybscloud.com/msgroute"
)

func rings(n, size int) []*msgroute.Queue {
	qs := make([]*msgroute.Queue, n)
	for i := range qs {
		qs[i] = msgroute.NewQueue(size)
	}
	return qs
}

func TestStage1Misroute(t *testing.T) {
	rules := msgroute.NewRuleTable(
		[]msgroute.Stage1Rule{{Type: 2, Processors: []int{5}}},
		nil,
	)
	in, out := rings(1, 64), rings(4, 64)
	r := msgroute.NewStage1Router(msgroute.RouterConfig{}, rules, in, out)

	for i := range 10 {
		m := msgroute.Message{Type: 2, Seq: uint64(i + 1)}
		if err := in[0].Enqueue(&m); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		r.Poll()
		if got := r.Errors(); got != uint64(i+1) {
			t.Fatalf("Errors after %d messages: got %d, want %d", i+1, got, i+1)
		}
	}
	if r.Routed() != 0 {
		t.Fatalf("Routed: got %d, want 0", r.Routed())
	}
	if r.Misrouted() != 10 || r.Dropped() != 0 {
		t.Fatalf("Misrouted/Dropped: got %d/%d, want 10/0", r.Misrouted(), r.Dropped())
	}
	for i, q := range out {
		if !q.Empty() {
			t.Fatalf("output %d: got %d messages, want 0", i, q.Len())
		}
	}
}

func TestStage1NoRoute(t *testing.T) {
	rules := msgroute.NewRuleTable([]msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}}, nil)
	in, out := rings(1, 16), rings(2, 16)
	r := msgroute.NewStage1Router(msgroute.RouterConfig{}, rules, in, out)

	m := msgroute.Message{Type: 3, Seq: 1}
	_ = in[0].Enqueue(&m)
	r.Poll()
	if r.Misrouted() != 1 || r.Routed() != 0 {
		t.Fatalf("Misrouted/Routed: got %d/%d, want 1/0", r.Misrouted(), r.Routed())
	}
}

func TestRouterWideIndexMisroutes(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs 64-bit int")
	}
	shift := 32
	for _, idx := range []int{1 << shift, 1<<shift + 1, math.MaxInt, math.MinInt} {
		rules := msgroute.NewRuleTable(
			[]msgroute.Stage1Rule{{Type: 2, Processors: []int{idx}}},
			[]msgroute.Stage2Rule{{Type: 2, Strategy: idx}},
			msgroute.FallbackProcessor(idx),
			msgroute.FallbackStrategy(idx),
		)
		if got := rules.ProcessorFor(2); got != idx {
			t.Fatalf("ProcessorFor(2): got %d, want %d", got, idx)
		}
		if got := rules.StrategyFor(3); got != idx {
			t.Fatalf("StrategyFor(3) fallback: got %d, want %d", got, idx)
		}

		for _, stage := range []msgroute.Stage{msgroute.Stage1, msgroute.Stage2} {
			in, out := rings(1, 16), rings(4, 16)
			r := msgroute.NewStage1Router(msgroute.RouterConfig{}, rules, in, out)
			if stage == msgroute.Stage2 {
				r = msgroute.NewStage2Router(msgroute.RouterConfig{}, rules, in, out)
			}
			for _, typ := range []msgroute.Type{2, 3} {
				m := msgroute.Message{Type: typ, Seq: 1}
				if err := in[0].Enqueue(&m); err != nil {
					t.Fatalf("Enqueue: %v", err)
				}
			}
			r.Poll()
			if r.Misrouted() != 2 || r.Routed() != 0 {
				t.Fatalf("%v index %d: misrouted/routed got %d/%d, want 2/0", stage, idx, r.Misrouted(), r.Routed())
			}
			for i, q := range out {
				if !q.Empty() {
					t.Fatalf("%v index %d: output %d holds %d messages, want 0", stage, idx, i, q.Len())
				}
			}
		}
	}
}

func TestStage1Burst(t *testing.T) {
	const n = 10_000
	rules := msgroute.NewRuleTable(
		[]msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}, {Type: 1, Processors: []int{1}}},
		nil,
	)
	in, out := rings(1, 1<<14), rings(2, 1<<14)
	r := msgroute.NewStage1Router(msgroute.RouterConfig{}, rules, in, out)

	for i := range n {
		m := msgroute.Message{Type: msgroute.Type(i % 2), Seq: uint64(i + 1)}
		if err := in[0].Enqueue(&m); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if got := r.Poll(); got != n {
		t.Fatalf("Poll: got %d, want %d", got, n)
	}
	if r.Routed() != n {
		t.Fatalf("Routed: got %d, want %d", r.Routed(), n)
	}
	if r.Errors() != 0 {
		t.Fatalf("Errors: got %d, want 0", r.Errors())
	}

	// Each output holds its type in FIFO order, tagged with the processor.
	for idx, q := range out {
		var last uint64
		for {
			m, err := q.Dequeue()
			if err != nil {
				break
			}
			if int(m.Type) != idx || m.Processor != uint32(idx) {
				t.Fatalf("output %d: got type %d processor %d", idx, m.Type, m.Processor)
			}
			if m.Seq <= last {
				t.Fatalf("output %d: seq %d after %d", idx, m.Seq, last)
			}
			last = m.Seq
		}
	}
}

func TestRouterBackpressureDrop(t *testing.T) {
	rules := msgroute.NewRuleTable([]msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}}, nil)
	in, out := rings(1, 16), rings(1, 4)
	r := msgroute.NewStage1Router(msgroute.RouterConfig{Retries: 2}, rules, in, out)

	for i := range 5 {
		m := msgroute.Message{Seq: uint64(i + 1)}
		_ = in[0].Enqueue(&m)
	}
	r.Poll()
	// Output holds 3; the other 2 exhaust their retries.
	if r.Routed() != 3 || r.Dropped() != 2 {
		t.Fatalf("Routed/Dropped: got %d/%d, want 3/2", r.Routed(), r.Dropped())
	}
	if r.Errors() != 2 {
		t.Fatalf("Errors: got %d, want 2", r.Errors())
	}
}

func TestStage2Routing(t *testing.T) {
	rules := msgroute.NewRuleTable(nil, []msgroute.Stage2Rule{
		{Type: 0, Strategy: 1},
		{Type: 1, Strategy: 0},
	})
	in, out := rings(2, 16), rings(2, 16)
	r := msgroute.NewStage2Router(msgroute.RouterConfig{}, rules, in, out)
	if r.Stage() != msgroute.Stage2 {
		t.Fatalf("Stage: got %v, want stage2", r.Stage())
	}

	m0 := msgroute.Message{Type: 0, Processor: 1}
	m1 := msgroute.Message{Type: 1, Processor: 0}
	_ = in[0].Enqueue(&m1)
	_ = in[1].Enqueue(&m0)
	if got := r.Poll(); got != 2 {
		t.Fatalf("Poll: got %d, want 2", got)
	}
	got0, err := out[1].Dequeue()
	if err != nil || got0.Type != 0 {
		t.Fatalf("strategy 1: got (%+v, %v)", got0, err)
	}
	// Stage-2 leaves the processor stamp alone.
	if got0.Processor != 1 {
		t.Fatalf("Processor: got %d, want 1", got0.Processor)
	}
	if got1, err := out[0].Dequeue(); err != nil || got1.Type != 1 {
		t.Fatalf("strategy 0: got (%+v, %v)", got1, err)
	}
}

func TestRouterRoundRobinInputs(t *testing.T) {
	rules := msgroute.NewRuleTable([]msgroute.Stage1Rule{{Type: 0, Processors: []int{0}}}, nil)
	in, out := rings(3, 16), rings(1, 64)
	r := msgroute.NewStage1Router(msgroute.RouterConfig{}, rules, in, out)

	for p, q := range in {
		for seq := uint64(1); seq <= 4; seq++ {
			m := msgroute.Message{Producer: uint32(p), Seq: seq}
			_ = q.Enqueue(&m)
		}
	}
	if got := r.Poll(); got != 12 {
		t.Fatalf("Poll: got %d, want 12", got)
	}
	// Inputs are drained one after another.
	for p := range 3 {
		for seq := uint64(1); seq <= 4; seq++ {
			m, err := out[0].Dequeue()
			if err != nil {
				t.Fatalf("Dequeue: %v", err)
			}
			if m.Producer != uint32(p) || m.Seq != seq {
				t.Fatalf("got producer %d seq %d, want producer %d seq %d", m.Producer, m.Seq, p, seq)
			}
		}
	}
}
