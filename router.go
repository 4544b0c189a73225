// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

// Stage names a routing stage.
type Stage uint8

const (
	Stage1 Stage = iota + 1 // Producers to processors
	Stage2                  // Processors to strategies
)

// String returns "stage1" or "stage2".
func (s Stage) String() string {
	switch s {
	case Stage1:
		return "stage1"
	case Stage2:
		return "stage2"
	default:
		return "stage?"
	}
}

// RouterConfig configures a routing stage.
type RouterConfig struct {
	Retries int
	Wait    WaitPolicy
}

// Router fans messages from many input rings out to index-addressed
// output rings according to a rule table.
//
// Each pass visits the inputs round-robin and drains every input completely
// before moving to the next. A busy source can delay the others within a
// pass; each input has a single source, so per-source order is unaffected.
//
// Routed counts delivered messages. Errors counts every drop and splits into
// Misrouted (no route, or an index outside the outputs) and Dropped (output
// ring full for every retry). Errors of both stages are the pipeline's
// authoritative loss signal.
type Router struct {
	lifecycle
	stage     Stage
	rules     *RuleTable
	in, out   []*Queue
	retries   int
	wait      waiter
	routed    counter
	misrouted counter
	dropped   counter
}

// NewStage1Router creates the router from producer rings to processor rings.
// It resolves destinations with rules.ProcessorFor and assigns the processor.
func NewStage1Router(cfg RouterConfig, rules *RuleTable, in, out []*Queue) *Router {
	return newRouter(Stage1, cfg, rules, in, out)
}

// NewStage2Router creates the router from processor output rings to strategy rings.
// It resolves destinations with rules.StrategyFor.
func NewStage2Router(cfg RouterConfig, rules *RuleTable, in, out []*Queue) *Router {
	return newRouter(Stage2, cfg, rules, in, out)
}

func newRouter(stage Stage, cfg RouterConfig, rules *RuleTable, in, out []*Queue) *Router {
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultForwardRetries
	}
	return &Router{
		lifecycle: newLifecycle(),
		stage:     stage,
		rules:     rules,
		in:        in,
		out:       out,
		retries:   retries,
		wait:      newWaiter(cfg.Wait),
	}
}

// Stage returns which routing stage r implements.
func (r *Router) Stage() Stage { return r.stage }

// Start spawns the routing loop.
func (r *Router) Start() { r.start(r.run) }

func (r *Router) run() {
	idle := newWaiter(r.wait.policy)
	for r.running() {
		if r.Poll() == 0 {
			idle.Wait()
			continue
		}
		idle.Reset()
	}
}

// Poll makes one full pass over the inputs and returns the number of
// messages taken, routed or not.
// Poll is the loop body; call it directly only on a router that is not started.
func (r *Router) Poll() int {
	n := 0
	for _, q := range r.in {
		for {
			m, err := q.Dequeue()
			if err != nil {
				break
			}
			n++
			r.route(&m)
		}
	}
	return n
}

func (r *Router) route(m *Message) {
	idx := r.resolve(m.Type)
	if idx < 0 || idx >= len(r.out) {
		r.misrouted.inc()
		return
	}
	if r.stage == Stage1 {
		m.Processor = uint32(idx)
	}
	if r.wait.push(r.out[idx], m, r.retries) {
		r.routed.inc()
		return
	}
	r.dropped.inc()
}

func (r *Router) resolve(t Type) int {
	if r.stage == Stage1 {
		return r.rules.ProcessorFor(t)
	}
	return r.rules.StrategyFor(t)
}

// Routed returns the number of messages delivered to an output ring.
func (r *Router) Routed() uint64 { return r.routed.load() }

// Errors returns the number of messages dropped for any reason.
func (r *Router) Errors() uint64 {
	return r.misrouted.load() + r.dropped.load()
}

// Misrouted returns the number of messages without a valid destination.
func (r *Router) Misrouted() uint64 { return r.misrouted.load() }

// Dropped returns the number of messages lost to output backpressure.
func (r *Router) Dropped() uint64 { return r.dropped.load() }

// Inputs returns the rings the router consumes.
func (r *Router) Inputs() []*Queue { return r.in }

// Outputs returns the rings the router produces into.
func (r *Router) Outputs() []*Queue { return r.out }
