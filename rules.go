// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "slices"

// NoRoute is the destination index of a type no rule matches and no
// fallback covers. Routers count it as misrouting and drop the message.
const NoRoute = -1

// Stage1Rule maps a message type to its candidate processors.
// Only the first candidate is used for delivery.
type Stage1Rule struct {
	Type       Type
	Processors []int
}

// Stage2Rule maps a message type to a strategy.
type Stage2Rule struct {
	Type             Type
	Strategy         int
	OrderingRequired bool
}

// RuleTable resolves message types to destination indices for both
// routing stages.
//
// The table is built once and never mutated, so routers on different
// goroutines read it without synchronization. Lookups are array indexed.
type RuleTable struct {
	stage1     []Stage1Rule
	stage2     []Stage2Rule
	processor  [NumTypes]int
	strategy   [NumTypes]int
	ordering   [NumTypes]bool
	candidates [NumTypes][]int
}

// RuleOption configures a RuleTable at construction.
type RuleOption func(*ruleFallbacks)

type ruleFallbacks struct {
	processor int
	strategy  int
}

// FallbackProcessor routes Stage-1 types without a rule to processor i.
func FallbackProcessor(i int) RuleOption {
	return func(f *ruleFallbacks) { f.processor = i }
}

// FallbackStrategy routes Stage-2 types without a rule to strategy i.
func FallbackStrategy(i int) RuleOption {
	return func(f *ruleFallbacks) { f.strategy = i }
}

// NewRuleTable builds a rule table. When several rules name the same type
// the first one wins. A Stage-1 rule with no candidates does not match.
//
// Without a fallback option unmatched types resolve to [NoRoute].
func NewRuleTable(stage1 []Stage1Rule, stage2 []Stage2Rule, opts ...RuleOption) *RuleTable {
	fb := ruleFallbacks{processor: NoRoute, strategy: NoRoute}
	for _, opt := range opts {
		opt(&fb)
	}

	rt := &RuleTable{
		stage1: slices.Clone(stage1),
		stage2: slices.Clone(stage2),
	}
	for i := range rt.stage1 {
		rt.stage1[i].Processors = slices.Clone(rt.stage1[i].Processors)
	}
	var seen1, seen2 [NumTypes]bool
	for i := range NumTypes {
		rt.processor[i] = fb.processor
		rt.strategy[i] = fb.strategy
	}
	for _, r := range rt.stage1 {
		if seen1[r.Type] || len(r.Processors) == 0 {
			continue
		}
		seen1[r.Type] = true
		rt.candidates[r.Type] = slices.Clone(r.Processors)
		rt.processor[r.Type] = r.Processors[0]
	}
	for _, r := range rt.stage2 {
		if seen2[r.Type] {
			continue
		}
		seen2[r.Type] = true
		rt.strategy[r.Type] = r.Strategy
		rt.ordering[r.Type] = r.OrderingRequired
	}
	return rt
}

// ProcessorFor returns the processor index for t, or NoRoute.
func (rt *RuleTable) ProcessorFor(t Type) int {
	return rt.processor[t]
}

// Candidates returns the candidate processors of the rule matching t.
// The result is nil when t falls back or has no route.
func (rt *RuleTable) Candidates(t Type) []int {
	return rt.candidates[t]
}

// StrategyFor returns the strategy index for t, or NoRoute.
func (rt *RuleTable) StrategyFor(t Type) int {
	return rt.strategy[t]
}

// OrderingRequired reports whether the Stage-2 rule for t asks for
// per-(producer, type) ordering downstream.
func (rt *RuleTable) OrderingRequired(t Type) bool {
	return rt.ordering[t]
}

// Stage1 returns a copy of the Stage-1 rules in declaration order.
func (rt *RuleTable) Stage1() []Stage1Rule {
	return slices.Clone(rt.stage1)
}

// Stage2 returns a copy of the Stage-2 rules in declaration order.
func (rt *RuleTable) Stage2() []Stage2Rule {
	return slices.Clone(rt.stage2)
}

// outOfRange lists the rule destinations that do not exist in a pipeline
// with the given number of processors and strategies. Such rules are legal;
// the routers count every message they resolve as misrouted.
func (rt *RuleTable) outOfRange(processors, strategies int) (stage1, stage2 []Type) {
	for t := range NumTypes {
		if p := rt.processor[t]; p != NoRoute && p >= processors || p < NoRoute {
			stage1 = append(stage1, Type(t))
		}
		if s := rt.strategy[t]; s != NoRoute && s >= strategies || s < NoRoute {
			stage2 = append(stage2, Type(t))
		}
	}
	return stage1, stage2
}
