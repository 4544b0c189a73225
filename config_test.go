// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/msgroute"
	"github.com/google/uuid"
)

func validConfig() msgroute.Config {
	return msgroute.Config{
		Duration:       time.Second,
		Producers:      4,
		MessagesPerSec: 1000,
		Processors:     4,
		Strategies:     4,
		Rules:          msgroute.NewRuleTable(nil, nil, msgroute.FallbackProcessor(0), msgroute.FallbackStrategy(0)),
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*msgroute.Config)
	}{
		{"ZeroProducers", func(c *msgroute.Config) { c.Producers = 0 }},
		{"NegativeProcessors", func(c *msgroute.Config) { c.Processors = -1 }},
		{"ZeroStrategies", func(c *msgroute.Config) { c.Strategies = 0 }},
		{"ZeroDuration", func(c *msgroute.Config) { c.Duration = 0 }},
		{"NegativeDuration", func(c *msgroute.Config) { c.Duration = -time.Second }},
		{"NegativeRate", func(c *msgroute.Config) { c.MessagesPerSec = -1 }},
		{"NoRules", func(c *msgroute.Config) { c.Rules = nil }},
		{"TinyQueue", func(c *msgroute.Config) { c.QueueSize = 1 }},
		{"NegativeRetries", func(c *msgroute.Config) { c.ForwardRetries = -1 }},
		{"UnknownWait", func(c *msgroute.Config) { c.Wait = msgroute.WaitPolicy(9) }},
		{"OneSample", func(c *msgroute.Config) { c.LatencySamples = 1 }},
		{"NegativeDrain", func(c *msgroute.Config) { c.DrainTimeout = -1 }},
		{"NegativeWeight", func(c *msgroute.Config) {
			c.Types = []msgroute.TypeWeight{{Type: 0, Weight: -1}}
		}},
		{"NaNWeight", func(c *msgroute.Config) {
			c.Types = []msgroute.TypeWeight{{Type: 0, Weight: math.NaN()}}
		}},
		{"ZeroWeights", func(c *msgroute.Config) {
			c.Types = []msgroute.TypeWeight{{Type: 0, Weight: 0}, {Type: 1, Weight: 0}}
		}},
		{"NegativeWork", func(c *msgroute.Config) {
			c.ProcessingTime = map[msgroute.Type]time.Duration{1: -time.Nanosecond}
		}},
		{"NegativeStrategyWork", func(c *msgroute.Config) {
			c.StrategyTime = map[msgroute.Type]time.Duration{1: -time.Nanosecond}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, msgroute.ErrInvalidConfig) {
				t.Fatalf("Validate: got %v, want ErrInvalidConfig", err)
			}
			if _, err := msgroute.New(cfg).Build(); !errors.Is(err, msgroute.ErrInvalidConfig) {
				t.Fatalf("Build: got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p, err := msgroute.New(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := p.Config()
	if got.QueueSize != msgroute.DefaultQueueSize {
		t.Fatalf("QueueSize: got %d, want %d", got.QueueSize, msgroute.DefaultQueueSize)
	}
	if got.ForwardRetries != msgroute.DefaultForwardRetries {
		t.Fatalf("ForwardRetries: got %d, want %d", got.ForwardRetries, msgroute.DefaultForwardRetries)
	}
	if len(got.Types) != 4 {
		t.Fatalf("Types: got %v, want default types", got.Types)
	}
	if p.Producers().Len() != 4 || p.Processors().Len() != 4 || p.Strategies().Len() != 4 {
		t.Fatalf("pool sizes: got %d/%d/%d, want 4/4/4",
			p.Producers().Len(), p.Processors().Len(), p.Strategies().Len())
	}
	if n := len(p.Stage1().Outputs()); n != 4 {
		t.Fatalf("Stage1 outputs: got %d, want 4", n)
	}
	if p.ID() == uuid.Nil {
		t.Fatalf("ID: got zero UUID")
	}

	s := p.Stats()
	if s.Produced != 0 || s.InFlight() != 0 || len(s.ProducerDepth) != 4 {
		t.Fatalf("initial stats: %+v", s)
	}
}

func TestParseWaitPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want msgroute.WaitPolicy
	}{
		{"", msgroute.WaitYield},
		{"yield", msgroute.WaitYield},
		{"spin", msgroute.WaitSpin},
		{"backoff", msgroute.WaitBackoff},
	}
	for _, tt := range tests {
		got, err := msgroute.ParseWaitPolicy(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseWaitPolicy(%q): got (%v, %v), want %v", tt.in, got, err, tt.want)
		}
		if tt.in != "" && got.String() != tt.in {
			t.Fatalf("String: got %q, want %q", got.String(), tt.in)
		}
	}
	if _, err := msgroute.ParseWaitPolicy("sleep"); !errors.Is(err, msgroute.ErrInvalidConfig) {
		t.Fatalf("ParseWaitPolicy(sleep): got %v, want ErrInvalidConfig", err)
	}
}

func TestStateString(t *testing.T) {
	want := map[msgroute.State]string{
		msgroute.StateIdle:     "idle",
		msgroute.StateRunning:  "running",
		msgroute.StateStopping: "stopping",
		msgroute.StateStopped:  "stopped",
		msgroute.State(9):      "State(9)",
	}
	for st, s := range want {
		if st.String() != s {
			t.Errorf("State(%d).String(): got %q, want %q", uint64(st), st.String(), s)
		}
	}
	if msgroute.Stage1.String() != "stage1" || msgroute.Stage2.String() != "stage2" {
		t.Errorf("Stage strings: got %q %q", msgroute.Stage1, msgroute.Stage2)
	}
}

// TestIsSemantic tests the semantic error classification.
func TestIsSemantic(t *testing.T) {
	if !msgroute.IsWouldBlock(msgroute.ErrWouldBlock) {
		t.Error("IsWouldBlock(ErrWouldBlock) should be true")
	}
	if !msgroute.IsSemantic(msgroute.ErrWouldBlock) {
		t.Error("IsSemantic(ErrWouldBlock) should be true")
	}
	if !msgroute.IsNonFailure(nil) || !msgroute.IsNonFailure(iox.ErrWouldBlock) {
		t.Error("IsNonFailure(nil/ErrWouldBlock) should be true")
	}
	if msgroute.IsSemantic(msgroute.ErrInvalidConfig) || msgroute.IsNonFailure(msgroute.ErrInvalidConfig) {
		t.Error("ErrInvalidConfig is a failure")
	}
}
