// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import (
	"fmt"
	"math"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultQueueSize       = 1 << 16
	DefaultProducerRetries = 100
	DefaultForwardRetries  = 1000
	DefaultLatencySamples  = 1 << 14
)

// Config is the validated input of a pipeline.
//
// Parsing configuration files is not the core's job; see internal/config.
type Config struct {
	Scenario string
	Duration time.Duration

	Producers      int
	MessagesPerSec int // Per producer; 0 means unpaced
	Types          []TypeWeight

	Processors     int
	ProcessingTime map[Type]time.Duration

	Strategies   int
	StrategyTime map[Type]time.Duration

	Rules *RuleTable

	QueueSize       int // Slots per ring, rounded up to a power of 2
	ProducerRetries int
	ForwardRetries  int
	Wait            WaitPolicy
	LatencySamples  int // Per-strategy sample ring size; negative disables sampling

	// DrainTimeout bounds how long Stop lets in-flight messages reach the
	// strategies after producers halt. 0 stops every stage at once.
	DrainTimeout time.Duration
}

// Validate reports the first reason the pipeline cannot be built.
// Every returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Producers <= 0:
		return fmt.Errorf("%w: producer count must be positive, got %d", ErrInvalidConfig, c.Producers)
	case c.Processors <= 0:
		return fmt.Errorf("%w: processor count must be positive, got %d", ErrInvalidConfig, c.Processors)
	case c.Strategies <= 0:
		return fmt.Errorf("%w: strategy count must be positive, got %d", ErrInvalidConfig, c.Strategies)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, c.Duration)
	case c.MessagesPerSec < 0:
		return fmt.Errorf("%w: messages per second must not be negative, got %d", ErrInvalidConfig, c.MessagesPerSec)
	case c.Rules == nil:
		return fmt.Errorf("%w: missing routing rules", ErrInvalidConfig)
	case c.QueueSize != 0 && c.QueueSize < 2:
		return fmt.Errorf("%w: queue size must be at least 2, got %d", ErrInvalidConfig, c.QueueSize)
	case c.ProducerRetries < 0 || c.ForwardRetries < 0:
		return fmt.Errorf("%w: retry bounds must not be negative", ErrInvalidConfig)
	case c.Wait > WaitBackoff:
		return fmt.Errorf("%w: unknown wait policy %v", ErrInvalidConfig, c.Wait)
	case c.LatencySamples == 1:
		return fmt.Errorf("%w: latency sample ring needs at least 2 slots", ErrInvalidConfig)
	case c.DrainTimeout < 0:
		return fmt.Errorf("%w: drain timeout must not be negative", ErrInvalidConfig)
	}

	if len(c.Types) > 0 {
		total := 0.0
		for _, w := range c.Types {
			if w.Weight < 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
				return fmt.Errorf("%w: type %d has invalid weight %v", ErrInvalidConfig, w.Type, w.Weight)
			}
			total += w.Weight
		}
		if total == 0 {
			return fmt.Errorf("%w: type distribution has no positive weight", ErrInvalidConfig)
		}
	}
	for t, d := range c.ProcessingTime {
		if d < 0 {
			return fmt.Errorf("%w: negative processing time for type %d", ErrInvalidConfig, t)
		}
	}
	for t, d := range c.StrategyTime {
		if d < 0 {
			return fmt.Errorf("%w: negative strategy time for type %d", ErrInvalidConfig, t)
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ProducerRetries == 0 {
		c.ProducerRetries = DefaultProducerRetries
	}
	if c.ForwardRetries == 0 {
		c.ForwardRetries = DefaultForwardRetries
	}
	if c.LatencySamples == 0 {
		c.LatencySamples = DefaultLatencySamples
	}
	if len(c.Types) == 0 {
		c.Types = DefaultTypes()
	}
	return c
}
