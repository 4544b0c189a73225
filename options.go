// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "go.uber.org/zap"

// Builder assembles a Pipeline with fluent configuration.
//
// Example:
//
//	p, err := msgroute.New(cfg).Logger(log).Build()
//	if err != nil {
//	    return err
//	}
//	err = p.Run(ctx)
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a pipeline builder for cfg.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Logger sets the logger for lifecycle events. Hot loops never log.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and wires every ring and worker.
//
// Wiring, one ring per edge endpoint pair:
//
//	producer i  → ring → Stage-1
//	Stage-1     → ring → processor i → ring → Stage-2
//	Stage-2     → ring → strategy i
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg := b.cfg.withDefaults()
	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}

	return wire(cfg, log), nil
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
