// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MSGROUTE"

// Env holds environment overrides. Unset variables leave the file value alone.
type Env struct {
	Config       string `envconfig:"CONFIG"`
	Scenario     string `envconfig:"SCENARIO"`
	DurationSecs *int   `envconfig:"DURATION_SECS"`
	Producers    *int   `envconfig:"PRODUCERS"`
	Rate         *int   `envconfig:"RATE"`
	Processors   *int   `envconfig:"PROCESSORS"`
	Strategies   *int   `envconfig:"STRATEGIES"`
	QueueSize    *int   `envconfig:"QUEUE_SIZE"`
	WaitPolicy   string `envconfig:"WAIT_POLICY"`
	DrainMS      *int   `envconfig:"DRAIN_TIMEOUT_MS"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"`
}

// LoadEnv reads MSGROUTE_* variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("config: failed to load environment: %w", err)
	}
	return env, nil
}

// Apply overwrites the fields of f that env sets.
func (e Env) Apply(f *File) {
	if e.Scenario != "" {
		f.Scenario = e.Scenario
	}
	setInt(&f.DurationSecs, e.DurationSecs)
	setInt(&f.Producers.Count, e.Producers)
	setInt(&f.Producers.MessagesPerSec, e.Rate)
	setInt(&f.Processors.Count, e.Processors)
	setInt(&f.Strategies.Count, e.Strategies)
	setInt(&f.QueueSize, e.QueueSize)
	if e.WaitPolicy != "" {
		f.WaitPolicy = e.WaitPolicy
	}
	if e.DrainMS != nil {
		ms := *e.DrainMS
		f.DrainTimeoutMS = &ms
	}
	if e.LogLevel != "" {
		f.LogLevel = e.LogLevel
	}
	if e.MetricsAddr != "" {
		f.MetricsAddr = e.MetricsAddr
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
