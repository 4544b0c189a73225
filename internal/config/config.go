// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads scenario files and environment overrides and turns
// them into a validated msgroute.Config.
//
// A scenario file is JSON, YAML or TOML, chosen by extension:
//
//	{
//	  "scenario": "baseline",
//	  "duration_secs": 10,
//	  "producers": {"count": 4, "messages_per_sec": 100000, "distribution": {"0": 0.25, "1": 0.25}},
//	  "processors": {"count": 4, "processing_times_ns": {"0": 1000}},
//	  "strategies": {"count": 4},
//	  "stage1_rules": [{"msg_type": 0, "processors": [0]}],
//	  "stage2_rules": [{"msg_type": 0, "strategy": 0, "ordering_required": true}]
//	}
//
// Map keys under distribution and processing_times_ns are message types.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"code.hybscloud.com/msgroute"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// DefaultDrainTimeout applies when a file does not set drain_timeout_ms.
const DefaultDrainTimeout = time.Second

// Format is a scenario file encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return "", fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
}

// File is the on-disk scenario description.
type File struct {
	Scenario     string          `json:"scenario" yaml:"scenario" toml:"scenario"`
	DurationSecs int             `json:"duration_secs" yaml:"duration_secs" toml:"duration_secs"`
	Producers    ProducerSection `json:"producers" yaml:"producers" toml:"producers"`
	Processors   WorkerSection   `json:"processors" yaml:"processors" toml:"processors"`
	Strategies   WorkerSection   `json:"strategies" yaml:"strategies" toml:"strategies"`
	Stage1Rules  []Stage1Rule    `json:"stage1_rules" yaml:"stage1_rules" toml:"stage1_rules"`
	Stage2Rules  []Stage2Rule    `json:"stage2_rules" yaml:"stage2_rules" toml:"stage2_rules"`

	QueueSize        int    `json:"queue_size,omitempty" yaml:"queue_size,omitempty" toml:"queue_size,omitempty"`
	ProducerRetries  int    `json:"producer_retries,omitempty" yaml:"producer_retries,omitempty" toml:"producer_retries,omitempty"`
	ForwardRetries   int    `json:"forward_retries,omitempty" yaml:"forward_retries,omitempty" toml:"forward_retries,omitempty"`
	WaitPolicy       string `json:"wait_policy,omitempty" yaml:"wait_policy,omitempty" toml:"wait_policy,omitempty"`
	DrainTimeoutMS   *int   `json:"drain_timeout_ms,omitempty" yaml:"drain_timeout_ms,omitempty" toml:"drain_timeout_ms,omitempty"`
	LatencySamples   int    `json:"latency_samples,omitempty" yaml:"latency_samples,omitempty" toml:"latency_samples,omitempty"`
	DefaultProcessor *int   `json:"default_processor,omitempty" yaml:"default_processor,omitempty" toml:"default_processor,omitempty"`
	DefaultStrategy  *int   `json:"default_strategy,omitempty" yaml:"default_strategy,omitempty" toml:"default_strategy,omitempty"`

	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty"`
}

// ProducerSection configures the producer pool.
type ProducerSection struct {
	Count          int                `json:"count" yaml:"count" toml:"count"`
	MessagesPerSec int                `json:"messages_per_sec" yaml:"messages_per_sec" toml:"messages_per_sec"`
	Distribution   map[string]float64 `json:"distribution,omitempty" yaml:"distribution,omitempty" toml:"distribution,omitempty"`
}

// WorkerSection configures the processor or strategy pool.
type WorkerSection struct {
	Count             int               `json:"count" yaml:"count" toml:"count"`
	ProcessingTimesNS map[string]uint64 `json:"processing_times_ns,omitempty" yaml:"processing_times_ns,omitempty" toml:"processing_times_ns,omitempty"`
}

// Stage1Rule routes a message type to candidate processors.
type Stage1Rule struct {
	MsgType    int   `json:"msg_type" yaml:"msg_type" toml:"msg_type"`
	Processors []int `json:"processors" yaml:"processors" toml:"processors"`
}

// Stage2Rule routes a message type to a strategy.
type Stage2Rule struct {
	MsgType          int  `json:"msg_type" yaml:"msg_type" toml:"msg_type"`
	Strategy         int  `json:"strategy" yaml:"strategy" toml:"strategy"`
	OrderingRequired bool `json:"ordering_required" yaml:"ordering_required" toml:"ordering_required"`
}

// Default returns the baseline scenario: four producers, processors and
// strategies, message type i routed to processor i and strategy i.
func Default() *File {
	f := &File{
		Scenario:     "baseline",
		DurationSecs: 10,
		Producers:    ProducerSection{Count: 4, MessagesPerSec: 100_000},
		Processors:   WorkerSection{Count: 4},
		Strategies:   WorkerSection{Count: 4},
		WaitPolicy:   msgroute.WaitYield.String(),
		LogLevel:     "info",
	}
	for i := range 4 {
		f.Stage1Rules = append(f.Stage1Rules, Stage1Rule{MsgType: i, Processors: []int{i}})
		f.Stage2Rules = append(f.Stage2Rules, Stage2Rule{MsgType: i, Strategy: i, OrderingRequired: true})
	}
	return f
}

// Load reads and decodes a scenario file.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Decode parses a scenario in the given format.
func Decode(format Format, data []byte) (*File, error) {
	var f File
	var err error
	switch format {
	case JSON:
		err = sonic.Unmarshal(data, &f)
	case YAML:
		err = yaml.Unmarshal(data, &f)
	case TOML:
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Encode renders f in the given format.
func Encode(format Format, f *File) ([]byte, error) {
	switch format {
	case JSON:
		return sonic.ConfigStd.MarshalIndent(f, "", "  ")
	case YAML:
		return yaml.Marshal(f)
	case TOML:
		return toml.Marshal(f)
	}
	return nil, fmt.Errorf("config: unsupported format %q", format)
}

// Resolve loads path and applies MSGROUTE_* environment overrides on top.
// An empty path falls back to MSGROUTE_CONFIG, then to the default scenario.
func Resolve(path string) (*File, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = env.Config
	}
	f := Default()
	if path != "" {
		if f, err = Load(path); err != nil {
			return nil, err
		}
	}
	env.Apply(f)
	return f, nil
}

// DrainTimeout returns the configured drain timeout.
func (f *File) DrainTimeout() time.Duration {
	if f.DrainTimeoutMS == nil {
		return DefaultDrainTimeout
	}
	return time.Duration(*f.DrainTimeoutMS) * time.Millisecond
}

// Build converts f into a pipeline configuration and validates it.
// Every returned error wraps msgroute.ErrInvalidConfig.
func (f *File) Build() (msgroute.Config, error) {
	wait, err := msgroute.ParseWaitPolicy(f.WaitPolicy)
	if err != nil {
		return msgroute.Config{}, err
	}
	types, err := distribution(f.Producers.Distribution)
	if err != nil {
		return msgroute.Config{}, err
	}
	procTimes, err := durations("processors", f.Processors.ProcessingTimesNS)
	if err != nil {
		return msgroute.Config{}, err
	}
	stratTimes, err := durations("strategies", f.Strategies.ProcessingTimesNS)
	if err != nil {
		return msgroute.Config{}, err
	}
	rules, err := f.rules()
	if err != nil {
		return msgroute.Config{}, err
	}

	cfg := msgroute.Config{
		Scenario:        f.Scenario,
		Duration:        time.Duration(f.DurationSecs) * time.Second,
		Producers:       f.Producers.Count,
		MessagesPerSec:  f.Producers.MessagesPerSec,
		Types:           types,
		Processors:      f.Processors.Count,
		ProcessingTime:  procTimes,
		Strategies:      f.Strategies.Count,
		StrategyTime:    stratTimes,
		Rules:           rules,
		QueueSize:       f.QueueSize,
		ProducerRetries: f.ProducerRetries,
		ForwardRetries:  f.ForwardRetries,
		Wait:            wait,
		LatencySamples:  f.LatencySamples,
		DrainTimeout:    f.DrainTimeout(),
	}
	if err := cfg.Validate(); err != nil {
		return msgroute.Config{}, err
	}
	return cfg, nil
}

func (f *File) rules() (*msgroute.RuleTable, error) {
	stage1 := make([]msgroute.Stage1Rule, 0, len(f.Stage1Rules))
	for _, r := range f.Stage1Rules {
		t, err := msgType(r.MsgType)
		if err != nil {
			return nil, err
		}
		stage1 = append(stage1, msgroute.Stage1Rule{Type: t, Processors: r.Processors})
	}
	stage2 := make([]msgroute.Stage2Rule, 0, len(f.Stage2Rules))
	for _, r := range f.Stage2Rules {
		t, err := msgType(r.MsgType)
		if err != nil {
			return nil, err
		}
		stage2 = append(stage2, msgroute.Stage2Rule{Type: t, Strategy: r.Strategy, OrderingRequired: r.OrderingRequired})
	}

	var opts []msgroute.RuleOption
	if f.DefaultProcessor != nil {
		opts = append(opts, msgroute.FallbackProcessor(*f.DefaultProcessor))
	}
	if f.DefaultStrategy != nil {
		opts = append(opts, msgroute.FallbackStrategy(*f.DefaultStrategy))
	}
	return msgroute.NewRuleTable(stage1, stage2, opts...), nil
}

func msgType(v int) (msgroute.Type, error) {
	if v < 0 || v >= msgroute.NumTypes {
		return 0, fmt.Errorf("%w: message type %d out of range", msgroute.ErrInvalidConfig, v)
	}
	return msgroute.Type(v), nil
}

func parseType(key string) (msgroute.Type, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(key), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: bad message type key %q", msgroute.ErrInvalidConfig, key)
	}
	return msgroute.Type(v), nil
}

// distribution returns the weights sorted by type, or nil for an empty map.
func distribution(m map[string]float64) ([]msgroute.TypeWeight, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make([]msgroute.TypeWeight, 0, len(m))
	for k, w := range m {
		t, err := parseType(k)
		if err != nil {
			return nil, err
		}
		out = append(out, msgroute.TypeWeight{Type: t, Weight: w})
	}
	slices.SortFunc(out, func(a, b msgroute.TypeWeight) int { return int(a.Type) - int(b.Type) })
	return out, nil
}

func durations(section string, m map[string]uint64) (map[msgroute.Type]time.Duration, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[msgroute.Type]time.Duration, len(m))
	for k, ns := range m {
		t, err := parseType(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", section, err)
		}
		out[t] = time.Duration(ns)
	}
	return out, nil
}
