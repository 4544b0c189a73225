// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command msgroute runs one routing scenario and prints its summary.
//
//	msgroute -config scenario.yaml
//	msgroute -metrics-addr :9090 -json
//	MSGROUTE_PRODUCERS=8 msgroute -print-config toml
//
// The exit status is 0 when the run delivered every message in order,
// 1 when it lost messages or saw ordering violations, and 2 on a usage or
// configuration error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"code.hybscloud.com/msgroute"
	"code.hybscloud.com/msgroute/internal/config"
	"code.hybscloud.com/msgroute/internal/logging"
	"code.hybscloud.com/msgroute/internal/metrics"
	"code.hybscloud.com/msgroute/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	exitPassed = 0
	exitFailed = 1
	exitUsage  = 2
)

type options struct {
	configPath  string
	jsonOut     bool
	metricsAddr string
	logLevel    string
	logDev      bool
	printConfig string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("msgroute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "scenario file (.json, .yaml, .toml)")
	fs.BoolVar(&o.jsonOut, "json", false, "print the summary as JSON")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics, /stats and /health on this address")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&o.logDev, "log-dev", false, "human-readable console logs")
	fs.StringVar(&o.printConfig, "print-config", "", "print the resolved scenario in this format (json, yaml, toml) and exit")
	return o, fs.Parse(args)
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitPassed
		}
		return exitUsage
	}

	file, err := config.Resolve(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "msgroute: %v\n", err)
		return exitUsage
	}
	if o.logLevel != "" {
		file.LogLevel = o.logLevel
	}
	if o.metricsAddr != "" {
		file.MetricsAddr = o.metricsAddr
	}

	if o.printConfig != "" {
		data, err := config.Encode(config.Format(o.printConfig), file)
		if err != nil {
			fmt.Fprintf(stderr, "msgroute: %v\n", err)
			return exitUsage
		}
		stdout.Write(data)
		return exitPassed
	}

	logCfg := logging.DefaultConfig()
	if o.logDev {
		logCfg = logging.DevelopmentConfig()
	}
	if file.LogLevel != "" {
		logCfg.Level = file.LogLevel
	}
	log, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "msgroute: %v\n", err)
		return exitUsage
	}
	defer log.Sync()

	cfg, err := file.Build()
	if err != nil {
		log.Error("invalid scenario", zap.Error(err))
		return exitUsage
	}
	p, err := msgroute.New(cfg).Logger(log).Build()
	if err != nil {
		log.Error("cannot build pipeline", zap.Error(err))
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := execute(ctx, p, file, log)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return exitFailed
	}

	if o.jsonOut {
		data, err := sum.JSON()
		if err != nil {
			log.Error("encode summary", zap.Error(err))
			return exitFailed
		}
		fmt.Fprintln(stdout, string(data))
	} else if err := sum.WriteText(stdout); err != nil {
		log.Error("write summary", zap.Error(err))
		return exitFailed
	}

	if !sum.Passed {
		return exitFailed
	}
	return exitPassed
}

// execute runs the pipeline with its reporter and optional metrics server,
// and returns the summary once every worker has exited. An interrupted run
// still produces a summary.
func execute(ctx context.Context, p *msgroute.Pipeline, file *config.File, log *zap.Logger) (report.Summary, error) {
	runID := p.ID().String()
	log = log.With(zap.String("run", runID), zap.String("scenario", file.Scenario))

	rep := report.New(p, log, report.Options{})

	// A failing metrics server cuts the run short.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	auxCtx, cancelAux := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rep.Run(auxCtx)
	}()

	serveErr := make(chan error, 1)
	if file.MetricsAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		c := metrics.NewCollector(p, prometheus.Labels{"run": runID, "scenario": file.Scenario})
		router := metrics.NewRouter(p, metrics.NewRegistry(c))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(auxCtx, file.MetricsAddr, router, log); err != nil {
				serveErr <- err
				cancelRun()
			}
		}()
	}

	err := p.Run(runCtx)
	cancelAux()
	wg.Wait()

	select {
	case e := <-serveErr:
		return report.Summary{}, fmt.Errorf("metrics server: %w", e)
	default:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return report.Summary{}, err
	}

	return rep.Summary(report.RunInfo{
		ID:       runID,
		Scenario: file.Scenario,
		Elapsed:  p.Elapsed(),
	}), nil
}
