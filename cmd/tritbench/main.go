// Command tritbench measures whether packing ternary weights at two bits
// each relieves the memory bandwidth bottleneck of a matrix-vector product.
//
// The workload is fixed; flags only control logging, output format and
// where results and metrics are exported.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/engine"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/metrics"
	"github.com/23skdu/tritbench/internal/monitoring"
	"github.com/23skdu/tritbench/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// parseFlags returns the configuration for args. flag.ErrHelp is returned
// unchanged for -h.
func parseFlags(args []string, stderr io.Writer) (config.Config, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("tritbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error, off")
	logFormat := fs.String("log-format", cfg.LogFormat, "Log format: console or json")
	output := fs.String("output", cfg.Output.String(), "Report format: text or json")
	maxMemoryMB := fs.Int64("max-memory-mb", cfg.MaxMemory>>20, "Upper bound on benchmark buffers, in MiB")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	metricsAddr := fs.String("metrics-addr", "", "Serve /metrics and /healthz on this address until interrupted")
	arrowOut := fs.String("arrow-out", "", "Write results as an Arrow IPC file")
	flightAddr := fs.String("flight-addr", "", "Send results to an Arrow Flight server (host:port)")
	flightTimeout := fs.Duration("flight-timeout", cfg.FlightTimeout, "Deadline for sending results over Flight")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	format, err := config.ParseOutputFormat(*output)
	if err != nil {
		return cfg, err
	}
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	cfg.Output = format
	cfg.MaxMemory = *maxMemoryMB << 20
	cfg.MetricsFile = *metricsFile
	cfg.MetricsAddr = *metricsAddr
	cfg.ArrowOut = *arrowOut
	cfg.FlightAddr = *flightAddr
	cfg.FlightTimeout = *flightTimeout
	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "tritbench: %v\n", err)
		return 2
	}
	return runConfig(ctx, cfg, stdout, stderr)
}

// runConfig runs the experiment described by cfg. The report goes to
// stdout, logs to stderr.
func runConfig(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) int {
	logger.SetOutput(stderr)
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	var opts []engine.Option
	var hm *monitoring.HealthMonitor
	if cfg.MetricsAddr != "" {
		hm = monitoring.NewHealthMonitor()
		opts = append(opts, engine.WithObserver(hm))
	}

	e, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		var ae *engine.AllocError
		if errors.As(err, &ae) {
			fmt.Fprintf(stderr, "Memory allocation failed: %s: %v\n", ae.Buffer, ae.Err)
			return 1
		}
		logger.Log.Error("Failed to initialize engine", "err", err)
		return 1
	}
	defer e.Close()

	serving := false
	if hm != nil {
		if _, err := hm.Start(cfg.MetricsAddr); err != nil {
			logger.Log.Error("Failed to start metrics server", "addr", cfg.MetricsAddr, "err", err)
		} else {
			serving = true
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				hm.Stop(shutdownCtx)
			}()
		}
	}

	summary, err := e.Run(report.New(cfg.Output, stdout))
	if err != nil {
		logger.Log.Error("Benchmark failed", "err", err)
		return 1
	}

	exportResults(ctx, cfg, summary)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			metrics.RecordExportError("textfile")
			logger.Log.Error("Failed to write metrics file", "path", cfg.MetricsFile, "err", err)
		} else {
			logger.Log.Info("Metrics written", "path", cfg.MetricsFile)
		}
	}

	if serving {
		logger.Log.Info("Serving metrics until interrupted", "addr", cfg.MetricsAddr)
		<-ctx.Done()
	}
	return 0
}
