package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/tritbench/internal/arrow_client"
	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/metrics"
	"github.com/23skdu/tritbench/internal/report"
)

func runMetadata(cfg config.Config) map[string]string {
	return map[string]string{
		"rows":       strconv.Itoa(cfg.Rows),
		"cols":       strconv.Itoa(cfg.Cols),
		"sparsity":   strconv.FormatFloat(float64(cfg.Sparsity), 'g', -1, 32),
		"iterations": strconv.Itoa(cfg.Iterations),
		"warmup":     strconv.Itoa(cfg.Warmup),
		"seed":       strconv.FormatUint(cfg.Seed, 10),
	}
}

// exportResults sends both results to the configured Arrow sinks. Failures
// are logged and counted, never fatal.
func exportResults(ctx context.Context, cfg config.Config, s report.Summary) {
	if cfg.ArrowOut == "" && cfg.FlightAddr == "" {
		return
	}
	rec := arrow_client.ResultsRecord(memory.NewGoAllocator(), runMetadata(cfg),
		s.Comparison.Baseline, s.Comparison.Packed)
	defer rec.Release()

	if cfg.ArrowOut != "" {
		if err := writeArrowFile(cfg.ArrowOut, rec); err != nil {
			metrics.RecordExportError("arrow_file")
			logger.Log.Error("Failed to write Arrow file", "path", cfg.ArrowOut, "err", err)
		} else {
			logger.Log.Info("Results written", "path", cfg.ArrowOut, "rows", rec.NumRows())
		}
	}

	if cfg.FlightAddr != "" {
		if err := sendFlight(ctx, cfg.FlightAddr, cfg.FlightTimeout, rec); err != nil {
			metrics.RecordExportError("flight")
			logger.Log.Error("Failed to send results over Flight", "addr", cfg.FlightAddr, "err", err)
		} else {
			logger.Log.Info("Results sent", "addr", cfg.FlightAddr)
		}
	}
}

func writeArrowFile(path string, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := arrow_client.WriteIPC(f, rec); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func sendFlight(ctx context.Context, addr string, timeout time.Duration, rec arrow.Record) error {
	client, err := arrow_client.NewFlightClient(addr)
	if err != nil {
		return err
	}
	client.SetTimeout(timeout)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()
	return client.DoPut(ctx, rec)
}
