package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/report"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.Setup("info", "console")
	})
}

func smallConfig() config.Config {
	cfg := config.Default()
	cfg.Rows = 48
	cfg.Cols = 21
	cfg.Iterations = 2
	cfg.Warmup = 1
	cfg.LogLevel = "off"
	return cfg
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	if cfg.Rows != want.Rows || cfg.Cols != want.Cols || cfg.Iterations != want.Iterations {
		t.Errorf("workload changed by flag defaults: %+v", cfg)
	}
	if cfg.MaxMemory != want.MaxMemory {
		t.Errorf("max memory = %d, want %d", cfg.MaxMemory, want.MaxMemory)
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-output", "json",
		"-log-level", "debug",
		"-max-memory-mb", "128",
		"-arrow-out", "results.arrow",
		"-flight-timeout", "5s",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != config.OutputJSON || cfg.LogLevel != "debug" || cfg.ArrowOut != "results.arrow" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxMemory != 128<<20 {
		t.Errorf("max memory = %d", cfg.MaxMemory)
	}
	if cfg.FlightTimeout != 5*time.Second {
		t.Errorf("flight timeout = %v", cfg.FlightTimeout)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"help", []string{"-h"}, 0},
		{"unknown flag", []string{"-rows", "5"}, 2},
		{"bad output", []string{"-output", "xml"}, 2},
		{"zero budget", []string{"-max-memory-mb", "0"}, 2},
		{"positional", []string{"extra"}, 2},
		{"zero flight timeout", []string{"-flight-timeout", "0s"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tt.args, &stdout, &stderr); code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.code, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
		})
	}
}

func TestRunAllocationFailure(t *testing.T) {
	resetLogger(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-max-memory-mb", "1"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	lines := strings.Split(strings.TrimSuffix(stderr.String(), "\n"), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "Memory allocation failed: ") {
		t.Errorf("stderr = %q, want a single allocation failure line", stderr.String())
	}
}

func TestRunConfigExports(t *testing.T) {
	resetLogger(t)
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.Output = config.OutputJSON
	cfg.ArrowOut = filepath.Join(dir, "results.arrow")
	cfg.MetricsFile = filepath.Join(dir, "tritbench.prom")

	var stdout, stderr bytes.Buffer
	if code := runConfig(context.Background(), cfg, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr.String())
	}

	var doc report.Document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout.String())
	}
	if doc.Config.Rows != 48 || len(doc.Results) != 2 {
		t.Errorf("doc = %+v", doc)
	}

	f, err := os.Open(cfg.ArrowOut)
	if err != nil {
		t.Fatalf("arrow file: %v", err)
	}
	defer f.Close()
	r, err := ipc.NewFileReader(f)
	if err != nil {
		t.Fatalf("read arrow file: %v", err)
	}
	defer r.Close()
	rec, err := r.Record(0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.NumRows() != 2 {
		t.Errorf("arrow rows = %d, want 2", rec.NumRows())
	}
	md := r.Schema().Metadata()
	if i := md.FindKey("rows"); i < 0 || md.Values()[i] != "48" {
		t.Errorf("rows metadata = %v", md)
	}

	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(prom), "tritbench_kernel_iterations_total") {
		t.Error("metrics file missing kernel iterations")
	}
}

func TestRunConfigTextReport(t *testing.T) {
	resetLogger(t)
	var stdout, stderr bytes.Buffer
	if code := runConfig(context.Background(), smallConfig(), &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"Matrix Size:   48 × 21", "RESULTS", "CONCLUSION"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRunConfigExportFailureIsNotFatal(t *testing.T) {
	resetLogger(t)
	cfg := smallConfig()
	cfg.ArrowOut = filepath.Join(t.TempDir(), "missing", "dir", "results.arrow")

	var stdout, stderr bytes.Buffer
	if code := runConfig(context.Background(), cfg, &stdout, &stderr); code != 0 {
		t.Errorf("exit code = %d, want 0 when export fails", code)
	}
}

func TestRunConfigServesMetricsUntilCancelled(t *testing.T) {
	resetLogger(t)
	cfg := smallConfig()
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	if code := runConfig(ctx, cfg, &stdout, &stderr); code != 0 {
		t.Errorf("exit code = %d, stderr:\n%s", code, stderr.String())
	}
}
