package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/23skdu/tritbench/internal/bench"
)

const (
	banner = "========================================================================"
	rule   = "------------------------------------------------------------------------"
)

type textReporter struct {
	w   io.Writer
	err error
}

func (t *textReporter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textReporter) section(title string) {
	t.printf("%s\n%s\n%s\n\n", banner, title, banner)
}

func (t *textReporter) Start(h Header) {
	t.section("2-Bit Ternary Encoding Memory Bandwidth Micro-Benchmark")

	t.printf("Configuration:\n")
	t.printf("  Matrix Size:   %d × %d\n", h.Rows, h.Cols)
	t.printf("  Total Weights: %d\n", h.TotalWeights)
	t.printf("  Sparsity:      %.0f%%\n", h.Sparsity*100)
	t.printf("  Iterations:    %d (warmup %d)\n", h.Iterations, h.Warmup)
	t.printf("  Seed:          %d\n", h.Seed)
	if h.Counters {
		t.printf("  Profiling:     Hardware Performance Counters (%s)\n", h.CounterSource)
	} else {
		t.printf("  Profiling:     Time only (build with -tags perf on Linux for counters)\n")
	}
	t.printf("  Host:          %s\n\n", h.Host)

	t.printf("Memory Footprint:\n")
	t.printf("  8-bit representation: %d KB\n", h.UnpackedBytes/1024)
	t.printf("  2-bit representation: %d KB\n", h.PackedBytes/1024)
	t.printf("  Reduction:            %.1f%%\n\n", h.MemoryReductionPct())
}

func (t *textReporter) Running(version, kernel string) {
	t.printf("Running Version %s (%s)...\n", version, kernel)
}

func (t *textReporter) Finish(s Summary) error {
	c := s.Comparison

	t.printf("\n")
	t.section("RESULTS")
	t.printf("%-25s | %15s | %15s | %10s\n", "Metric", "8-bit (Theirs)", "2-bit (Ours)", "Improvement")
	t.printf("%s\n", rule)
	for _, m := range c.Metrics {
		t.printf("%s\n", FormatRow(m))
	}

	t.printf("\n")
	t.section("CONCLUSION")
	if c.CountersAvailable {
		t.printf("The 2-bit packed encoding reduces cache misses by %.1fx and memory\n", c.CacheMissImprovement)
		t.printf("footprint by %.1fx, directly addressing the memory bandwidth bottleneck\n", c.MemoryReduction)
		t.printf("in ternary neural network inference.\n\n")
		if c.Confirmed {
			t.printf("✓ SIGNIFICANT CACHE EFFICIENCY IMPROVEMENT CONFIRMED\n")
			t.printf("✓ MEMORY BANDWIDTH BOTTLENECK RESOLVED\n")
		}
	} else {
		t.printf("Hardware performance counters were not measured (build with -tags perf on Linux).\n")
		t.printf("Time improvement: %.2fx\n", c.TimeImprovement)
		t.printf("Memory reduction: %.2fx\n", c.MemoryReduction)
	}
	return t.err
}

// FormatRow renders one metric in the results table layout.
func FormatRow(m bench.Metric) string {
	var base, packed string
	switch m.Unit {
	case bench.UnitMillis:
		base = fmt.Sprintf("%12.2f ms", m.Baseline)
		packed = fmt.Sprintf("%12.2f ms", m.Packed)
	case bench.UnitKB:
		base = fmt.Sprintf("%15d", int64(m.Baseline)/1024)
		packed = fmt.Sprintf("%15d", int64(m.Packed)/1024)
	case bench.UnitPercent:
		base = fmt.Sprintf("%13.2f%%", m.Baseline)
		packed = fmt.Sprintf("%13.2f%%", m.Packed)
	case bench.UnitRatio:
		base = fmt.Sprintf("%15.2f", m.Baseline)
		packed = fmt.Sprintf("%15.2f", m.Packed)
	default:
		base = fmt.Sprintf("%15d", uint64(m.Baseline))
		packed = fmt.Sprintf("%15d", uint64(m.Packed))
	}
	return strings.Join([]string{
		fmt.Sprintf("%-25s", m.Name),
		base,
		packed,
		fmt.Sprintf("%9.2fx", m.Ratio),
	}, " | ")
}
