// Package report renders a benchmark comparison as the fixed-width text
// table or as a single JSON document.
package report

import (
	"io"

	"github.com/23skdu/tritbench/internal/bench"
	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/cpu"
)

// Header describes the experiment before anything runs.
type Header struct {
	Rows       int
	Cols       int
	Sparsity   float32
	Iterations int
	Warmup     int
	Seed       uint64

	// Counters is true when the counter source can count real events.
	Counters      bool
	CounterSource string
	Host          cpu.HostInfo

	TotalWeights  int64
	UnpackedBytes int64
	PackedBytes   int64
	// BufferBytes covers both matrices plus the input and output vectors.
	BufferBytes int64
}

// NewHeader fills a Header from the workload configuration.
func NewHeader(cfg config.Config, host cpu.HostInfo, counters bool, source string) Header {
	return Header{
		Rows:          cfg.Rows,
		Cols:          cfg.Cols,
		Sparsity:      cfg.Sparsity,
		Iterations:    cfg.Iterations,
		Warmup:        cfg.Warmup,
		Seed:          cfg.Seed,
		Counters:      counters,
		CounterSource: source,
		Host:          host,
		TotalWeights:  cfg.TotalWeights(),
		UnpackedBytes: cfg.UnpackedBytes(),
		PackedBytes:   cfg.PackedBytes(),
		BufferBytes:   cfg.BufferBytes(),
	}
}

// MemoryReductionPct is the share of the unpacked footprint saved by packing.
func (h Header) MemoryReductionPct() float64 {
	if h.UnpackedBytes == 0 {
		return 0
	}
	return (1 - float64(h.PackedBytes)/float64(h.UnpackedBytes)) * 100
}

// Summary is everything known once both kernels have run.
type Summary struct {
	Comparison       bench.Comparison
	MaxRelativeError float64
	Verified         bool
}

// Reporter receives the experiment as it progresses. Start is called once
// before any kernel runs, Running once per kernel, Finish once at the end.
type Reporter interface {
	Start(h Header)
	Running(version, kernel string)
	Finish(s Summary) error
}

// New returns the reporter for format writing to w.
func New(format config.OutputFormat, w io.Writer) Reporter {
	if format == config.OutputJSON {
		return &jsonReporter{w: w}
	}
	return &textReporter{w: w}
}
