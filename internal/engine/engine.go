package engine

import (
	"errors"
	"fmt"

	"github.com/23skdu/tritbench/internal/bench"
	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/cpu"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/perf"
	"github.com/23skdu/tritbench/internal/report"
	"github.com/23skdu/tritbench/internal/ternary"
)

// ErrAllocation is matched by every buffer acquisition failure. It is fatal.
var ErrAllocation = errors.New("memory allocation failed")

// AllocError names the buffer that could not be acquired.
type AllocError struct {
	Buffer string
	Err    error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAllocation, e.Buffer, e.Err)
}

func (e *AllocError) Unwrap() []error { return []error{ErrAllocation, e.Err} }

// Observer is told which phase the experiment is in. monitoring.HealthMonitor
// satisfies it.
type Observer interface {
	SetPhase(phase, kernel string)
	AddAlert(level, component, message string)
}

// Phase names passed to Observer.SetPhase.
const (
	PhaseWarmup  = "warmup"
	PhaseRunning = "running"
	PhaseDone    = "done"
)

type nopObserver struct{}

func (nopObserver) SetPhase(string, string)         {}
func (nopObserver) AddAlert(string, string, string) {}

type Option func(*Engine)

// WithSource overrides the counter source, perf.Default() otherwise.
func WithSource(src perf.Source) Option {
	return func(e *Engine) { e.src = src }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// WithHost overrides the detected host description.
func WithHost(h cpu.HostInfo) Option {
	return func(e *Engine) { e.host = h }
}

// Engine owns the four experiment buffers and runs both kernels over them.
type Engine struct {
	ctx  *cpu.Context
	cfg  config.Config
	src  perf.Source
	obs  Observer
	host cpu.HostInfo

	matrix ternary.Matrix
	packed ternary.PackedMatrix
	input  []float32
	output []float32
}

// NewEngine acquires every buffer, generates the matrix and input vector
// from cfg.Seed, and packs the matrix. Any acquisition failure releases what
// was taken and returns an *AllocError.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		ctx: cpu.NewContext(cfg.MaxMemory),
		cfg: cfg,
		obs: nopObserver{},
	}
	e.host = cpu.Host()
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = perf.Default()
	}

	if err := e.allocate(); err != nil {
		e.ctx.Free()
		return nil, err
	}
	if err := e.generate(); err != nil {
		e.ctx.Free()
		return nil, err
	}

	logger.Log.Debug("Engine ready",
		"rows", cfg.Rows,
		"cols", cfg.Cols,
		"arena_bytes", e.ctx.Held(),
		"buffer_bytes", cfg.BufferBytes(),
		"counters", e.src.Name(),
	)
	if e.host.Fits(cfg.UnpackedBytes()) {
		logger.Log.Warn("Unpacked matrix fits in the last-level cache; results will not be bandwidth bound",
			"bytes", cfg.UnpackedBytes(),
			"llc_bytes", e.host.LastLevel(),
		)
	}
	return e, nil
}

func (e *Engine) allocate() error {
	rows, cols := e.cfg.Rows, e.cfg.Cols
	stride := e.cfg.PackedStride()

	mat, err := e.ctx.Int8s(rows * cols)
	if err != nil {
		return &AllocError{Buffer: "unpacked matrix", Err: err}
	}
	packed, err := e.ctx.Bytes(rows * stride)
	if err != nil {
		return &AllocError{Buffer: "packed matrix", Err: err}
	}
	input, err := e.ctx.Float32s(cols)
	if err != nil {
		return &AllocError{Buffer: "input vector", Err: err}
	}
	output, err := e.ctx.Float32s(rows)
	if err != nil {
		return &AllocError{Buffer: "output vector", Err: err}
	}

	e.matrix = ternary.Matrix{Data: mat, Rows: rows, Cols: cols}
	e.packed = ternary.PackedMatrix{Data: packed, Rows: rows, Cols: cols, Stride: stride}
	e.input = input
	e.output = output
	return nil
}

// generate fills the matrix, then the input vector, from one seeded source
// and packs the matrix.
func (e *Engine) generate() error {
	rng := ternary.NewSource(e.cfg.Seed)
	if err := ternary.GenerateInto(e.matrix.Data, rng, e.cfg.Rows, e.cfg.Cols, e.cfg.Sparsity); err != nil {
		return fmt.Errorf("generate matrix: %w", err)
	}
	ternary.GenerateInputInto(e.input, rng)
	if err := ternary.Pack(e.packed.Data, e.matrix.Data, e.cfg.Rows, e.cfg.Cols); err != nil {
		return fmt.Errorf("pack matrix: %w", err)
	}
	return nil
}

func (e *Engine) Matrix() ternary.Matrix       { return e.matrix }
func (e *Engine) Packed() ternary.PackedMatrix { return e.packed }
func (e *Engine) Input() []float32             { return e.input }
func (e *Engine) Output() []float32            { return e.output }
func (e *Engine) Source() perf.Source          { return e.src }

// Header describes the experiment for a reporter.
func (e *Engine) Header() report.Header {
	return report.NewHeader(e.cfg, e.host, e.src.Available(), e.src.Name())
}

// Run warms up both kernels, checks they agree, times the unpacked kernel
// then the packed kernel, and hands the comparison to rep. Both kernels
// share the input and output buffers.
func (e *Engine) Run(rep report.Reporter) (report.Summary, error) {
	rep.Start(e.Header())

	unpacked := bench.Unpacked(e.matrix, e.input, e.output)
	packed := bench.Packed(e.packed, e.input, e.output)

	e.obs.SetPhase(PhaseWarmup, "")
	bench.Warmup(e.cfg.Warmup, unpacked, packed)

	rel, ok := bench.Verify(unpacked, packed, e.cfg.VerifyTolerance)
	if !ok {
		logger.Log.Warn("Kernel outputs diverge",
			"max_relative_error", rel,
			"tolerance", e.cfg.VerifyTolerance,
		)
		e.obs.AddAlert("error", "verify", fmt.Sprintf("kernel outputs diverge: max relative error %g", rel))
	}
	if !e.src.Available() {
		e.obs.AddAlert("warning", "perf", "hardware counters unavailable, timing only")
	}

	var results [2]bench.Result
	for i, run := range []struct {
		version string
		kernel  bench.Kernel
	}{
		{"A", unpacked},
		{"B", packed},
	} {
		rep.Running(run.version, run.kernel.Name())
		e.obs.SetPhase(PhaseRunning, run.kernel.Name())
		res, err := bench.Run(run.kernel, e.cfg.Iterations, e.src)
		if err != nil {
			return report.Summary{}, fmt.Errorf("run %s: %w", run.kernel.Name(), err)
		}
		logger.Log.Info("Kernel finished",
			"kernel", res.Kernel,
			"time_ms", res.TimeMS(),
			"counters", res.CountersAvailable,
		)
		results[i] = res
	}

	summary := report.Summary{
		Comparison:       bench.Compare(results[0], results[1]),
		MaxRelativeError: rel,
		Verified:         ok,
	}
	e.obs.SetPhase(PhaseDone, "")
	if err := rep.Finish(summary); err != nil {
		return summary, fmt.Errorf("write report: %w", err)
	}
	return summary, nil
}

// Close releases every buffer. The engine must not be used afterwards.
func (e *Engine) Close() error {
	if e.ctx == nil {
		return nil
	}
	err := e.ctx.Free()
	e.ctx = nil
	return err
}
