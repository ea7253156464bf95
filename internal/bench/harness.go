// Package bench times repeated kernel invocations, brackets them with
// hardware counters when available, and compares two runs.
package bench

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/23skdu/tritbench/internal/kernels"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/metrics"
	"github.com/23skdu/tritbench/internal/perf"
)

var ErrInvalidIterations = errors.New("bench: iterations must be >= 1")

// Result is the record of one timed run. It is not modified after Run
// returns.
type Result struct {
	Kernel      string
	Iterations  int
	Elapsed     time.Duration
	CPUTime     time.Duration
	MemoryBytes int64

	// CountersAvailable is false when the run was not bracketed by real
	// hardware counters; Counters, CacheMissRate and IPC are then zero.
	CountersAvailable bool
	Counters          perf.Counts
	CacheMissRate     float64
	IPC               float64
}

// TimeMS is the elapsed wall-clock time in milliseconds.
func (r Result) TimeMS() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

func (r Result) Counter(e perf.Event) uint64 {
	return r.Counters.Get(e)
}

// CacheMissRate returns misses/references*100, or 0 without references.
func CacheMissRate(misses, references uint64) float64 {
	if references == 0 {
		return 0
	}
	return float64(misses) / float64(references) * 100
}

// InstructionsPerCycle returns instructions/cycles, or 0 without cycles.
func InstructionsPerCycle(instructions, cycles uint64) float64 {
	if cycles == 0 {
		return 0
	}
	return float64(instructions) / float64(cycles)
}

// Run invokes k iterations times back to back. The output buffer is
// overwritten by every call; only the last write survives. Counters come
// from a fresh session on src that is closed before Run returns.
//
// The calling goroutine is locked to its OS thread for the whole run:
// hardware counters follow the thread that opened them.
func Run(k Kernel, iterations int, src perf.Source) (Result, error) {
	if iterations < 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidIterations, iterations)
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := logger.Log.With("kernel", k.Name())
	res := Result{
		Kernel:      k.Name(),
		Iterations:  iterations,
		MemoryBytes: k.MemoryBytes(),
	}

	session := perf.NewSession(src)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("close counters", "err", err)
		}
	}()

	counting := true
	if err := session.Arm(); err != nil {
		log.Warn("arm counters", "err", err)
		counting = false
	} else if err := session.Start(); err != nil {
		log.Warn("start counters", "err", err)
		counting = false
	}
	if err := session.OpenErr(); err != nil {
		log.Warn("hardware counters degraded", "err", err)
	}

	cpuStart := cpuTimeNow()
	start := time.Now()
	for i := 0; i < iterations; i++ {
		k.Run()
	}
	res.Elapsed = time.Since(start)
	res.CPUTime = cpuTimeNow() - cpuStart

	if counting {
		counts, err := session.Stop()
		if err != nil {
			log.Warn("read counters", "err", err)
		}
		if session.Available() {
			res.Counters = counts
			res.CountersAvailable = true
		}
	}
	res.CacheMissRate = CacheMissRate(res.Counter(perf.CacheMisses), res.Counter(perf.CacheReferences))
	res.IPC = InstructionsPerCycle(res.Counter(perf.Instructions), res.Counter(perf.Cycles))

	record(res)
	log.Debug("run complete",
		"iterations", iterations,
		"elapsed_ms", res.TimeMS(),
		"counters", res.CountersAvailable,
	)
	return res, nil
}

func record(res Result) {
	metrics.RecordKernelRun(res.Kernel, res.Iterations, res.Elapsed, res.CPUTime)
	metrics.RecordFootprint(res.Kernel, res.MemoryBytes)

	names := make([]string, len(perf.AllEvents))
	values := make([]uint64, len(perf.AllEvents))
	for i, e := range perf.AllEvents {
		names[i] = e.String()
		values[i] = res.Counter(e)
	}
	metrics.RecordCounters(res.Kernel, res.CountersAvailable, names, values, res.CacheMissRate, res.IPC)
}

// Warmup runs every kernel n times, interleaved, without timing.
func Warmup(n int, ks ...Kernel) {
	for i := 0; i < n; i++ {
		for _, k := range ks {
			k.Run()
		}
	}
}

// Verify runs a then b and returns the largest relative difference between
// their outputs and whether it is within tol. The kernels may share an
// output buffer.
func Verify(a, b Kernel, tol float64) (float64, bool) {
	a.Run()
	want := slices.Clone(a.Output())
	b.Run()
	rel := kernels.MaxRelativeError(want, b.Output())
	ok := rel < tol
	metrics.RecordVerification(rel, ok)
	return rel, ok
}
