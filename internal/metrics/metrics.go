package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalIterations atomic.Int64

var (
	KernelIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tritbench_kernel_iterations_total",
		Help: "Total number of timed kernel invocations",
	}, []string{"kernel"})

	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tritbench_kernel_duration_seconds",
		Help:    "Wall-clock time of one timed benchmark run (all iterations)",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"kernel"})

	KernelCPUSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_kernel_cpu_seconds",
		Help: "Process CPU time consumed during the last timed run",
	}, []string{"kernel"})

	MatrixBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_matrix_bytes",
		Help: "Analytical weight footprint per representation",
	}, []string{"kernel"})

	ArenaAllocatedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tritbench_arena_allocated_bytes",
		Help: "Bytes currently held by the buffer arena",
	})

	AllocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tritbench_allocation_failures_total",
		Help: "Buffer acquisitions that failed",
	})

	HardwareCounter = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_hardware_counter",
		Help: "Raw hardware counter value from the last timed run",
	}, []string{"kernel", "event"})

	CountersAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tritbench_counters_available",
		Help: "1 when hardware counters were read, 0 when unavailable",
	})

	CacheMissRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_cache_miss_rate_percent",
		Help: "Cache misses / cache references * 100, 0 when unavailable",
	}, []string{"kernel"})

	InstructionsPerCycle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_instructions_per_cycle",
		Help: "Instructions / cycles, 0 when unavailable",
	}, []string{"kernel"})

	Improvement = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tritbench_improvement_ratio",
		Help: "Packed-vs-baseline improvement factor per metric",
	}, []string{"metric"})

	VerificationError = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tritbench_verification_max_relative_error",
		Help: "Largest relative difference between the two kernels' outputs",
	})

	VerificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tritbench_verification_failures_total",
		Help: "Verification passes where outputs diverged beyond tolerance",
	})

	ExportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tritbench_export_errors_total",
		Help: "Result export failures by sink",
	}, []string{"sink"})
)

func RecordKernelRun(kernel string, iterations int, elapsed, cpu time.Duration) {
	KernelIterationsTotal.WithLabelValues(kernel).Add(float64(iterations))
	totalIterations.Add(int64(iterations))
	KernelDuration.WithLabelValues(kernel).Observe(elapsed.Seconds())
	KernelCPUSeconds.WithLabelValues(kernel).Set(cpu.Seconds())
}

// TotalIterations is the number of timed kernel calls across all runs.
func TotalIterations() int64 {
	return totalIterations.Load()
}

func RecordFootprint(kernel string, bytes int64) {
	MatrixBytes.WithLabelValues(kernel).Set(float64(bytes))
}

func RecordArenaBytes(bytes int64) {
	ArenaAllocatedBytes.Set(float64(bytes))
}

func RecordAllocationFailure() {
	AllocationFailures.Inc()
}

// RecordCounters publishes one run's counter readings. names and values
// are parallel slices.
func RecordCounters(kernel string, available bool, names []string, values []uint64, missRate, ipc float64) {
	if available {
		CountersAvailable.Set(1)
	} else {
		CountersAvailable.Set(0)
	}
	for i, name := range names {
		if i >= len(values) {
			break
		}
		HardwareCounter.WithLabelValues(kernel, name).Set(float64(values[i]))
	}
	CacheMissRate.WithLabelValues(kernel).Set(missRate)
	InstructionsPerCycle.WithLabelValues(kernel).Set(ipc)
}

func RecordImprovement(metric string, ratio float64) {
	Improvement.WithLabelValues(metric).Set(ratio)
}

func RecordVerification(maxRelErr float64, passed bool) {
	VerificationError.Set(maxRelErr)
	if !passed {
		VerificationFailures.Inc()
	}
}

func RecordExportError(sink string) {
	ExportErrors.WithLabelValues(sink).Inc()
}

// WriteTextfile dumps every registered metric in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
