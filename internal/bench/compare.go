package bench

import (
	"github.com/23skdu/tritbench/internal/metrics"
	"github.com/23skdu/tritbench/internal/perf"
)

// ConfirmThreshold is the cache-miss improvement above which the packed
// layout is considered to relieve the bandwidth bottleneck.
const ConfirmThreshold = 2.0

type Unit int

const (
	UnitMillis Unit = iota
	UnitKB
	UnitCount
	UnitPercent
	UnitRatio
)

// Metric is one row of the comparison table.
type Metric struct {
	Name     string
	Key      string
	Unit     Unit
	Baseline float64
	Packed   float64
	// Ratio is baseline/packed for lower-is-better metrics and
	// packed/baseline for higher-is-better ones (IPC).
	Ratio          float64
	HigherIsBetter bool
	FromCounters   bool
}

type Comparison struct {
	Baseline Result
	Packed   Result
	Metrics  []Metric

	// CountersAvailable is true only when both runs read real counters.
	CountersAvailable bool

	TimeImprovement      float64
	MemoryReduction      float64
	MemoryReductionPct   float64
	CacheMissImprovement float64
	Confirmed            bool
}

// Ratio divides num by den, returning 0 for a zero denominator.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func lowerIsBetter(name, key string, unit Unit, base, packed float64, counters bool) Metric {
	return Metric{Name: name, Key: key, Unit: unit, Baseline: base, Packed: packed, Ratio: Ratio(base, packed), FromCounters: counters}
}

// Compare builds the metric table for a baseline and a packed result.
func Compare(baseline, packed Result) Comparison {
	c := Comparison{
		Baseline:          baseline,
		Packed:            packed,
		CountersAvailable: baseline.CountersAvailable && packed.CountersAvailable,
	}

	c.Metrics = append(c.Metrics,
		lowerIsBetter("Total Time", "time", UnitMillis, baseline.TimeMS(), packed.TimeMS(), false),
		lowerIsBetter("Memory Footprint (KB)", "memory", UnitKB,
			float64(baseline.MemoryBytes), float64(packed.MemoryBytes), false),
	)

	if c.CountersAvailable {
		count := func(r Result, e perf.Event) float64 { return float64(r.Counter(e)) }
		c.Metrics = append(c.Metrics,
			lowerIsBetter("Cache References", "cache_references", UnitCount,
				count(baseline, perf.CacheReferences), count(packed, perf.CacheReferences), true),
			lowerIsBetter("Cache Misses", "cache_misses", UnitCount,
				count(baseline, perf.CacheMisses), count(packed, perf.CacheMisses), true),
			lowerIsBetter("Cache Miss Rate", "cache_miss_rate", UnitPercent,
				baseline.CacheMissRate, packed.CacheMissRate, true),
			lowerIsBetter("L1D Cache Misses", "l1d_misses", UnitCount,
				count(baseline, perf.L1DReadMisses), count(packed, perf.L1DReadMisses), true),
			lowerIsBetter("LLC (L3) Cache Misses", "llc_misses", UnitCount,
				count(baseline, perf.LLCReadMisses), count(packed, perf.LLCReadMisses), true),
			Metric{
				Name:           "IPC (Instructions/Cycle)",
				Key:            "ipc",
				Unit:           UnitRatio,
				Baseline:       baseline.IPC,
				Packed:         packed.IPC,
				Ratio:          Ratio(packed.IPC, baseline.IPC),
				HigherIsBetter: true,
				FromCounters:   true,
			},
		)
	}

	c.TimeImprovement = Ratio(baseline.TimeMS(), packed.TimeMS())
	c.MemoryReduction = Ratio(float64(baseline.MemoryBytes), float64(packed.MemoryBytes))
	if baseline.MemoryBytes > 0 {
		c.MemoryReductionPct = 100 * (1 - float64(packed.MemoryBytes)/float64(baseline.MemoryBytes))
	}
	if c.CountersAvailable {
		c.CacheMissImprovement = Ratio(float64(baseline.Counter(perf.CacheMisses)), float64(packed.Counter(perf.CacheMisses)))
		c.Confirmed = c.CacheMissImprovement > ConfirmThreshold
	}

	for _, m := range c.Metrics {
		metrics.RecordImprovement(m.Key, m.Ratio)
	}
	return c
}

// Metric returns the row with the given key.
func (c Comparison) Metric(key string) (Metric, bool) {
	for _, m := range c.Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}
