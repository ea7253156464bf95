package report

import (
	"encoding/json"
	"io"

	"github.com/23skdu/tritbench/internal/bench"
	"github.com/23skdu/tritbench/internal/cpu"
	"github.com/23skdu/tritbench/internal/perf"
)

type Document struct {
	Config       ConfigJSON   `json:"config"`
	Host         cpu.HostInfo `json:"host"`
	Results      []ResultJSON `json:"results"`
	Metrics      []MetricJSON `json:"metrics"`
	Conclusion   Conclusion   `json:"conclusion"`
	Verification Verification `json:"verification"`
}

type ConfigJSON struct {
	Rows          int     `json:"rows"`
	Cols          int     `json:"cols"`
	TotalWeights  int64   `json:"total_weights"`
	Sparsity      float32 `json:"sparsity"`
	Iterations    int     `json:"iterations"`
	Warmup        int     `json:"warmup"`
	Seed          uint64  `json:"seed"`
	CounterSource string  `json:"counter_source"`
	UnpackedBytes int64   `json:"unpacked_bytes"`
	PackedBytes   int64   `json:"packed_bytes"`
	BufferBytes   int64   `json:"buffer_bytes"`
}

type ResultJSON struct {
	Kernel            string            `json:"kernel"`
	Iterations        int               `json:"iterations"`
	TimeMS            float64           `json:"time_ms"`
	CPUTimeMS         float64           `json:"cpu_time_ms"`
	MemoryBytes       int64             `json:"memory_bytes"`
	CountersAvailable bool              `json:"counters_available"`
	Counters          map[string]uint64 `json:"counters,omitempty"`
	CacheMissRate     float64           `json:"cache_miss_rate_pct"`
	IPC               float64           `json:"ipc"`
}

type MetricJSON struct {
	Name           string  `json:"name"`
	Key            string  `json:"key"`
	Baseline       float64 `json:"baseline"`
	Packed         float64 `json:"packed"`
	Ratio          float64 `json:"ratio"`
	HigherIsBetter bool    `json:"higher_is_better,omitempty"`
}

type Conclusion struct {
	CountersAvailable    bool    `json:"counters_available"`
	TimeImprovement      float64 `json:"time_improvement"`
	MemoryReduction      float64 `json:"memory_reduction"`
	MemoryReductionPct   float64 `json:"memory_reduction_pct"`
	CacheMissImprovement float64 `json:"cache_miss_improvement"`
	Confirmed            bool    `json:"confirmed"`
}

type Verification struct {
	MaxRelativeError float64 `json:"max_relative_error"`
	Passed           bool    `json:"passed"`
}

// jsonReporter buffers the header and emits one document on Finish.
type jsonReporter struct {
	w      io.Writer
	header Header
}

func (j *jsonReporter) Start(h Header)         { j.header = h }
func (j *jsonReporter) Running(string, string) {}

func (j *jsonReporter) Finish(s Summary) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildDocument(j.header, s))
}

func resultJSON(r bench.Result) ResultJSON {
	out := ResultJSON{
		Kernel:            r.Kernel,
		Iterations:        r.Iterations,
		TimeMS:            r.TimeMS(),
		CPUTimeMS:         float64(r.CPUTime.Microseconds()) / 1000,
		MemoryBytes:       r.MemoryBytes,
		CountersAvailable: r.CountersAvailable,
		CacheMissRate:     r.CacheMissRate,
		IPC:               r.IPC,
	}
	if r.CountersAvailable {
		out.Counters = make(map[string]uint64, len(perf.AllEvents))
		for _, e := range perf.AllEvents {
			out.Counters[e.String()] = r.Counter(e)
		}
	}
	return out
}

// BuildDocument assembles the JSON form of a finished run.
func BuildDocument(h Header, s Summary) Document {
	c := s.Comparison
	doc := Document{
		Config: ConfigJSON{
			Rows:          h.Rows,
			Cols:          h.Cols,
			TotalWeights:  h.TotalWeights,
			Sparsity:      h.Sparsity,
			Iterations:    h.Iterations,
			Warmup:        h.Warmup,
			Seed:          h.Seed,
			CounterSource: h.CounterSource,
			UnpackedBytes: h.UnpackedBytes,
			PackedBytes:   h.PackedBytes,
			BufferBytes:   h.BufferBytes,
		},
		Host:    h.Host,
		Results: []ResultJSON{resultJSON(c.Baseline), resultJSON(c.Packed)},
		Conclusion: Conclusion{
			CountersAvailable:    c.CountersAvailable,
			TimeImprovement:      c.TimeImprovement,
			MemoryReduction:      c.MemoryReduction,
			MemoryReductionPct:   c.MemoryReductionPct,
			CacheMissImprovement: c.CacheMissImprovement,
			Confirmed:            c.Confirmed,
		},
		Verification: Verification{
			MaxRelativeError: s.MaxRelativeError,
			Passed:           s.Verified,
		},
	}
	for _, m := range c.Metrics {
		doc.Metrics = append(doc.Metrics, MetricJSON{
			Name:           m.Name,
			Key:            m.Key,
			Baseline:       m.Baseline,
			Packed:         m.Packed,
			Ratio:          m.Ratio,
			HigherIsBetter: m.HigherIsBetter,
		})
	}
	return doc
}
