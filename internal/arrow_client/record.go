package arrow_client

import (
	"fmt"
	"io"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/tritbench/internal/bench"
	"github.com/23skdu/tritbench/internal/perf"
)

// Column order of the results record. Counter columns follow in
// perf.AllEvents order.
const (
	colKernel = iota
	colIterations
	colTimeMS
	colCPUTimeMS
	colMemoryBytes
	colCountersAvailable
	colCacheMissRate
	colIPC
	colFirstCounter
)

// ResultsSchema describes one row per benchmark run. meta is attached as
// schema metadata with sorted keys.
func ResultsSchema(meta map[string]string) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "kernel", Type: arrow.BinaryTypes.String},
		{Name: "iterations", Type: arrow.PrimitiveTypes.Int64},
		{Name: "time_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "cpu_time_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "memory_bytes", Type: arrow.PrimitiveTypes.Int64},
		{Name: "counters_available", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "cache_miss_rate_pct", Type: arrow.PrimitiveTypes.Float64},
		{Name: "ipc", Type: arrow.PrimitiveTypes.Float64},
	}
	for _, e := range perf.AllEvents {
		fields = append(fields, arrow.Field{Name: e.String(), Type: arrow.PrimitiveTypes.Uint64})
	}

	if len(meta) == 0 {
		return arrow.NewSchema(fields, nil)
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = meta[k]
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

// ResultsRecord builds a record with one row per result. The caller owns
// the record and must Release it.
func ResultsRecord(mem memory.Allocator, meta map[string]string, results ...bench.Result) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, ResultsSchema(meta))
	defer b.Release()

	for _, r := range results {
		b.Field(colKernel).(*array.StringBuilder).Append(r.Kernel)
		b.Field(colIterations).(*array.Int64Builder).Append(int64(r.Iterations))
		b.Field(colTimeMS).(*array.Float64Builder).Append(r.TimeMS())
		b.Field(colCPUTimeMS).(*array.Float64Builder).Append(float64(r.CPUTime.Microseconds()) / 1000)
		b.Field(colMemoryBytes).(*array.Int64Builder).Append(r.MemoryBytes)
		b.Field(colCountersAvailable).(*array.BooleanBuilder).Append(r.CountersAvailable)
		b.Field(colCacheMissRate).(*array.Float64Builder).Append(r.CacheMissRate)
		b.Field(colIPC).(*array.Float64Builder).Append(r.IPC)
		for i, e := range perf.AllEvents {
			cb := b.Field(colFirstCounter + i).(*array.Uint64Builder)
			if r.CountersAvailable {
				cb.Append(r.Counter(e))
			} else {
				cb.AppendNull()
			}
		}
	}
	return b.NewRecord()
}

// WriteIPC writes rec to w in the Arrow IPC file format.
func WriteIPC(w io.Writer, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return fmt.Errorf("create ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write ipc record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close ipc writer: %w", err)
	}
	return nil
}
