//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/tritbench/internal/arrow_client"
	"github.com/23skdu/tritbench/internal/config"
	"github.com/23skdu/tritbench/internal/engine"
	"github.com/23skdu/tritbench/internal/monitoring"
	"github.com/23skdu/tritbench/internal/report"
)

type sinkServer struct {
	flight.BaseFlightServer

	mu   sync.Mutex
	rows int64
}

func (s *sinkServer) DoPut(stream flight.FlightService_DoPutServer) error {
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer rdr.Release()
	for rdr.Next() {
		s.mu.Lock()
		s.rows += rdr.Record().NumRows()
		s.mu.Unlock()
	}
	return stream.Send(&flight.PutResult{})
}

// TestE2E_FullWorkload runs the fixed experiment end to end and ships the
// results to a local Flight server.
func TestE2E_FullWorkload(t *testing.T) {
	if testing.Short() {
		t.Skip("full workload")
	}
	cfg := config.Default()

	hm := monitoring.NewHealthMonitor()
	addr, err := hm.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start monitor: %v", err)
	}
	defer hm.Stop(context.Background())

	e, err := engine.NewEngine(cfg, engine.WithObserver(hm))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer e.Close()

	var out bytes.Buffer
	start := time.Now()
	summary, err := e.Run(report.New(config.OutputJSON, &out))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	t.Logf("Workload finished in %v", time.Since(start))

	if !summary.Verified {
		t.Errorf("Kernel outputs diverge: %g", summary.MaxRelativeError)
	}
	c := summary.Comparison
	if c.MemoryReduction != 4 {
		t.Errorf("Memory reduction = %v, want 4 for 4096 columns", c.MemoryReduction)
	}
	if c.Baseline.MemoryBytes != 45088768 || c.Packed.MemoryBytes != 11272192 {
		t.Errorf("Footprints = %d/%d", c.Baseline.MemoryBytes, c.Packed.MemoryBytes)
	}
	t.Logf("Counter source %s, counters read: %v", e.Source().Name(), c.CountersAvailable)

	var doc report.Document
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid JSON report: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	var st monitoring.HealthStatus
	err = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if st.Phase != engine.PhaseDone {
		t.Errorf("Phase = %q, want %q", st.Phase, engine.PhaseDone)
	}
	if st.Bench.KernelIterations < int64(2*cfg.Iterations) {
		t.Errorf("Kernel iterations = %d", st.Bench.KernelIterations)
	}

	sink := &sinkServer{}
	srv := flight.NewServerWithMiddleware(nil)
	if err := srv.Init("localhost:0"); err != nil {
		t.Fatal(err)
	}
	srv.RegisterFlightService(sink)
	go srv.Serve()
	defer srv.Shutdown()

	rec := arrow_client.ResultsRecord(memory.NewGoAllocator(), nil, c.Baseline, c.Packed)
	defer rec.Release()

	client, err := arrow_client.NewFlightClient(srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Connect(); err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if err := client.DoPut(context.Background(), rec); err != nil {
		t.Fatalf("DoPut failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.rows != 2 {
		t.Errorf("Server received %d rows, want 2", sink.rows)
	}
}
