package arrow_client

import (
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
)

// recordingServer keeps every record received by DoPut, keyed by
// descriptor path.
type recordingServer struct {
	flight.BaseFlightServer

	mu   sync.Mutex
	data map[string][]arrow.Record
}

func newRecordingServer() *recordingServer {
	return &recordingServer{data: make(map[string][]arrow.Record)}
}

func (s *recordingServer) DoPut(stream flight.FlightService_DoPutServer) error {
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer rdr.Release()

	key := ""
	for rdr.Next() {
		if d := rdr.LatestFlightDescriptor(); d != nil && key == "" {
			key = strings.Join(d.Path, "/")
		}
		rec := rdr.Record()
		rec.Retain()
		s.mu.Lock()
		s.data[key] = append(s.data[key], rec)
		s.mu.Unlock()
	}
	if err := rdr.Err(); err != nil {
		return err
	}
	return stream.Send(&flight.PutResult{AppMetadata: []byte("ok")})
}

// stored returns the records received under key.
func (s *recordingServer) stored(key string) []arrow.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]arrow.Record(nil), s.data[key]...)
}

func (s *recordingServer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, recs := range s.data {
		for _, r := range recs {
			r.Release()
		}
	}
	s.data = make(map[string][]arrow.Record)
}

// startServer runs a recording Flight server on a random local port.
func startServer(t *testing.T) (*recordingServer, string) {
	t.Helper()
	rs := newRecordingServer()
	srv := flight.NewServerWithMiddleware(nil)
	if err := srv.Init("localhost:0"); err != nil {
		t.Fatalf("init flight server: %v", err)
	}
	srv.RegisterFlightService(rs)
	go srv.Serve()
	t.Cleanup(func() {
		srv.Shutdown()
		rs.reset()
	})
	return rs, srv.Addr().String()
}
