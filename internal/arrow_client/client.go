// Package arrow_client exports benchmark results as Arrow records, either to
// an IPC file or to a Flight server.
package arrow_client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultPath is the Flight descriptor path results are written under.
var DefaultPath = []string{"tritbench", "results"}

var ErrNotConnected = errors.New("arrow_client: client not connected, call Connect() first")

// FlightClient wraps Apache Arrow Flight for result transport
type FlightClient struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

// NewFlightClient prepares a client for addr (host:port). No connection is
// made until Connect.
func NewFlightClient(addr string) (*FlightClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("flight address is empty")
	}
	return &FlightClient{addr: addr, timeout: 30 * time.Second}, nil
}

func (fc *FlightClient) Addr() string { return fc.addr }

// SetTimeout bounds each DoPut call.
func (fc *FlightClient) SetTimeout(d time.Duration) {
	fc.timeout = d
}

// Connect creates the underlying gRPC client.
func (fc *FlightClient) Connect() error {
	client, err := flight.NewClientWithMiddleware(fc.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	fc.client = client
	return nil
}

// Close disconnects from the Flight server
func (fc *FlightClient) Close() error {
	if fc.client != nil {
		err := fc.client.Close()
		fc.client = nil
		return err
	}
	return nil
}

// DoPut streams rec to the server under path, or DefaultPath when path is
// empty, and waits for the server to acknowledge the stream.
func (fc *FlightClient) DoPut(ctx context.Context, rec arrow.Record, path ...string) error {
	if fc.client == nil {
		return ErrNotConnected
	}
	if len(path) == 0 {
		path = DefaultPath
	}
	if fc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fc.timeout)
		defer cancel()
	}

	stream, err := fc.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to open DoPut stream: %w", err)
	}

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: path,
	})
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send: %w", err)
	}

	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("DoPut: %w", err)
		}
	}
}
