package config

import (
	"fmt"
	"strings"
	"time"
)

// Workload constants. The experiment is only comparable across runs when
// these stay fixed, so they are not exposed as flags.
const (
	DefaultRows       = 11008
	DefaultCols       = 4096
	DefaultSparsity   = 0.5
	DefaultIterations = 100
	DefaultWarmup     = 10
	DefaultSeed       = 42

	// TritsPerByte is the number of 2-bit fields in one packed byte.
	TritsPerByte = 4
)

type OutputFormat int

const (
	OutputText OutputFormat = iota
	OutputJSON
)

func (f OutputFormat) String() string {
	switch f {
	case OutputJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseOutputFormat maps a flag value onto an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return OutputText, fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

type Config struct {
	Rows       int
	Cols       int
	Sparsity   float32
	Iterations int
	Warmup     int
	Seed       uint64

	// MaxMemory caps the bytes the buffer arena may acquire.
	MaxMemory int64

	// VerifyTolerance is the largest relative error accepted between the
	// two kernels' outputs.
	VerifyTolerance float64

	LogLevel  string
	LogFormat string
	Output    OutputFormat

	MetricsFile string
	MetricsAddr string
	ArrowOut    string
	FlightAddr  string
	// FlightTimeout bounds one DoPut of the results.
	FlightTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Rows <= 0 {
		return fmt.Errorf("invalid rows: %d (must be positive)", c.Rows)
	}
	if c.Cols <= 0 {
		return fmt.Errorf("invalid cols: %d (must be positive)", c.Cols)
	}
	if c.Sparsity < 0 || c.Sparsity > 1 {
		return fmt.Errorf("invalid sparsity: %f (must be in [0, 1])", c.Sparsity)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("invalid iterations: %d (must be >= 1)", c.Iterations)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("invalid warmup: %d (must be non-negative)", c.Warmup)
	}
	if c.MaxMemory <= 0 {
		return fmt.Errorf("invalid max_memory: %d (must be positive)", c.MaxMemory)
	}
	if c.VerifyTolerance <= 0 {
		return fmt.Errorf("invalid verify_tolerance: %g (must be positive)", c.VerifyTolerance)
	}
	if c.FlightTimeout <= 0 {
		return fmt.Errorf("invalid flight_timeout: %v (must be positive)", c.FlightTimeout)
	}
	return nil
}

// PackedStride is the number of bytes one packed row occupies.
func (c *Config) PackedStride() int {
	return (c.Cols + TritsPerByte - 1) / TritsPerByte
}

func (c *Config) UnpackedBytes() int64 {
	return int64(c.Rows) * int64(c.Cols)
}

func (c *Config) PackedBytes() int64 {
	return int64(c.Rows) * int64(c.PackedStride())
}

// BufferBytes is the total the engine acquires: both matrices plus the
// float32 input and output vectors.
func (c *Config) BufferBytes() int64 {
	return c.UnpackedBytes() + c.PackedBytes() + 4*int64(c.Cols) + 4*int64(c.Rows)
}

func (c *Config) TotalWeights() int64 {
	return int64(c.Rows) * int64(c.Cols)
}

func Default() Config {
	return Config{
		Rows:            DefaultRows,
		Cols:            DefaultCols,
		Sparsity:        DefaultSparsity,
		Iterations:      DefaultIterations,
		Warmup:          DefaultWarmup,
		Seed:            DefaultSeed,
		MaxMemory:       4 * 1024 * 1024 * 1024,
		VerifyTolerance: 1e-5,
		LogLevel:        "info",
		LogFormat:       "console",
		Output:          OutputText,
		FlightTimeout:   30 * time.Second,
	}
}
