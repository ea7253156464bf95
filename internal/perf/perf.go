// Package perf brackets a region of code with hardware performance
// counters.
//
// The counters come from a Source. Builds with the "perf" tag on Linux get a
// perf_event_open backed source; every other build gets Unavailable, whose
// counters always read zero. Callers never branch on the build: they open a
// Session from whatever Default returns and check Available on the result.
package perf

import "errors"

var (
	ErrUnavailable       = errors.New("perf: hardware counters unavailable")
	ErrInvalidTransition = errors.New("perf: invalid session transition")
)

type Event int

const (
	Cycles Event = iota
	Instructions
	CacheReferences
	CacheMisses
	L1DReadMisses
	LLCReadMisses

	NumEvents
)

// AllEvents lists every countable event in report order.
var AllEvents = []Event{
	Cycles,
	Instructions,
	CacheReferences,
	CacheMisses,
	L1DReadMisses,
	LLCReadMisses,
}

func (e Event) String() string {
	switch e {
	case Cycles:
		return "cycles"
	case Instructions:
		return "instructions"
	case CacheReferences:
		return "cache_references"
	case CacheMisses:
		return "cache_misses"
	case L1DReadMisses:
		return "l1d_read_misses"
	case LLCReadMisses:
		return "llc_read_misses"
	default:
		return "unknown"
	}
}

// Counts holds one reading per event. Events that could not be counted
// read as zero.
type Counts [NumEvents]uint64

func (c Counts) Get(e Event) uint64 {
	if e < 0 || e >= NumEvents {
		return 0
	}
	return c[e]
}

// Group is an opened set of counters for the calling thread.
type Group interface {
	Reset() error
	Enable() error
	Disable() error
	Read(e Event) (uint64, error)
	Close() error
}

// Source opens counter groups.
type Source interface {
	Name() string
	Available() bool
	Open(events []Event) (Group, error)
}

// Default returns the hardware source when compiled in, Unavailable
// otherwise.
func Default() Source {
	return hardwareSource()
}

// Unavailable is the source used when no counter subsystem exists. Its
// groups accept every call and read zero.
type Unavailable struct{}

func (Unavailable) Name() string    { return "unavailable" }
func (Unavailable) Available() bool { return false }

func (Unavailable) Open([]Event) (Group, error) {
	return zeroGroup{}, nil
}

type zeroGroup struct{}

func (zeroGroup) Reset() error               { return nil }
func (zeroGroup) Enable() error              { return nil }
func (zeroGroup) Disable() error             { return nil }
func (zeroGroup) Read(Event) (uint64, error) { return 0, nil }
func (zeroGroup) Close() error               { return nil }
