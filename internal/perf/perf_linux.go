//go:build linux && perf

package perf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func hardwareSource() Source {
	return Hardware{}
}

// Hardware opens one perf_event_open counter per event for the calling
// thread, user space only. Events the kernel refuses are left closed and
// read as zero; Open fails only when no event at all could be opened.
type Hardware struct{}

func (Hardware) Name() string    { return "perf_event" }
func (Hardware) Available() bool { return true }

func (Hardware) Open(events []Event) (Group, error) {
	g := &fdGroup{}
	for i := range g.fds {
		g.fds[i] = -1
	}

	var errs []error
	opened := 0
	for _, e := range events {
		attr, err := eventAttr(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", e, err))
			continue
		}
		g.fds[e] = fd
		opened++
	}
	g.openErr = errors.Join(errs...)

	if opened == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, g.openErr)
	}
	return g, nil
}

func eventAttr(e Event) (unix.PerfEventAttr, error) {
	attr := unix.PerfEventAttr{
		Size: uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Bits: unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}
	switch e {
	case Cycles:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_CPU_CYCLES
	case Instructions:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_INSTRUCTIONS
	case CacheReferences:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_CACHE_REFERENCES
	case CacheMisses:
		attr.Type = unix.PERF_TYPE_HARDWARE
		attr.Config = unix.PERF_COUNT_HW_CACHE_MISSES
	case L1DReadMisses:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_L1D)
	case LLCReadMisses:
		attr.Type = unix.PERF_TYPE_HW_CACHE
		attr.Config = cacheConfig(unix.PERF_COUNT_HW_CACHE_LL)
	default:
		return attr, fmt.Errorf("perf: unknown event %d", int(e))
	}
	return attr, nil
}

// cacheConfig encodes a read-miss event for the given cache level.
func cacheConfig(cache uint64) uint64 {
	return cache |
		uint64(unix.PERF_COUNT_HW_CACHE_OP_READ)<<8 |
		uint64(unix.PERF_COUNT_HW_CACHE_RESULT_MISS)<<16
}

type fdGroup struct {
	fds     [NumEvents]int
	openErr error
}

func (g *fdGroup) each(req uint) error {
	var errs []error
	for e, fd := range g.fds {
		if fd < 0 {
			continue
		}
		if err := unix.IoctlSetInt(fd, req, 0); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", Event(e), err))
		}
	}
	return errors.Join(errs...)
}

func (g *fdGroup) Reset() error   { return g.each(unix.PERF_EVENT_IOC_RESET) }
func (g *fdGroup) Enable() error  { return g.each(unix.PERF_EVENT_IOC_ENABLE) }
func (g *fdGroup) Disable() error { return g.each(unix.PERF_EVENT_IOC_DISABLE) }

// PartialErr reports the events that failed to open.
func (g *fdGroup) PartialErr() error { return g.openErr }

func (g *fdGroup) Read(e Event) (uint64, error) {
	if e < 0 || e >= NumEvents || g.fds[e] < 0 {
		return 0, nil
	}
	var buf [8]byte
	n, err := unix.Read(g.fds[e], buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short read: %d bytes", n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (g *fdGroup) Close() error {
	var errs []error
	for i, fd := range g.fds {
		if fd < 0 {
			continue
		}
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
		g.fds[i] = -1
	}
	return errors.Join(errs...)
}
