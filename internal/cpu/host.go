package cpu

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// HostInfo describes the cache hierarchy the benchmark runs against.
// Sizes are in bytes; -1 means the level could not be detected.
type HostInfo struct {
	Brand         string `json:"brand"`
	Arch          string `json:"arch"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
	CacheLine     int    `json:"cache_line"`
	L1D           int    `json:"l1d_bytes"`
	L2            int    `json:"l2_bytes"`
	L3            int    `json:"l3_bytes"`
}

func Host() HostInfo {
	c := cpuid.CPU
	brand := c.BrandName
	if brand == "" {
		brand = c.VendorString
	}
	if brand == "" {
		brand = "unknown"
	}
	return HostInfo{
		Brand:         brand,
		Arch:          runtime.GOARCH,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		CacheLine:     c.CacheLine,
		L1D:           c.Cache.L1D,
		L2:            c.Cache.L2,
		L3:            c.Cache.L3,
	}
}

// LastLevel returns the largest detected cache size, or -1.
func (h HostInfo) LastLevel() int {
	for _, n := range []int{h.L3, h.L2, h.L1D} {
		if n > 0 {
			return n
		}
	}
	return -1
}

// Fits reports whether n bytes fit in the last-level cache. Unknown cache
// sizes never fit.
func (h HostInfo) Fits(n int64) bool {
	llc := h.LastLevel()
	return llc > 0 && n <= int64(llc)
}

func (h HostInfo) String() string {
	return fmt.Sprintf("%s (%s), L1D %s, L2 %s, LLC %s, line %dB",
		h.Brand, h.Arch, sizeKB(h.L1D), sizeKB(h.L2), sizeKB(h.L3), h.CacheLine)
}

func sizeKB(n int) string {
	if n <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d KB", n/1024)
}
