package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/tritbench/internal/cpu"
	"github.com/23skdu/tritbench/internal/logger"
	"github.com/23skdu/tritbench/internal/metrics"
)

// PhaseStarting is reported by /status until the first SetPhase call.
const PhaseStarting = "starting"

// HealthStatus represents the health status of the benchmark process
type HealthStatus struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Phase     string        `json:"phase"`
	Kernel    string        `json:"kernel,omitempty"`
	System    SystemInfo    `json:"system"`
	Bench     BenchInfo     `json:"bench"`
	Alerts    []Alert       `json:"alerts"`
}

// SystemInfo contains system-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	HeapMB       int    `json:"heap_mb"`
	ArenaBytes   int64  `json:"arena_bytes"`
	NumGoroutine int    `json:"num_goroutine"`
}

type BenchInfo struct {
	KernelIterations int64 `json:"kernel_iterations"`
}

// Alert represents a condition worth surfacing on /status
type Alert struct {
	Level     string    `json:"level"` // warning, error
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthMonitor serves /metrics, /healthz and /status for one benchmark
// process.
type HealthMonitor struct {
	startTime time.Time
	server    *http.Server

	mu     sync.RWMutex
	phase  string
	kernel string
	alerts []Alert
}

const maxAlerts = 100

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime: time.Now(),
		phase:     PhaseStarting,
	}
}

// Handler returns the monitor's routes.
func (hm *HealthMonitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", hm.handleDetailedStatus)
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (hm *HealthMonitor) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	hm.server = &http.Server{
		Handler:      hm.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	bound := ln.Addr().String()
	logger.Log.Info("Health monitor starting", "addr", bound)
	go func() {
		if err := hm.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Health monitor stopped", "err", err)
		}
	}()
	return bound, nil
}

func (hm *HealthMonitor) Stop(ctx context.Context) error {
	if hm.server != nil {
		return hm.server.Shutdown(ctx)
	}
	return nil
}

// SetPhase records the current benchmark phase and the kernel being timed,
// if any.
func (hm *HealthMonitor) SetPhase(phase, kernel string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.phase = phase
	hm.kernel = kernel
}

func (hm *HealthMonitor) AddAlert(level, component, message string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.alerts = append(hm.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(hm.alerts) > maxAlerts {
		hm.alerts = hm.alerts[1:]
	}
}

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.Status()

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    status.Status,
		"phase":     status.Phase,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hm.Status())
}

// Status computes the current health. Any error-level alert degrades it.
func (hm *HealthMonitor) Status() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := "healthy"
	for _, a := range hm.alerts {
		if a.Level == "error" {
			status = "degraded"
			break
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Phase:     hm.phase,
		Kernel:    hm.kernel,
		System:    systemInfo(),
		Bench:     BenchInfo{KernelIterations: metrics.TotalIterations()},
		Alerts:    append([]Alert(nil), hm.alerts...),
	}
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		HeapMB:       int(m.HeapAlloc / 1024 / 1024),
		ArenaBytes:   cpu.AllocatedBytes(),
		NumGoroutine: runtime.NumGoroutine(),
	}
}
