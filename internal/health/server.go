// Package health tracks service health for the /health endpoint.
//
// This package implements:
//   - Uptime monitoring
//   - Outcome of the last write to the complaint slot
//   - Event delivery counters
package health

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"svcdesk/internal/events"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Status is returned by the /health endpoint.
type Status struct {
	Status          string        `json:"status"`
	Uptime          string        `json:"uptime"`
	StorageBackend  string        `json:"storage_backend"`
	LastWriteTime   string        `json:"last_write_time"`
	LastWriteStatus string        `json:"last_write_status"`
	Events          *events.Stats `json:"events,omitempty"`
}

// Monitor tracks application health metrics.
//
// Thread-safety:
//   - All fields are protected by RWMutex
type Monitor struct {
	startTime       time.Time
	backend         string
	lastWriteTime   time.Time
	lastWriteStatus string
	writeFailing    bool
	eventStats      func() events.Stats
	mu              sync.RWMutex
}

// NewMonitor creates a health monitor for the given storage backend.
func NewMonitor(backend string) *Monitor {
	return &Monitor{
		startTime:       time.Now(),
		backend:         backend,
		lastWriteStatus: "no writes yet",
	}
}

// SetEventStats registers the source of event delivery counters.
func (m *Monitor) SetEventStats(fn func() events.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventStats = fn
}

// RecordWrite records the outcome of a write-through to the slot. A nil
// error marks the slot healthy again.
func (m *Monitor) RecordWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWriteTime = time.Now()
	if err != nil {
		m.lastWriteStatus = "error: " + err.Error()
		m.writeFailing = true
		return
	}
	m.lastWriteStatus = "success"
	m.writeFailing = false
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Status:          StatusHealthy,
		Uptime:          time.Since(m.startTime).Round(time.Second).String(),
		StorageBackend:  m.backend,
		LastWriteStatus: m.lastWriteStatus,
	}
	if m.writeFailing {
		status.Status = StatusDegraded
	}
	if !m.lastWriteTime.IsZero() {
		status.LastWriteTime = m.lastWriteTime.Format("2006-01-02 15:04:05")
	}
	if m.eventStats != nil {
		stats := m.eventStats()
		status.Events = &stats
	}
	return status
}

// Handler serves GET /health. A degraded service still answers 200 so the
// desk stays reachable while storage is failing.
func (m *Monitor) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, m.GetStatus())
	}
}
