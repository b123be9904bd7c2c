// Package diagnostics exposes a small read-only HTTP surface for local
// liveness and introspection. It carries no mutation endpoints: blocking
// and unblocking hosts remain exclusively a bus (internal/busservice)
// operation.
package diagnostics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/glaciaos/frost-doh/internal/store"
)

// StatusResponse answers GET /healthz.
type StatusResponse struct {
	Status string `json:"status"`
}

// MemoryStats mirrors a gopsutil virtual-memory snapshot.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// CPUStats mirrors a gopsutil CPU-percent snapshot.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// StoreStats are the store-derived counts the spec doesn't name but a
// liveness surface for this kind of daemon always carries.
type StoreStats struct {
	LiveCacheRows int64 `json:"live_cache_rows"`
	BlacklistSize int64 `json:"blacklist_size"`
	AuditRows     int64 `json:"audit_rows"`
}

// StatsResponse answers GET /stats.
type StatsResponse struct {
	UptimeSeconds int64       `json:"uptime_seconds"`
	CPU           CPUStats    `json:"cpu"`
	Memory        MemoryStats `json:"memory"`
	Store         StoreStats  `json:"store"`
}

// Handler serves the diagnostics routes.
type Handler struct {
	store     *store.Store
	startTime time.Time
}

// NewRouter builds the gin engine for the diagnostics surface.
func NewRouter(s *store.Store) *gin.Engine {
	h := &Handler{store: s, startTime: time.Now()}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", h.health)
	r.GET("/stats", h.stats)
	return r
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) stats(c *gin.Context) {
	memStats := MemoryStats{}
	if vm, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vm.Total) / 1024 / 1024
		memStats.FreeMB = float64(vm.Available) / 1024 / 1024
		memStats.UsedMB = float64(vm.Used) / 1024 / 1024
		memStats.UsedPercent = vm.UsedPercent
	}

	cpuStats := CPUStats{NumCPU: runtime.NumCPU()}
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		cpuStats.UsedPercent = pct[0]
		cpuStats.IdlePercent = 100.0 - pct[0]
	}

	storeStats := StoreStats{}
	if n, err := h.store.CacheCount(); err == nil {
		storeStats.LiveCacheRows = n
	}
	if n, err := h.store.BlacklistCount(); err == nil {
		storeStats.BlacklistSize = n
	}
	if n, err := h.store.AuditCount(); err == nil {
		storeStats.AuditRows = n
	}

	c.JSON(http.StatusOK, StatsResponse{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CPU:           cpuStats,
		Memory:        memStats,
		Store:         storeStats,
	})
}
