package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// QueueStats reports the certificate job queue depths.
type QueueStats interface {
	Len(ctx context.Context) (ready, delayed, dead int64, err error)
}

const healthTimeout = 2 * time.Second

// SystemHandler serves health checks and operational statistics.
type SystemHandler struct {
	deps      map[string]Pinger
	queue     QueueStats
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(deps map[string]Pinger, queue QueueStats, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		deps:      deps,
		queue:     queue,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Reports 503 when any backing store is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	response.Success(c, status, gin.H{"status": overall, "checks": checks})
}

type systemStats struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`

	// Certificate job queue
	QueueReady   int64 `json:"queue_ready"`
	QueueDelayed int64 `json:"queue_delayed"`
	QueueDead    int64 `json:"queue_dead"`
}

// Stats godoc
// GET /api/v1/admin/system/stats
func (h *SystemHandler) Stats(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := systemStats{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
		GoVersion:  runtime.Version(),
	}

	ready, delayed, dead, err := h.queue.Len(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read queue depths")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrTransient)
		return
	}
	stats.QueueReady, stats.QueueDelayed, stats.QueueDead = ready, delayed, dead

	response.Success(c, http.StatusOK, stats)
}
