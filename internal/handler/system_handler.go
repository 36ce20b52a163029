package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/response"
)

const (
	metricsInterval = 7 * time.Second
	healthTimeout   = 2 * time.Second
)

// SystemHandler reports process health and streams runtime metrics.
type SystemHandler struct {
	db        *pgxpool.Pool
	rdb       *redis.Client
	registry  *engine.Registry
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(db *pgxpool.Pool, rdb *redis.Client, registry *engine.Registry, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		registry:  registry,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// Pings Postgres and Redis. Answers 503 when either is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := gin.H{"postgres": "ok", "redis": "ok"}
	healthy := true
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			healthy = false
		}
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrConnection)
		return
	}
	status["uptime"] = formatDuration(time.Since(h.startTime))
	response.Success(c, http.StatusOK, status)
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Exams
	LiveSessions int `json:"live_sessions"`

	// Worker Queues
	QueueSessions   int64 `json:"queue_sessions"`
	QueueViolations int64 `json:"queue_violations"`
	QueueResults    int64 `json:"queue_results"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	m := h.collect(c.Request.Context())
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		LiveSessions: h.registry.Len(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.StackInuse = ms.StackInuse
	m.NumGC = ms.NumGC

	// ── Worker Queues (pipelined LLEN) ──
	pipe := h.rdb.Pipeline()
	sessionsCmd := pipe.LLen(ctx, config.WorkerKey.PersistSessionsQueue)
	violationsCmd := pipe.LLen(ctx, config.WorkerKey.PersistViolationsQueue)
	resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		m.QueueSessions, _ = sessionsCmd.Result()
		m.QueueViolations, _ = violationsCmd.Result()
		m.QueueResults, _ = resultsCmd.Result()
	}

	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
