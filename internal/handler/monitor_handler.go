package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// MonitorHandler streams live exam activity to admins.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSSE godoc
// GET /api/v1/admin/monitor
// Sends a snapshot of active students, then forwards every published
// event. A fresh snapshot follows every refreshInterval while events flow.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	snap, err := h.snapshot(reqCtx)
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}

	pubsub := h.monitorService.Subscribe(reqCtx)
	defer pubsub.Close()
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("snapshot", snap)
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refresh only after something happened; an idle room needs no queries.
	dirty := false

	h.log.Info().Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON.
			c.Writer.Write([]byte("event: update\ndata: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			snap, err := h.snapshot(reqCtx)
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to refresh monitor snapshot")
				continue
			}
			c.SSEvent("snapshot", snap)
			c.Writer.Flush()
			dirty = false

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().Unix()})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) snapshot(parent context.Context) (*service.MonitorSnapshot, error) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()
	return h.monitorService.Snapshot(ctx)
}

// GetSnapshot godoc
// GET /api/v1/admin/monitor/snapshot
// One-shot variant of the stream for clients that cannot hold an SSE connection.
func (h *MonitorHandler) GetSnapshot(c *gin.Context) {
	snap, err := h.snapshot(c.Request.Context())
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, snap)
}
