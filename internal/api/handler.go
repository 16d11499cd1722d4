package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/ingestion"
	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

// SensorStore is the read side of the ingestion manager.
type SensorStore interface {
	Entities() []models.Entity
	Entity(id string) (models.Entity, bool)
	Snapshot(id string) (*models.Snapshot, bool)
	Ready() bool
}

type Handler struct {
	sensors     SensorStore
	history     repository.HistoryRepository
	broadcaster *broadcast.Broadcaster
}

// NewHandler wires the API. history and broadcaster may be nil when the
// archive or event stream is disabled.
func NewHandler(sensors SensorStore, history repository.HistoryRepository, broadcaster *broadcast.Broadcaster) *Handler {
	return &Handler{
		sensors:     sensors,
		history:     history,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/readyz", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/sensors", h.listSensors)
	r.GET("/api/sensors/:id", h.getSensor)
	r.GET("/api/sensors/:id/alerts", h.getAlerts)
	r.GET("/api/sensors/:id/events", h.streamEvents)
	r.GET("/api/history", h.getHistory)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	if !h.sensors.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) listSensors(c *gin.Context) {
	c.JSON(http.StatusOK, h.sensors.Entities())
}

func (h *Handler) getSensor(c *gin.Context) {
	entity, ok := h.sensors.Entity(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Handler) getAlerts(c *gin.Context) {
	snap, ok := h.sensors.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}

	alerts := []models.Alert{}
	if snap != nil {
		alerts = snap.Alerts
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// streamEvents sends the sensor's current snapshot, then every new one, as
// server-sent "snapshot" events until the client goes away.
func (h *Handler) streamEvents(c *gin.Context) {
	id := c.Param("id")
	current, ok := h.sensors.Snapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream disabled"})
		return
	}

	subID, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(subID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if current != nil {
		c.SSEvent("snapshot", current)
	}
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if ingestion.SensorID(snap.FeedID) != id {
				continue
			}
			c.SSEvent("snapshot", snap)
			c.Writer.Flush()
		}
	}
}

func (h *Handler) getHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert history disabled"})
		return
	}

	filter := repository.Filter{
		Limit: 20, // Default to 20 alerts if limit param not supplied
	}

	if z := c.Query("zone"); z != "" {
		filter.FeedID = strings.ToUpper(z)
	}
	if s := c.Query("severity"); s != "" {
		filter.Severity = s
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	records, err := h.history.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alert history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(records),
		"alerts": records,
	})
}
