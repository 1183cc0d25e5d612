package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"parkvision-service/internal/observability"
	"parkvision-service/internal/service"
)

const streamBoundary = "frame"

type Handler struct {
	occupancyService *service.OccupancyService
	streamInterval   time.Duration
	metrics          *observability.Metrics
	registry         *prometheus.Registry
	log              zerolog.Logger
}

func NewHandler(
	occupancyService *service.OccupancyService,
	streamInterval time.Duration,
	metrics *observability.Metrics,
	registry *prometheus.Registry,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		occupancyService: occupancyService,
		streamInterval:   streamInterval,
		metrics:          metrics,
		registry:         registry,
		log:              log,
	}
}

// NewRouter builds the gin engine with CORS and all routes registered.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	h.Register(r)
	return r
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/video_feed", h.videoFeed)
	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.GET("/zones", h.listZones)
		api.GET("/events", h.listEvents)
		api.GET("/stats", h.stats)
	}
}

// videoFeed serves the latest annotated frame as a multipart MJPEG stream at
// a fixed minimum interval, until the client disconnects. Viewers only read
// published state; they never touch the ingestion path.
func (h *Handler) videoFeed(c *gin.Context) {
	h.metrics.ConnectedViewers.Inc()
	defer h.metrics.ConnectedViewers.Dec()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	c.Header("Cache-Control", "no-cache")

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, _ := h.occupancyService.LatestFrame()
			if err := writePart(c.Writer, frame); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writePart(w io.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func (h *Handler) listZones(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.occupancyService.CurrentZones()))
}

func (h *Handler) listEvents(c *gin.Context) {
	var zone *string
	if z := strings.TrimSpace(c.Query("zone")); z != "" {
		zone = &z
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.occupancyService.FindEvents(c.Request.Context(), zone, from, to, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to find events")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.occupancyService.Stats(c.Request.Context())))
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
