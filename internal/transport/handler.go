package transport

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/specimen-imaging/labelstation/internal/config"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/service"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// PreviewQuality is the JPEG quality of live view previews
const PreviewQuality = 80

// NewHandler builds the control API
func NewHandler(svc service.StationService, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{svc: svc, timeout: cfg.RequestTimeout}

	r.GET("/health", healthCheck)
	r.GET("/session", h.getSession)
	r.PUT("/session", h.updateSession)

	r.GET("/slots", h.listSlots)
	r.POST("/slots/:role/start", h.startSlot)
	r.POST("/slots/:role/stop", h.stopSlot)
	r.GET("/slots/:role/preview.jpg", h.preview)

	r.POST("/capture", h.capture)
	r.GET("/projects/:project/captures", h.captures)

	r.POST("/config/load", h.loadConfig)
	r.POST("/config/save", h.saveConfig)

	r.GET("/activity", h.activity)
	r.GET("/metrics", h.metrics)

	return r
}

type handler struct {
	svc     service.StationService
	timeout time.Duration
}

func (h *handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Session())
}

func (h *handler) updateSession(c *gin.Context) {
	var req models.SessionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	snap, err := h.svc.UpdateSession(req)
	if err != nil {
		respondAppError(c, "cannot update session", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handler) listSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slots": h.svc.Slots()})
}

func (h *handler) startSlot(c *gin.Context) {
	var req models.StartSlotRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	st, err := h.svc.StartSlot(ctx, models.SlotRole(c.Param("role")), req.DeviceID)
	if err != nil {
		respondAppError(c, "cannot start live view", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) stopSlot(c *gin.Context) {
	st, err := h.svc.StopSlot(models.SlotRole(c.Param("role")))
	if err != nil {
		respondAppError(c, "cannot stop live view", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) preview(c *gin.Context) {
	role := models.SlotRole(c.Param("role"))
	if !role.Valid() {
		respondAppError(c, "no preview", apperrors.NewNotFoundError("unknown slot "+string(role), nil))
		return
	}
	p, ok := h.svc.Preview(role)
	if !ok || p.Frame.Empty() {
		c.Status(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.Frame.Image, &jpeg.Options{Quality: PreviewQuality}); err != nil {
		respondAppError(c, "cannot encode preview", apperrors.NewInternalError("preview encode failed", err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Seq", strconv.FormatUint(p.Seq, 10))
	if p.Decode != nil {
		c.Header("X-Decoded-Text", p.Decode.Text)
	}
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

func (h *handler) capture(c *gin.Context) {
	startTime := time.Now()

	var req models.CaptureRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.svc.Capture(ctx, req.Tag, req.Overwrite)
	if err != nil {
		respondAppError(c, "capture failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"accession":          res.Record.AccessionID,
		"path":               res.Record.OutputPath,
		"warnings":           len(res.Warnings),
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Capture request completed")

	c.JSON(http.StatusCreated, res)
}

func (h *handler) captures(c *gin.Context) {
	rows, err := h.svc.Captures(c.Param("project"))
	if err != nil {
		respondAppError(c, "cannot list captures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"captures": rows})
}

func (h *handler) loadConfig(c *gin.Context) {
	var req models.ConfigLoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	pc, err := h.svc.LoadProjectConfig(req.Path)
	if err != nil {
		respondAppError(c, "cannot load project config", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": pc.General, "session": h.svc.Session()})
}

func (h *handler) saveConfig(c *gin.Context) {
	path, err := h.svc.SaveProjectConfig()
	if err != nil {
		respondAppError(c, "cannot save project config", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (h *handler) activity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.svc.Activity()})
}

func (h *handler) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Metrics())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondAppError(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Code:    string(apperrors.CodeOf(err)),
		Message: message + ": " + err.Error(),
	})
}
