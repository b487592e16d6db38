package api

import (
	"log/slog"
	"net/http"
	"time"

	"allocation/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NewRouter builds the gin engine for svc, including /metrics and /healthz.
func NewRouter(svc *service.AllocationService, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	h := NewHandler(svc)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/batches", h.AddBatch)
		v1.GET("/batches", h.ListBatches)
		v1.GET("/batches/:ref", h.GetBatch)
		v1.POST("/allocate", h.Allocate)
		v1.POST("/deallocate", h.Deallocate)
	}
	router.GET("/metrics", gin.WrapH(svc.Metrics().Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// requestLogger tags each request with an X-Request-ID and logs it when done.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	}
}
