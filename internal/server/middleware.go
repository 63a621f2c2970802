package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/scrape-jobs/internal/common"
)

const headerRequestID = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = common.NewRequestID()
		}
		c.Writer.Header().Set(headerRequestID, rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

// RequestLogger writes one access log line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http.request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("http.request", attrs...)
		default:
			logger.Debug("http.request", attrs...)
		}
	}
}

// ErrorHandler converts panics into a 500 response.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("http.panic", "path", c.FullPath(), "panic", recovered)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		c.Abort()
	})
}

// abortWithError writes the error body for err using its mapped status.
func abortWithError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	body := gin.H{"error": common.PublicMessage(err)}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body["code"] = appErr.Code
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
	}
	c.AbortWithStatusJSON(status, body)
}
