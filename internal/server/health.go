package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

// QueueDepth reports how many jobs wait for a worker.
type QueueDepth interface {
	Depth() int
}

// Health pings the job store and reports hub and queue statistics.
func Health(store repository.JobRepository, hub *notify.Hub, queue QueueDepth, timeout time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"hub": hub.Stats()}
		if queue != nil {
			body["queue_depth"] = queue.Depth()
		}

		if err := repository.HealthCheck(c.Request.Context(), store, timeout, logger); err != nil {
			body["status"] = "unavailable"
			body["store"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ok"
		body["store"] = "ok"
		c.JSON(http.StatusOK, body)
	}
}
