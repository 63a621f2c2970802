package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/scrape-jobs/internal/jobs"
	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

// Deps are the process-scoped components the HTTP gateway fronts.
type Deps struct {
	Jobs          *jobs.Service
	Hub           *notify.Hub
	Store         repository.JobRepository
	Queue         QueueDepth
	PingInterval  time.Duration
	HealthTimeout time.Duration
	Logger        *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.HealthTimeout <= 0 {
		d.HealthTimeout = 2 * time.Second
	}

	router := gin.New()

	// Middleware
	router.Use(RequestID())
	router.Use(RequestLogger(d.Logger))
	router.Use(ErrorHandler(d.Logger))

	router.GET("/", Root)
	router.GET("/health", Health(d.Store, d.Hub, d.Queue, d.HealthTimeout, d.Logger))
	router.GET("/ws", ServeWS(d.Hub, d.PingInterval, d.Logger))

	// Scraping routes
	scraping := router.Group("/api/scraping")
	{
		scraping.POST("/start", SubmitJob(d.Jobs))
		scraping.GET("/jobs", ListJobs(d.Jobs))
		scraping.GET("/jobs/:id", GetJob(d.Jobs))
		scraping.GET("/jobs/:id/export/:format", ExportJob(d.Jobs))
	}

	// Resource-style aliases
	jobsGroup := router.Group("/jobs")
	{
		jobsGroup.POST("", SubmitJob(d.Jobs))
		jobsGroup.GET("", ListJobs(d.Jobs))
		jobsGroup.GET("/:id", GetJob(d.Jobs))
		jobsGroup.GET("/:id/export/:format", ExportJob(d.Jobs))
	}

	return router
}
