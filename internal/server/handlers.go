package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/jobs"
)

const (
	apiName    = "AI Web Scraper API"
	apiVersion = "1.0.0"
)

// Root describes the service.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": apiName, "version": apiVersion})
}

// SubmitJob creates a scrape job and returns it before it runs.
func SubmitJob(svc *jobs.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req jobs.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with query and max_results"})
			return
		}

		job, err := svc.Submit(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header("Location", fmt.Sprintf("/api/scraping/jobs/%s", job.ID))
		c.JSON(http.StatusCreated, job)
	}
}

// ListJobs lists jobs newest first.
func ListJobs(svc *jobs.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeItems, _ := strconv.ParseBool(c.Query("include_items"))
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
		if err != nil || limit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}

		list, err := svc.List(c.Request.Context(), jobs.ListRequest{
			Status:       c.Query("status"),
			IncludeItems: includeItems,
			Limit:        limit,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		out := make([]entity.JobSummary, 0, len(list))
		for _, j := range list {
			if includeItems {
				out = append(out, j.WithItems())
			} else {
				out = append(out, j.Summary())
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

// GetJob returns one job with its scraped items.
func GetJob(svc *jobs.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if job.Items == nil {
			job.Items = []entity.ResultItem{}
		}
		c.JSON(http.StatusOK, job)
	}
}

// ExportJob streams the job's items as a csv or excel download.
func ExportJob(svc *jobs.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Export(c.Request.Context(), c.Param("id"), c.Param("format"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		c.Data(http.StatusOK, res.ContentType, res.Data)
	}
}

