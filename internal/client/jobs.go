package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

const jobsPath = "/api/scraping/jobs"

// SubmitRequest is the body of a new scrape request.
type SubmitRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Submit creates a job. The returned job is pending; it runs on the server.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	var job entity.Job
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/scraping/start", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Get retrieves a job with its scraped items. Its status is authoritative.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	if err := c.doGetRequest(ctx, jobsPath+"/"+id.String(), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListOptions narrows a job listing.
type ListOptions struct {
	Status       constants.JobStatus
	IncludeItems bool
	Limit        int
}

// List retrieves jobs newest first.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]entity.Job, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status.String())
	}
	if opts.IncludeItems {
		q.Set("include_items", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := jobsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var jobs []entity.Job
	if err := c.doGetRequest(ctx, path, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Export is a downloaded export document.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Export downloads the job's items in the given format.
func (c *Client) Export(ctx context.Context, id uuid.UUID, format constants.ExportFormat) (*Export, error) {
	req, err := c.buildRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s/export/%s", jobsPath, id, format), nil)
	if err != nil {
		return nil, err
	}
	body, header, err := c.send(req)
	if err != nil {
		return nil, err
	}

	out := &Export{ContentType: header.Get("Content-Type"), Data: body}
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		out.Filename = params["filename"]
	}
	if out.Filename == "" {
		out.Filename = fmt.Sprintf("scraping_job_%s.%s", id, format.Ext())
	}
	return out, nil
}
