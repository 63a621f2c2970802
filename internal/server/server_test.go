package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/scrape-jobs/constants"
	"github.com/joseph-ayodele/scrape-jobs/internal/async"
	"github.com/joseph-ayodele/scrape-jobs/internal/common"
	"github.com/joseph-ayodele/scrape-jobs/internal/core"
	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/extract"
	"github.com/joseph-ayodele/scrape-jobs/internal/jobs"
	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
	"github.com/joseph-ayodele/scrape-jobs/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	repo   *repository.MemoryJobRepository
	hub    *notify.Hub
	queue  *async.ProcessorQueue
}

func newFixture(t *testing.T, itemDelay time.Duration) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryJobRepository(logger)
	hub := notify.NewHub(notify.WithLogger(logger))
	proc := core.NewProcessor(logger, repo, extract.NewSampleProducer(extract.WithItemDelay(itemDelay)), hub)
	queue := async.NewProcessorQueue(proc, logger, async.WithWorkers(2))
	svc := jobs.NewService(repo, queue, common.JobsConfig{MinResults: 5, MaxResults: 50, DefaultResults: 15, MaxQueryLength: 500}, logger, jobs.WithPublisher(hub))

	t.Cleanup(func() {
		queue.Shutdown(context.Background())
		hub.Close()
	})
	return &fixture{
		router: NewRouter(Deps{Jobs: svc, Hub: hub, Store: repo, Queue: queue, PingInterval: time.Second, Logger: logger}),
		repo:   repo,
		hub:    hub,
		queue:  queue,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) waitTerminal(t *testing.T, id string) entity.Job {
	t.Helper()
	var job entity.Job
	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/api/scraping/jobs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		job = entity.Job{}
		return json.Unmarshal(w.Body.Bytes(), &job) == nil && job.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRoot(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"AI Web Scraper API","version":"1.0.0"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSubmitAndGet(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/scraping/start", gin.H{"query": "iphone 15", "max_results": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created entity.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, constants.JobStatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)
	assert.Equal(t, "/api/scraping/jobs/"+created.ID.String(), w.Header().Get("Location"))

	job := f.waitTerminal(t, created.ID.String())
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 5, job.ResultsCount)
	assert.Len(t, job.Items, 5)
	assert.Nil(t, job.ErrorMessage)

	w = f.do(t, http.MethodGet, "/jobs/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"scraped_items":[`)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/jobs", gin.H{"query": "", "max_results": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error  string `json:"error"`
		Code   string `json:"code"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, common.CodeValidation, body.Code)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "query", body.Fields[0].Field)

	w = f.do(t, http.MethodPost, "/jobs", gin.H{"query": "q", "max_results": 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/jobs", gin.H{"query": "q", "max_results": "ten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/jobs", nil)
	assert.JSONEq(t, `[]`, w.Body.String(), "rejected submissions create nothing")
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t, 0)
	for _, id := range []string{"5b0c1d8e-9f55-4a8e-9d52-0d4b9a7c2f11", "42"} {
		w := f.do(t, http.MethodGet, "/api/scraping/jobs/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, id)
		assert.Contains(t, w.Body.String(), `"error"`)
	}
}

func TestListJobs(t *testing.T) {
	f := newFixture(t, 0)
	first := f.do(t, http.MethodPost, "/jobs", gin.H{"query": "first", "max_results": 5})
	second := f.do(t, http.MethodPost, "/jobs", gin.H{"query": "second", "max_results": 5})
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)

	var a, b entity.Job
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	f.waitTerminal(t, a.ID.String())
	f.waitTerminal(t, b.ID.String())

	w := f.do(t, http.MethodGet, "/api/scraping/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, b.ID.String(), list[0]["id"], "newest first")
	assert.NotContains(t, list[0], "scraped_items")

	w = f.do(t, http.MethodGet, "/api/scraping/jobs?include_items=true", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Contains(t, list[0], "scraped_items")

	w = f.do(t, http.MethodGet, "/jobs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportJob(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodPost, "/jobs", gin.H{"query": "iphone 15", "max_results": 5})
	require.Equal(t, http.StatusCreated, w.Code)
	var created entity.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	f.waitTerminal(t, created.ID.String())

	w = f.do(t, http.MethodGet, "/api/scraping/jobs/"+created.ID.String()+"/export/csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.ExportCSV.ContentType(), w.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="scraping_job_`+created.ID.String()+`_iphone_15.csv"`,
		w.Header().Get("Content-Disposition"))
	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	assert.Equal(t, []string{"Title", "Description", "URL", "Price", "Rating", "Date"}, rows[0][:6])

	w = f.do(t, http.MethodGet, "/jobs/"+created.ID.String()+"/export/excel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = f.do(t, http.MethodGet, "/jobs/"+created.ID.String()+"/export/pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/jobs/5b0c1d8e-9f55-4a8e-9d52-0d4b9a7c2f11/export/csv", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "hub")
	assert.Contains(t, body, "queue_depth")
}

func TestWebsocketStreamsProgress(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.Stats().Subscribers == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/jobs", "application/json", strings.NewReader(`{"query":"iphone 15","max_results":5}`))
	require.NoError(t, err)
	var created entity.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var events []entity.ProgressEvent
	for {
		var evt entity.ProgressEvent
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, created.ID, evt.JobID)
		events = append(events, evt)
		if evt.Terminal() {
			break
		}
	}
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, constants.JobStatusRunning, events[0].Status)
	assert.Equal(t, constants.JobStatusCompleted, events[len(events)-1].Status)
	assert.Equal(t, 100, events[len(events)-1].Progress)
}

func TestWebsocketSubscribedWhenHandshakeCompletes(t *testing.T) {
	f := newFixture(t, 0)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	id := uuid.New()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?job_id=" + id.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// no waiting: an event published right after the dial returns must arrive
	assert.Equal(t, 1, f.hub.Stats().Subscribers)
	f.hub.Publish(entity.ProgressEvent{JobID: id, Status: constants.JobStatusFailed, Message: "Error: boom", Timestamp: time.Now().UTC()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt entity.ProgressEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, id, evt.JobID)
	assert.Equal(t, constants.JobStatusFailed, evt.Status)
}

func TestWebsocketRejectsBadJobFilter(t *testing.T) {
	f := newFixture(t, 0)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?job_id=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthService(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := NewHealthService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hs.Serve(lis) }()
	defer hs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		res, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && res.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	hs.SetServing(false)
	res, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())
}
