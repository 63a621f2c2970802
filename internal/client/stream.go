package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// Stream is a live progress subscription. Events published before it was opened
// are never delivered; use Get to learn a job's current state.
type Stream struct {
	conn   *websocket.Conn
	events chan entity.ProgressEvent
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Subscribe opens the progress stream. A nil jobID receives events for every job.
func (c *Client) Subscribe(ctx context.Context, jobID uuid.UUID) (*Stream, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if jobID != uuid.Nil {
		u.RawQuery = url.Values{"job_id": {jobID.String()}}.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(resp.Status)}
		}
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	s := &Stream{
		conn:   conn,
		events: make(chan entity.ProgressEvent, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Events is closed when the stream ends. Check Err afterwards.
func (s *Stream) Events() <-chan entity.ProgressEvent { return s.events }

// Err reports why the stream ended: nil after Close, a *TransportError otherwise.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. Safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		var evt entity.ProgressEvent
		if err := s.conn.ReadJSON(&evt); err != nil {
			select {
			case <-s.done:
			default:
				s.fail(err)
			}
			return
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) fail(err error) {
	if websocket.IsCloseError(err, websocket.CloseGoingAway) {
		err = errors.New("server closed the stream")
	}
	s.mu.Lock()
	s.err = &TransportError{Op: "stream", Err: err}
	s.mu.Unlock()
	s.Close()
}
