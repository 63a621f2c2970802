package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
	"github.com/joseph-ayodele/scrape-jobs/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS pushes progress events to a websocket client until either side closes.
// Events published from the start of the handshake on are delivered; there is no replay.
// An optional job_id query parameter limits the stream to one job.
func ServeWS(hub *notify.Hub, pingInterval time.Duration, logger *slog.Logger) gin.HandlerFunc {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return func(c *gin.Context) {
		var opts []notify.SubscribeOption
		if raw := c.Query("job_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "job_id must be a UUID"})
				return
			}
			opts = append(opts, notify.ForJob(id))
		}

		// subscribe first so nothing published during the handshake is lost
		sub := hub.Subscribe(opts...)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			sub.Close()
			logger.Warn("ws.upgrade.failed", "error", err)
			return
		}
		logger.Info("ws.connected", "remote", c.ClientIP(), "job_id", sub.JobID())

		ctx, cancel := context.WithCancel(context.Background())
		go readPump(conn, pingInterval, cancel)
		writePump(ctx, conn, sub, pingInterval, logger)

		cancel()
		sub.Close()
		_ = conn.Close()
		logger.Info("ws.disconnected", "remote", c.ClientIP(), "dropped", sub.Dropped())
	}
}

// readPump discards client payloads and tracks pong deadlines. It cancels ctx when
// the client goes away.
func readPump(conn *websocket.Conn, pingInterval time.Duration, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	deadline := pingInterval + pingInterval/2
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer. A feeder goroutine turns the pull-based
// subscription into a channel so pings can interleave with events.
func writePump(ctx context.Context, conn *websocket.Conn, sub *notify.Subscription, pingInterval time.Duration, logger *slog.Logger) {
	events := make(chan entity.ProgressEvent)
	go func() {
		defer close(events)
		for {
			evt, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(writeWait))
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				logger.Debug("ws.write.failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("ws.ping.failed", "error", err)
				return
			}
		}
	}
}
