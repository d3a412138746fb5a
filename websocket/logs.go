package websocket

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	clientIDTag = "client_id"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
	}

	if summaryInterval > 0 {
		go handler.startSummaryWorker(ctx)
	}
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request
	connectedAt     time.Time

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	sentFrames         int
	sentBytes          int
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	h.originalRequest = conn.Request()
	h.connectedAt = time.Now()

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("http_headers", struct {
			UserAgent     string `json:"user_agent,omitempty"`
			XForwardedFor string `json:"x_forwarded_for,omitempty"`
		}{
			UserAgent:     h.originalRequest.UserAgent(),
			XForwardedFor: h.originalRequest.Header.Get("X-Forwarded-For"),
		}).
		Info("new observer is connected")
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("connection_duration", time.Since(h.connectedAt))
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("observer disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (int, error) {
		n, err := receive()
		if err != nil && !isClosedConnError(err) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("size", n).
				Debug("unexpected message from observer ignored")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	send := h.Handler.Sender()

	return func(frame []byte) (int, error) {
		n, err := send(frame)
		if err != nil && !isClosedConnError(err) {
			logs.WithTag(clientIDTag, h.GetClientID()).
				WithTag("size", len(frame)).
				Error(errors.New("sending frame failed").Wrap(err))
		} else if err == nil {
			h.incCounter(n)
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(n int) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.sentFrames++
	h.sentBytes += n
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if h.sentFrames == 0 {
		return
	}

	logs.WithTag(clientIDTag, h.GetClientID()).
		WithTag("time_interval", h.summaryInterval).
		WithTag("sent_frames", h.sentFrames).
		WithTag("sent_bytes", h.sentBytes).
		Info("outbound frame summary")

	h.sentFrames = 0
	h.sentBytes = 0
}

func isClosedConnError(err error) bool {
	return err == io.EOF ||
		strings.Contains(err.Error(), "use of closed network connection")
}
