package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts an observer server for the given hub. It returns a
// function that dials new observers and a function that tears the server
// down.
func NewTestingEnv(t *testing.T, o *Observers) (func(clientID string) *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(o.Handler(ctx))

	var conns []*websocket.Conn
	dial := func(clientID string) *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		if clientID != "" {
			config.Header.Set(HeaderClientID, clientID)
		}

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		mutex.Lock()
		conns = append(conns, conn)
		mutex.Unlock()
		return conn
	}

	return dial, func() {
		mutex.Lock()
		for _, conn := range conns {
			conn.Close()
		}
		logger = nil
		mutex.Unlock()

		cancel()
		server.Close()
	}
}

// ReceiveFrame reads and decodes the next frame sent to an observer.
func ReceiveFrame(conn *websocket.Conn, timeout time.Duration) (Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}

	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Frame{}, err
	}
	return DecodeFrame(b)
}
