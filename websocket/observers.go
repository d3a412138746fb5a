package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header an observer can use to identify itself.
	HeaderClientID = "X-Contagion-Client-ID"

	defaultBufferSize = 32
)

// Observers streams simulation reports to the connected observers.
//
// Each observer gets its own buffered frame channel. A frame published while
// an observer buffer is full is dropped for that observer only, which keeps
// the simulation loop from ever waiting on a slow client.
type Observers struct {
	RunID string

	// The number of frames buffered per observer. The hello frame and the
	// latest report take the first slots.
	BufferSize int

	// The duration between each log summary by connection.
	LogSummaryInterval time.Duration

	mutex   sync.RWMutex
	clients map[string]chan []byte
	latest  []byte
	closed  bool
}

// Publish encodes the report once and queues it for every observer.
func (o *Observers) Publish(r simulation.Report) error {
	frame, err := EncodeFrame(Frame{
		Type:   FrameTypeReport,
		RunID:  o.RunID,
		Report: &r,
	})
	if err != nil {
		return errors.New("publishing report failed").
			WithType(errors.Type(err)).
			WithTag("time", r.Time).
			Wrap(err)
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.latest = frame
	for clientID, c := range o.clients {
		select {
		case c <- frame:
		default:
			instrumentDroppedFrame()
			logs.WithTag(clientIDTag, clientID).
				WithTag("time", r.Time).
				Debug("observer buffer is full, frame dropped")
		}
	}
	return nil
}

// HandleReport publishes the report and logs failures. It is meant to be
// registered with simulation.Runner.HandleReport.
func (o *Observers) HandleReport(r simulation.Report) {
	if err := o.Publish(r); err != nil {
		logs.Warn(err)
	}
}

// Subscribe registers an observer. The returned channel first yields a hello
// frame and the latest report, when there is one. Subscribing again with the
// same client id closes the channel of the previous subscription.
func (o *Observers) Subscribe(clientID string) (<-chan []byte, func(), error) {
	hello, err := EncodeFrame(Frame{
		Type:  FrameTypeHello,
		RunID: o.RunID,
	})
	if err != nil {
		return nil, nil, err
	}

	bufferSize := o.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	c := make(chan []byte, max(bufferSize, 2))

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.closed {
		close(c)
		return c, func() {}, nil
	}

	if o.clients == nil {
		o.clients = make(map[string]chan []byte)
	}
	if previous, ok := o.clients[clientID]; ok {
		close(previous)
	}
	o.clients[clientID] = c

	c <- hello
	if o.latest != nil {
		c <- o.latest
	}

	return c, func() {
		o.mutex.Lock()
		defer o.mutex.Unlock()

		if current, ok := o.clients[clientID]; ok && current == c {
			delete(o.clients, clientID)
			close(c)
		}
	}, nil
}

// Len returns the number of connected observers.
func (o *Observers) Len() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return len(o.clients)
}

// Close disconnects all the observers.
func (o *Observers) Close() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for clientID, c := range o.clients {
		close(c)
		delete(o.clients, clientID)
	}
	o.closed = true
}

// Handler returns the websocket server observers connect to.
func (o *Observers) Handler(ctx context.Context) websocket.Server {
	return websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			clientID := conn.Request().Header.Get(HeaderClientID)
			if clientID == "" {
				clientID = uuid.NewString()
			}

			frames, unsubscribe, err := o.Subscribe(clientID)
			if err != nil {
				logs.WithTag(clientIDTag, clientID).Error(err)
				return
			}
			defer unsubscribe()

			var h Handler = &ObserverHandler{ClientID: clientID}
			h = HandlerWithLogs(h, o.LogSummaryInterval)
			h = HandlerWithMetrics(h)
			defer h.Close()

			Handle(ctx, conn, h, frames)
		},
	}
}
