package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// Receiver reads the next message of a connection and returns its size.
type Receiver func() (int, error)

// Sender writes a binary frame to a connection and returns the number of
// bytes sent.
type Sender func(frame []byte) (int, error)

// Handler represents an observer connection handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a receiver used to drain incoming messages.
	Receiver() Receiver

	// Creates a sender used to push frames to the client.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	GetClientID() string
}

// Handle streams the given frames to the connection until the context is
// canceled, the frame channel is closed or the connection fails.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler, frames <-chan []byte) {
	handler := handler{
		Conn:    conn,
		Handler: h,
		frames:  frames,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The observer handler.
	Handler Handler

	frames         <-chan []byte
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sender = h.Handler.Sender()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			cancel()
		}
	}

	wg.Wait()
}

func (h *handler) startSending(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-h.frames:
			if !ok {
				h.disconnect(errors.New("observer stream closed"))
				return
			}

			if _, err := h.sender(frame); err != nil {
				h.disconnect(errors.New("sending frame failed").Wrap(err))
				return
			}
		}
	}
}

// Observers are not expected to talk. Reading is what detects a closed
// connection.
func (h *handler) startReceiving(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := h.receiver(); err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}
	}
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

// ObserverHandler is the base handler of an observer connection.
type ObserverHandler struct {
	ClientID string

	conn *websocket.Conn
}

func (h *ObserverHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
}

func (h *ObserverHandler) HandleDisconnect(error) {
}

func (h *ObserverHandler) Receiver() Receiver {
	return func() (int, error) {
		var msg []byte
		if err := websocket.Message.Receive(h.conn, &msg); err != nil {
			return 0, err
		}
		return len(msg), nil
	}
}

func (h *ObserverHandler) Sender() Sender {
	return func(frame []byte) (int, error) {
		if err := websocket.Message.Send(h.conn, frame); err != nil {
			return 0, err
		}
		return len(frame), nil
	}
}

func (h *ObserverHandler) Close() {
}

func (h *ObserverHandler) GetClientID() string {
	return h.ClientID
}
