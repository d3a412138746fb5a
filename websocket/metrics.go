package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel = "error_type"
)

var (
	wsConnectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_observers",
		Help: "The number of connected observers.",
	})

	wsReceivedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_received_bytes",
		Help: "The number of bytes received from observer connections.",
	})

	wsReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_receive_errors",
		Help: "The errors that occured while receiving a websocket message.",
	}, []string{
		errTypeLabel,
	})

	wsSentFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_sent_frames",
		Help: "The number of frames sent to observer connections.",
	})

	wsSentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to observer connections.",
	})

	wsSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a frame.",
	}, []string{
		errTypeLabel,
	})

	wsDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_frames",
		Help: "The number of frames dropped because an observer buffer was full.",
	})
)

func HandlerWithMetrics(h Handler) Handler {
	return &handlerWithMetrics{
		Handler: h,
	}
}

type handlerWithMetrics struct {
	Handler
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	wsConnectedObservers.Inc()
	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedObservers.Dec()
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (int, error) {
		n, err := receive()
		if err != nil {
			wsReceiveErrors.
				With(prometheus.Labels{
					errTypeLabel: errors.Type(err),
				}).
				Inc()
		}

		if n != 0 {
			wsReceivedBytes.Add(float64(n))
		}
		return n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	send := h.Handler.Sender()

	return func(frame []byte) (int, error) {
		n, err := send(frame)
		if err != nil {
			wsSendErrors.
				With(prometheus.Labels{
					errTypeLabel: errors.Type(err),
				}).
				Inc()
		}

		if n != 0 {
			wsSentFrames.Inc()
			wsSentBytes.Add(float64(n))
		}
		return n, err
	}
}

func instrumentDroppedFrame() {
	wsDroppedFrames.Inc()
}
