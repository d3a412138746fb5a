package websocket

import (
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ErrTypeFrameEncoding = "frame_encoding"
	ErrTypeFrameDecoding = "frame_decoding"
)

type FrameType string

const (
	// Sent once, right after an observer connects.
	FrameTypeHello FrameType = "hello"

	// Sent for every completed simulation tick.
	FrameTypeReport FrameType = "report"
)

// Frame is a binary message sent to observers.
type Frame struct {
	Type   FrameType          `msgpack:"type"`
	RunID  string             `msgpack:"run_id"`
	Report *simulation.Report `msgpack:"report,omitempty"`
}

func EncodeFrame(f Frame) ([]byte, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return nil, errors.New("encoding frame failed").
			WithType(ErrTypeFrameEncoding).
			WithTag("frame_type", f.Type).
			Wrap(err)
	}
	return b, nil
}

func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(b, &f); err != nil {
		return Frame{}, errors.New("decoding frame failed").
			WithType(ErrTypeFrameDecoding).
			WithTag("size", len(b)).
			Wrap(err)
	}
	return f, nil
}
