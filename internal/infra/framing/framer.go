// Package framing splits the newline-delimited JSON-RPC byte stream into
// discrete messages and serializes messages back to wire-exact bytes.
package framing

import (
	"bytes"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// FrameError reports a single undecodable frame. The framer drops the unit
// and keeps decoding subsequent frames; the error never desynchronizes the
// stream.
type FrameError struct {
	Unit []byte
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("drop malformed frame (%d bytes): %v", len(e.Unit), e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Decoder accumulates raw bytes as they arrive, in arbitrary chunk sizes,
// and yields complete decoded messages. It never blocks: when no complete
// frame is buffered, Next returns (nil, nil).
type Decoder struct {
	buf        bytes.Buffer
	maxFrame   int
	discarding bool
}

func NewDecoder(maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = domain.DefaultMaxFrameSize
	}
	return &Decoder{maxFrame: maxFrame}
}

// Feed appends a chunk of raw bytes. Chunk boundaries carry no meaning: a
// chunk may end mid-message or contain several messages.
func (d *Decoder) Feed(p []byte) {
	d.buf.Write(p)
}

// Next returns the next complete message, a *FrameError for a dropped unit,
// or (nil, nil) when the buffer holds no complete frame yet. Callers loop
// until (nil, nil).
func (d *Decoder) Next() (jsonrpc.Message, error) {
	for {
		data := d.buf.Bytes()

		if d.discarding {
			idx := bytes.IndexByte(data, '\n')
			if idx < 0 {
				d.buf.Reset()
				return nil, nil
			}
			d.buf.Next(idx + 1)
			d.discarding = false
			continue
		}

		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			if d.buf.Len() > d.maxFrame {
				d.discarding = true
				overflow := d.buf.Len()
				d.buf.Reset()
				return nil, &FrameError{Err: fmt.Errorf("%w: %d buffered bytes without delimiter", domain.ErrFrameTooLarge, overflow)}
			}
			return nil, nil
		}

		// A complete unit over the limit is dropped too, even when its
		// delimiter arrived in the same chunk as the unit itself.
		if idx > d.maxFrame {
			d.buf.Next(idx + 1)
			return nil, &FrameError{Err: fmt.Errorf("%w: %d byte frame", domain.ErrFrameTooLarge, idx)}
		}

		line := bytes.TrimSpace(data[:idx])
		unit := append([]byte(nil), line...)
		d.buf.Next(idx + 1)

		if len(unit) == 0 {
			continue
		}

		msg, err := jsonrpc.DecodeMessage(unit)
		if err != nil {
			return nil, &FrameError{Unit: unit, Err: err}
		}
		return msg, nil
	}
}

// Encode is the exact inverse of decoding: the wire bytes of msg followed by
// the frame delimiter.
func Encode(msg jsonrpc.Message) ([]byte, error) {
	wire, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := make([]byte, 0, len(wire)+1)
	out = append(out, wire...)
	out = append(out, '\n')
	return out, nil
}
