package framing

import (
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// Writer serializes messages onto a byte stream. Both proxy directions may
// write blocked-call results to the client stream, so writes are serialized
// under a mutex.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	maxFrame int
}

func NewWriter(w io.Writer, maxFrame int) *Writer {
	if maxFrame <= 0 {
		maxFrame = domain.DefaultMaxFrameSize
	}
	return &Writer{w: w, maxFrame: maxFrame}
}

// WriteMessage frames and writes one message atomically.
func (w *Writer) WriteMessage(msg jsonrpc.Message) error {
	wire, err := Encode(msg)
	if err != nil {
		return err
	}
	return w.WriteFrame(wire)
}

// WriteFrame writes pre-framed wire bytes atomically.
func (w *Writer) WriteFrame(wire []byte) error {
	if len(wire) > w.maxFrame {
		return fmt.Errorf("%w: %d bytes", domain.ErrFrameTooLarge, len(wire))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(wire); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
