package knxip

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// StreamReader reads KNXnet/IP frames from a TCP stream, using the header
// total length for framing.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader creates a new stream reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// Read reads exactly one frame and returns its bytes. io.EOF is returned
// unwrapped when the stream ends between frames.
func (sr *StreamReader) Read() ([]byte, error) {
	var hdr [HeaderLength]byte
	if _, err := io.ReadFull(sr.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}
	var h Header
	if err := h.Decode(hdr[:]); err != nil {
		return nil, err
	}
	frame := make([]byte, h.TotalLength)
	copy(frame, hdr[:])
	if _, err := io.ReadFull(sr.r, frame[HeaderLength:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamReadFailed, err)
	}
	return frame, nil
}

// ReadFrame reads and decodes one frame.
func (sr *StreamReader) ReadFrame() (Frame, error) {
	data, err := sr.Read()
	if err != nil {
		return Frame{}, err
	}
	f, _, err := Parse(data)
	return f, err
}

// StreamWriter writes whole frames to a stream. It is safe for concurrent
// use; frames are never interleaved.
type StreamWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamWriter creates a new stream writer.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Write writes an already encoded frame.
func (sw *StreamWriter) Write(frame []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(frame)
}

// WriteFrame encodes and writes f.
func (sw *StreamWriter) WriteFrame(f Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = sw.Write(data)
	return err
}
