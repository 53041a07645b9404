package capture

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileCapture appends events to a file. It is safe for concurrent use.
type FileCapture struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileCapture opens path for appending, creating it with mode 0644.
func NewFileCapture(path string) (*FileCapture, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileCapture{file: f, encoder: NewEncoder(f)}, nil
}

// Log writes an event. Encoding errors are dropped so capture never
// disrupts the connection; events after Close are ignored.
func (c *FileCapture) Log(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	_ = c.encoder.Encode(event)
}

// Close closes the file. It is safe to call Close multiple times.
func (c *FileCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

var _ Logger = (*FileCapture)(nil)

// Reader streams events from a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
}

// NewReader opens a capture file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f)}, nil
}

// Next returns the next event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.decoder.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, err
	}
	return event, nil
}

// ReadAll returns all remaining events.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
