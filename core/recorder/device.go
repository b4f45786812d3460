package recorder

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

type deviceError struct {
	msg    string
	status string
}

func (e *deviceError) Error() string         { return e.msg }
func (e *deviceError) StatusMessage() string { return e.status }

var (
	ErrPermissionDenied  error = &deviceError{"microphone access denied", "Microphone access was denied."}
	ErrDeviceUnavailable error = &deviceError{"no capture device available", "No microphone available."}
	ErrInvalidState            = errors.New("operation not allowed in the current recorder state")
)

type (
	// Device is a capture device such as a microphone.
	Device interface {
		Open(ctx context.Context) (Capture, error)
	}

	// Capture is an open capture stream. Chunks is closed once the stream ends or Close is called.
	// Close releases the underlying device and must be safe to call more than once.
	Capture interface {
		Chunks() <-chan []byte
		Close() error
	}
)

// ReaderDevice captures from a byte stream (eg. an arecord or ffmpeg pipe) in fixed-size chunks.
type ReaderDevice struct {
	OpenFunc  func() (io.ReadCloser, error)
	ChunkSize int
}

// NewFileDevice streams the file at path as if it were being captured.
func NewFileDevice(path string) *ReaderDevice {
	return &ReaderDevice{
		OpenFunc: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func (d *ReaderDevice) Open(ctx context.Context) (Capture, error) {
	if d.OpenFunc == nil {
		return nil, ErrDeviceUnavailable
	}
	rc, err := d.OpenFunc()
	switch {
	case os.IsPermission(err):
		return nil, ErrPermissionDenied
	case err != nil:
		return nil, errors.Wrap(ErrDeviceUnavailable, err.Error())
	}

	size := d.ChunkSize
	if size <= 0 {
		size = 32 * 1024
	}
	c := &readerCapture{rc: rc, chunks: make(chan []byte), done: make(chan struct{})}
	go c.pump(ctx, size)
	return c, nil
}

type readerCapture struct {
	rc     io.ReadCloser
	chunks chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *readerCapture) Chunks() <-chan []byte { return c.chunks }

func (c *readerCapture) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.rc.Close()
	})
	return err
}

func (c *readerCapture) pump(ctx context.Context, size int) {
	defer close(c.chunks)
	for {
		buf := make([]byte, size)
		n, err := c.rc.Read(buf)
		if n > 0 {
			select {
			case c.chunks <- buf[:n]:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}
