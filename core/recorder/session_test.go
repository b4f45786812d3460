package recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/testutil"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

type fakeCapture struct {
	chunks chan []byte
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (c *fakeCapture) Chunks() <-chan []byte { return c.chunks }
func (c *fakeCapture) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.chunks)
	})
	return nil
}
func (c *fakeCapture) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDevice struct {
	err     error
	capture *fakeCapture
	opened  int
}

func (d *fakeDevice) Open(context.Context) (Capture, error) {
	d.opened++
	if d.err != nil {
		return nil, d.err
	}
	d.capture = &fakeCapture{chunks: make(chan []byte)}
	return d.capture, nil
}

type fakeSender struct {
	mu      sync.Mutex
	err     error
	uploads []AudioUpload
	bodies  [][]byte
}

func (s *fakeSender) SendAudio(_ context.Context, up AudioUpload) error {
	body, err := io.ReadAll(up.File.Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.uploads = append(s.uploads, up)
	s.bodies = append(s.bodies, body)
	return nil
}

type sessionFixture struct {
	session *Session
	device  *fakeDevice
	sender  *fakeSender
	ticker  *fakeTicker
}

func newSessionFixture(t *testing.T) *sessionFixture {
	f := &sessionFixture{
		device: &fakeDevice{},
		sender: &fakeSender{},
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
	f.session = NewSession(Options{
		Device:      f.device,
		Sender:      f.sender,
		Logger:      testutil.NewLogger(),
		MaxFileSize: core.MB,
		TempDir:     t.TempDir(),
		NewTicker:   func(time.Duration) Ticker { return f.ticker },
	})
	t.Cleanup(func() { _ = f.session.Close() })
	return f
}

func (f *sessionFixture) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case f.ticker.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick %d not consumed", i+1)
		}
	}
}

func (f *sessionFixture) record(t *testing.T, data []byte, seconds int) {
	t.Helper()
	require.NoError(t, f.session.Start(context.Background()))
	require.Equal(t, Recording, f.session.State())
	f.device.capture.chunks <- data
	require.Eventually(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return f.session.buf.Len() == len(data)
	}, time.Second, time.Millisecond)
	f.tick(t, seconds)
	require.Eventually(t, func() bool {
		return f.session.Elapsed() == time.Duration(seconds)*time.Second
	}, time.Second, time.Millisecond)
}

func TestSession_recordAndSend(t *testing.T) {
	f := newSessionFixture(t)
	f.record(t, []byte("voice"), 45)

	require.NoError(t, f.session.Stop())
	assert.Equal(t, Previewing, f.session.State())
	assert.True(t, f.device.capture.isClosed())

	art := f.session.Artifact()
	require.NotNil(t, art)
	assert.Equal(t, 45*time.Second, art.Duration)
	assert.Equal(t, "audio/webm", art.MimeType)
	assert.FileExists(t, art.Path)

	f.session.SetCaption("question about week 3")
	require.NoError(t, f.session.Send(context.Background()))

	assert.Equal(t, Idle, f.session.State())
	assert.Empty(t, f.session.Caption())
	assert.Nil(t, f.session.Artifact())
	assert.NoFileExists(t, art.Path)

	require.Len(t, f.sender.uploads, 1)
	up := f.sender.uploads[0]
	assert.Equal(t, "question about week 3", up.Caption)
	assert.Equal(t, 45*time.Second, up.Duration)
	assert.Equal(t, "audio/webm", up.File.MimeType)
	assert.Equal(t, []byte("voice"), f.sender.bodies[0])
}

func TestSession_autoStopsAtMaxDuration(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start(context.Background()))

	f.tick(t, 600)
	require.Eventually(t, func() bool { return f.session.State() == Previewing }, time.Second, time.Millisecond)
	assert.Equal(t, MaxDuration, f.session.Elapsed())
	assert.Equal(t, MaxDuration, f.session.Duration())
	assert.True(t, f.device.capture.isClosed())
	require.NotNil(t, f.session.Artifact())
}

func TestSession_cancel(t *testing.T) {
	t.Run("while recording", func(t *testing.T) {
		f := newSessionFixture(t)
		f.record(t, []byte("abc"), 3)

		require.NoError(t, f.session.Cancel())
		assert.Equal(t, Snapshot{State: Idle}, f.session.Snapshot())
		assert.Nil(t, f.session.Artifact())
		assert.True(t, f.device.capture.isClosed())
	})

	t.Run("while previewing", func(t *testing.T) {
		f := newSessionFixture(t)
		f.record(t, []byte("abc"), 3)
		require.NoError(t, f.session.Stop())
		f.session.SetCaption("hello")
		path := f.session.Artifact().Path

		require.NoError(t, f.session.Cancel())
		assert.Equal(t, Snapshot{State: Idle}, f.session.Snapshot())
		assert.Empty(t, f.session.Caption())
		assert.Nil(t, f.session.Artifact())
		assert.NoFileExists(t, path)
	})

	t.Run("a new recording starts from scratch", func(t *testing.T) {
		f := newSessionFixture(t)
		f.record(t, []byte("abc"), 3)
		require.NoError(t, f.session.Cancel())

		f.ticker = &fakeTicker{ch: make(chan time.Time)}
		f.record(t, []byte("de"), 1)
		require.NoError(t, f.session.Stop())
		data, err := os.ReadFile(f.session.Artifact().Path)
		require.NoError(t, err)
		assert.Equal(t, []byte("de"), data)
	})
}

func TestSession_deviceFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantErr    error
		wantStatus string
	}{
		{name: "permission denied", err: ErrPermissionDenied, wantErr: ErrPermissionDenied, wantStatus: "Microphone access was denied."},
		{name: "no device", err: ErrDeviceUnavailable, wantErr: ErrDeviceUnavailable, wantStatus: "No microphone available."},
		{name: "other failure", err: errors.New("usb unplugged"), wantErr: ErrDeviceUnavailable, wantStatus: "No microphone available."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t)
			f.device.err = tt.err

			err := f.session.Start(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Snapshot{State: Idle, Status: tt.wantStatus}, f.session.Snapshot())

			// the user can try again
			f.device.err = nil
			assert.NoError(t, f.session.Start(context.Background()))
		})
	}
}

func TestSession_invalidTransitions(t *testing.T) {
	f := newSessionFixture(t)
	assert.ErrorIs(t, f.session.Stop(), ErrInvalidState)
	assert.ErrorIs(t, f.session.Send(context.Background()), ErrInvalidState)
	_, err := f.session.Player()
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, f.session.Start(context.Background()))
	assert.ErrorIs(t, f.session.Start(context.Background()), ErrInvalidState)
	assert.ErrorIs(t, f.session.LoadFromFile(attachment.File{Name: "a.wav", MimeType: "audio/wav", Body: strings.NewReader("x")}), ErrInvalidState)
	assert.Equal(t, 1, f.device.opened)
}

func TestSession_sendFailureKeepsPreview(t *testing.T) {
	f := newSessionFixture(t)
	f.record(t, []byte("voice"), 2)
	require.NoError(t, f.session.Stop())
	f.session.SetCaption("take two")
	path := f.session.Artifact().Path

	f.sender.err = &attachment.UploadError{Path: "x", Err: errors.New("quota")}
	err := f.session.Send(context.Background())
	require.Error(t, err)
	assert.Equal(t, Previewing, f.session.State())
	assert.Equal(t, "Upload failed, please try again.", f.session.Status())
	assert.Equal(t, "take two", f.session.Caption())
	assert.FileExists(t, path)

	// retry without re-recording
	f.sender.err = nil
	require.NoError(t, f.session.Send(context.Background()))
	assert.Equal(t, Idle, f.session.State())
	require.Len(t, f.sender.uploads, 1)
	assert.Equal(t, "take two", f.sender.uploads[0].Caption)
}

func TestSession_LoadFromFile(t *testing.T) {
	wav := newWAV(16000, 2*16000*2) // 2s of 16kHz mono 16-bit

	tests := []struct {
		name         string
		file         attachment.File
		wantErr      error
		wantDuration time.Duration
	}{
		{
			name:         "wav with duration",
			file:         attachment.File{Name: "q.wav", MimeType: "audio/wav", Size: int64(len(wav)), Body: bytes.NewReader(wav)},
			wantDuration: 2 * time.Second,
		},
		{
			name: "sniffed when undeclared",
			file: attachment.File{Name: "q.wav", Size: int64(len(wav)), Body: bytes.NewReader(wav)},
			// mimetype reports audio/wav
			wantDuration: 2 * time.Second,
		},
		{
			name: "unknown duration",
			file: attachment.File{Name: "q.webm", MimeType: "audio/webm", Size: 4, Body: strings.NewReader("webm")},
		},
		{
			name:    "not audio",
			file:    attachment.File{Name: "notes.txt", MimeType: "text/plain", Size: 5, Body: strings.NewReader("hello")},
			wantErr: attachment.ErrInvalidFile,
		},
		{
			name:    "declared size over ceiling",
			file:    attachment.File{Name: "big.wav", MimeType: "audio/wav", Size: core.MB + 1, Body: strings.NewReader("x")},
			wantErr: attachment.ErrInvalidFile,
		},
		{
			name:    "actual size over ceiling",
			file:    attachment.File{Name: "big.wav", MimeType: "audio/wav", Body: bytes.NewReader(make([]byte, core.MB+1))},
			wantErr: attachment.ErrInvalidFile,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t)
			err := f.session.LoadFromFile(tt.file)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, Idle, f.session.State())
				assert.Nil(t, f.session.Artifact())
				assert.True(t, strings.HasPrefix(f.session.Status(), "Invalid file"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Previewing, f.session.State())
			assert.Equal(t, tt.wantDuration, f.session.Duration())
			art := f.session.Artifact()
			require.NotNil(t, art)
			assert.Equal(t, tt.file.Name, art.Name)
			assert.Zero(t, f.device.opened)

			p, err := f.session.Player()
			require.NoError(t, err)
			assert.Equal(t, tt.wantDuration, p.Duration())
		})
	}
}

func TestSession_Close(t *testing.T) {
	f := newSessionFixture(t)
	f.record(t, []byte("abc"), 1)

	require.NoError(t, f.session.Close())
	assert.True(t, f.device.capture.isClosed())
	assert.Equal(t, Idle, f.session.State())
	assert.Nil(t, f.session.Artifact())
	require.NoError(t, f.session.Close())
	assert.ErrorIs(t, f.session.Start(context.Background()), ErrInvalidState)
}
