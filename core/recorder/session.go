package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

type (
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	// AudioUpload is what a session hands over to its Sender.
	AudioUpload struct {
		File     attachment.File
		Duration time.Duration
		Caption  string
	}

	Sender interface {
		SendAudio(ctx context.Context, upload AudioUpload) error
	}

	// Artifact is the finalized recording (or loaded file) kept in a local temporary file until it
	// is sent or discarded.
	Artifact struct {
		Path     string
		Name     string
		MimeType string
		Size     int64
		Duration time.Duration
	}

	Options struct {
		Device      Device
		Sender      Sender
		Logger      core.Logger
		MimeType    string // of captured audio; defaults to audio/webm
		MaxFileSize int64  // ceiling for recordings and loaded files
		Prober      DurationProber
		TempDir     string
		NewTicker   func(d time.Duration) Ticker
	}

	Session struct {
		mu   sync.Mutex
		opts Options

		snap      Snapshot
		gen       int
		capture   Capture
		timerDone chan struct{}
		buf       bytes.Buffer
		artifact  *Artifact
		player    *Player
		caption   string
		closed    bool
	}
)

func NewSession(opts Options) *Session {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Sender, "Sender"),
		vala.IsNotNil(opts.Logger, "Logger"),
	).CheckAndPanic()

	if opts.MimeType == "" {
		opts.MimeType = "audio/webm"
	}
	if opts.Prober == nil {
		opts.Prober = WAVProber
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	return &Session{opts: opts}
}

// Start acquires the capture device and begins recording.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.snap.State != Idle || s.snap.Acquiring {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.gen++
	gen := s.gen
	s.dispatch(Start{})
	s.mu.Unlock()

	var capture Capture
	err := ErrDeviceUnavailable
	if s.opts.Device != nil {
		capture, err = s.opts.Device.Open(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrDeviceUnavailable) {
			err = errors.Wrap(ErrDeviceUnavailable, err.Error())
		}
		if s.gen == gen {
			s.dispatch(DeviceFailed{Err: err})
		}
		return err
	}
	if s.closed || s.gen != gen || !s.snap.Acquiring {
		// cancelled while the device was being acquired
		_ = capture.Close()
		return ErrInvalidState
	}
	s.capture = capture
	s.dispatch(DeviceReady{})
	go s.pump(capture, gen)
	return nil
}

// Stop ends the recording and finalizes the artifact for preview.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State != Recording {
		return ErrInvalidState
	}
	return s.dispatch(Stop{})
}

// Cancel discards everything captured so far. It is not allowed while an upload is in flight.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State == Uploading {
		return ErrInvalidState
	}
	s.caption = ""
	return s.dispatch(Cancel{})
}

// LoadFromFile previews a pre-recorded audio file instead of a live capture.
func (s *Session) LoadFromFile(f attachment.File) error {
	s.mu.Lock()
	if s.closed || s.snap.State != Idle || s.snap.Acquiring {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.mu.Unlock()

	art, err := s.loadArtifact(f)
	if err != nil {
		s.mu.Lock()
		s.snap.Status = core.StatusMessage(err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.snap.State != Idle || s.snap.Acquiring {
		removeArtifact(art)
		return ErrInvalidState
	}
	s.revoke()
	s.artifact = art
	s.player = NewPlayer(art.Duration)
	return s.dispatch(FileLoaded{Duration: art.Duration})
}

func (s *Session) loadArtifact(f attachment.File) (*Artifact, error) {
	if f.Body != nil && !attachment.HasPrefix(f.MimeType, "audio/") {
		mtype, body, err := attachment.Sniff(f.Body)
		if err != nil {
			return nil, &attachment.InvalidFileError{Reason: "unreadable file"}
		}
		if attachment.HasPrefix(mtype, "audio/") {
			f.MimeType = mtype
		}
		f.Body = body
	}
	rule := attachment.Rule{MaxSize: s.opts.MaxFileSize, Accept: []string{"audio/"}}
	f, err := rule.Check(f)
	if err != nil {
		return nil, err
	}

	art, err := s.writeArtifact(f.Body, f.MimeType)
	if err != nil {
		return nil, err
	}
	if f.Name != "" {
		art.Name = filepath.Base(f.Name)
	}

	file, err := os.Open(art.Path)
	if err != nil {
		removeArtifact(art)
		return nil, errors.Wrap(err, "opening artifact")
	}
	defer file.Close()
	if art.Duration, err = s.opts.Prober.Probe(file, art.MimeType); err != nil {
		s.opts.Logger.Warn(fmt.Sprintf("probing audio duration: %v", err), err)
		art.Duration = 0
	}
	return art, nil
}

func (s *Session) SetCaption(caption string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caption = caption
}

func (s *Session) Caption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// Send uploads the previewed artifact. On failure the session stays in Previewing with the artifact
// intact so the user can retry.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	if s.snap.State != Previewing || s.artifact == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.dispatch(Send{})
	art := *s.artifact
	caption := s.caption
	s.mu.Unlock()

	err := s.upload(ctx, art, caption)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return err
	}
	if err != nil {
		s.dispatch(SendFailed{Err: err})
		return err
	}
	s.caption = ""
	return s.dispatch(SendSucceeded{})
}

func (s *Session) upload(ctx context.Context, art Artifact, caption string) error {
	file, err := os.Open(art.Path)
	if err != nil {
		return errors.Wrap(err, "opening artifact")
	}
	defer file.Close()

	return s.opts.Sender.SendAudio(ctx, AudioUpload{
		File: attachment.File{
			Name:     art.Name,
			MimeType: art.MimeType,
			Size:     art.Size,
			Body:     file,
		},
		Duration: art.Duration,
		Caption:  caption,
	})
}

// Close releases the device and the local artifact whatever the current state. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopTimer()
	s.releaseDevice()
	s.revoke()
	s.caption = ""
	s.snap = Snapshot{State: Idle}
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) State() State            { return s.Snapshot().State }
func (s *Session) Status() string          { return s.Snapshot().Status }
func (s *Session) Elapsed() time.Duration  { return s.Snapshot().Elapsed }
func (s *Session) Duration() time.Duration { return s.Snapshot().Duration }

// Artifact returns a copy of the current artifact, or nil.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return nil
	}
	art := *s.artifact
	return &art
}

// Player returns the playback controls of the previewed artifact.
func (s *Session) Player() (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State != Previewing || s.player == nil {
		return nil, ErrInvalidState
	}
	return s.player, nil
}

// dispatch runs the state machine and applies its effects. Callers hold s.mu.
func (s *Session) dispatch(ev Event) error {
	if c, ok := ev.(Chunk); ok && s.snap.State == Recording {
		s.buf.Write(c.Data)
	}

	next, effects := Transition(s.snap, ev)
	s.snap = next

	var err error
	for _, eff := range effects {
		switch eff {
		case ReleaseDevice:
			s.releaseDevice()
		case StartTimer:
			s.startTimer()
		case StopTimer:
			s.stopTimer()
		case Finalize:
			if err = s.finalize(); err != nil {
				s.opts.Logger.Error(fmt.Sprintf("finalizing recording: %v", err), err)
				s.revoke()
				s.snap = Snapshot{State: Idle, Status: core.StatusMessage(err)}
			}
		case Revoke:
			s.revoke()
		case AcquireDevice, Upload:
			// run by Start and Send outside the lock
		}
	}
	return err
}

func (s *Session) pump(capture Capture, gen int) {
	for data := range capture.Chunks() {
		s.mu.Lock()
		if s.gen == gen {
			s.dispatch(Chunk{Data: data})
		}
		s.mu.Unlock()
	}

	// the stream ended on its own: treat it like a stop
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.snap.State == Recording && s.capture == capture {
		s.dispatch(Stop{})
	}
}

func (s *Session) startTimer() {
	s.stopTimer()
	done := make(chan struct{})
	s.timerDone = done
	ticker := s.opts.NewTicker(time.Second)
	gen := s.gen

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				s.mu.Lock()
				if s.gen == gen && s.timerDone == done {
					s.dispatch(Tick{})
				}
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Session) stopTimer() {
	if s.timerDone != nil {
		close(s.timerDone)
		s.timerDone = nil
	}
}

func (s *Session) releaseDevice() {
	if s.capture == nil {
		return
	}
	if err := s.capture.Close(); err != nil {
		s.opts.Logger.Warn(fmt.Sprintf("releasing capture device: %v", err), err)
	}
	s.capture = nil
}

func (s *Session) finalize() error {
	data := s.buf.Bytes()
	if s.opts.MaxFileSize > 0 && int64(len(data)) > s.opts.MaxFileSize {
		s.buf.Reset()
		return &attachment.InvalidFileError{Reason: fmt.Sprintf("recording is larger than %d MB", s.opts.MaxFileSize/core.MB)}
	}
	art, err := s.writeArtifact(bytes.NewReader(data), s.opts.MimeType)
	s.buf.Reset()
	if err != nil {
		return err
	}
	art.Duration = s.snap.Duration
	s.artifact = art
	s.player = NewPlayer(art.Duration)
	return nil
}

func (s *Session) writeArtifact(r io.Reader, mimeType string) (*Artifact, error) {
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	file, err := os.CreateTemp(s.opts.TempDir, "recording-*"+ext)
	if err != nil {
		return nil, errors.Wrap(err, "creating artifact")
	}
	defer file.Close()

	if s.opts.MaxFileSize > 0 {
		r = io.LimitReader(r, s.opts.MaxFileSize+1)
	}
	n, err := io.Copy(file, r)
	art := &Artifact{Path: file.Name(), Name: "voice-message" + ext, MimeType: mimeType, Size: n}
	if err != nil {
		removeArtifact(art)
		return nil, errors.Wrap(err, "writing artifact")
	}
	if s.opts.MaxFileSize > 0 && n > s.opts.MaxFileSize {
		removeArtifact(art)
		return nil, &attachment.InvalidFileError{Reason: fmt.Sprintf("file is larger than %d MB", s.opts.MaxFileSize/core.MB)}
	}
	return art, nil
}

func (s *Session) revoke() {
	s.buf.Reset()
	s.player = nil
	if s.artifact != nil {
		removeArtifact(s.artifact)
		s.artifact = nil
	}
}

func removeArtifact(art *Artifact) {
	_ = os.Remove(art.Path)
}

type timeTicker struct{ t *time.Ticker }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }
func (t timeTicker) C() <-chan time.Time   { return t.t.C }
func (t timeTicker) Stop()                 { t.t.Stop() }
