// Package recorder turns a capture gesture (or a pre-recorded file) into an audio artifact ready for
// preview and upload.
//
// The lifecycle is a pure state machine: Transition maps a Snapshot and an Event to the next Snapshot
// and the Effects a Session must apply against the capture device, the timer and the local artifact.
package recorder

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// MaxDuration is the hard recording ceiling. Recording stops by itself once reached.
const MaxDuration = 600 * time.Second

type State int

const (
	Idle State = iota
	Recording
	Previewing
	Uploading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Previewing:
		return "previewing"
	case Uploading:
		return "uploading"
	}
	return "unknown"
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	State     State
	Acquiring bool          // device requested, not granted yet (only while Idle)
	Elapsed   time.Duration // one-second resolution while recording
	Duration  time.Duration // artifact duration; 0 when unknown
	Status    string
}

type (
	Event interface{ isEvent() }

	Start         struct{}
	DeviceReady   struct{}
	DeviceFailed  struct{ Err error }
	Chunk         struct{ Data []byte }
	Tick          struct{}
	Stop          struct{}
	Cancel        struct{}
	FileLoaded    struct{ Duration time.Duration }
	Send          struct{}
	SendSucceeded struct{}
	SendFailed    struct{ Err error }
)

func (Start) isEvent()         {}
func (DeviceReady) isEvent()   {}
func (DeviceFailed) isEvent()  {}
func (Chunk) isEvent()         {}
func (Tick) isEvent()          {}
func (Stop) isEvent()          {}
func (Cancel) isEvent()        {}
func (FileLoaded) isEvent()    {}
func (Send) isEvent()          {}
func (SendSucceeded) isEvent() {}
func (SendFailed) isEvent()    {}

type Effect int

const (
	AcquireDevice Effect = iota + 1
	ReleaseDevice
	StartTimer
	StopTimer
	Finalize // join buffered chunks into the local artifact
	Revoke   // drop the local artifact
	Upload
)

func (e Effect) String() string {
	return [...]string{"", "acquire-device", "release-device", "start-timer", "stop-timer", "finalize", "revoke", "upload"}[e]
}

const (
	statusRecording = "Recording..."
	statusReady     = "Ready to send."
	statusSending   = "Sending..."
	statusSent      = "Sent."
	statusLimit     = "Maximum recording length reached."
)

// Transition is the recorder state machine. Events that make no sense in the current state leave it
// unchanged and produce no effects.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect) {
	switch e := ev.(type) {
	case Start:
		if s.State == Idle && !s.Acquiring {
			return Snapshot{State: Idle, Acquiring: true}, []Effect{AcquireDevice}
		}

	case DeviceReady:
		if s.State == Idle && s.Acquiring {
			return Snapshot{State: Recording, Status: statusRecording}, []Effect{Revoke, StartTimer}
		}

	case DeviceFailed:
		if s.State == Idle && s.Acquiring {
			return Snapshot{State: Idle, Status: core.StatusMessage(e.Err)}, []Effect{ReleaseDevice}
		}

	case Chunk:
		// buffering is the session's concern; the snapshot does not change

	case Tick:
		if s.State == Recording {
			s.Elapsed += time.Second
			if s.Elapsed >= MaxDuration {
				s.Elapsed = MaxDuration
				next, effects := stop(s)
				next.Status = statusLimit
				return next, effects
			}
			return s, nil
		}

	case Stop:
		if s.State == Recording {
			return stop(s)
		}

	case Cancel:
		switch {
		case s.State == Idle && s.Acquiring:
			return Snapshot{State: Idle}, []Effect{ReleaseDevice}
		case s.State == Recording:
			return Snapshot{State: Idle}, []Effect{StopTimer, ReleaseDevice, Revoke}
		case s.State == Previewing:
			return Snapshot{State: Idle}, []Effect{Revoke}
		case s.State == Idle:
			return Snapshot{State: Idle}, nil
		}

	case FileLoaded:
		if s.State == Idle && !s.Acquiring {
			return Snapshot{State: Previewing, Duration: e.Duration, Status: statusReady}, nil
		}

	case Send:
		if s.State == Previewing {
			s.State = Uploading
			s.Status = statusSending
			return s, []Effect{Upload}
		}

	case SendSucceeded:
		if s.State == Uploading {
			return Snapshot{State: Idle, Status: statusSent}, []Effect{Revoke}
		}

	case SendFailed:
		if s.State == Uploading {
			s.State = Previewing
			s.Status = core.StatusMessage(e.Err)
			return s, nil
		}
	}
	return s, nil
}

func stop(s Snapshot) (Snapshot, []Effect) {
	return Snapshot{State: Previewing, Elapsed: s.Elapsed, Duration: s.Elapsed, Status: statusReady},
		[]Effect{StopTimer, ReleaseDevice, Finalize}
}
