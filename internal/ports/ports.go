package ports

import (
	"context"
	"time"

	"intervox/internal/domain"
)

// MediaConstraints describes how the local camera and microphone are captured.
type MediaConstraints struct {
	VideoFormat string
	VideoDevice string
	AudioFormat string
	AudioDevice string
	Width       int
	Height      int
	FrameRate   int
	SampleRate  int
	Channels    int
}

// MediaStream is an acquired camera/microphone handle. Release must be safe
// to call multiple times; the hardware indicator goes off on first release.
type MediaStream interface {
	Release() error
}

// MediaCapture acquires local capture devices, independent of call state.
type MediaCapture interface {
	Acquire(ctx context.Context, constraints MediaConstraints) (MediaStream, error)
}

// CallSession is a live call on the external call service. Events delivers
// the normalized lifecycle stream in arrival order; the channel closes when
// the call is over. Stop, Mute and Unmute never fail on an ended call.
type CallSession interface {
	Events() <-chan domain.CallEvent
	Stop() error
	Mute() error
	Unmute() error
}

// CallService wraps the external voice-call transport.
type CallService interface {
	CreateSession(ctx context.Context, jobRole string, userID string) (domain.CallCredentials, error)
	Start(ctx context.Context, creds domain.CallCredentials) (CallSession, error)
}

// SessionRecordStore is durable CRUD for interview session documents.
// Update merges partial fields and must not clobber fields written by the
// backend feedback pipeline.
type SessionRecordStore interface {
	Create(ctx context.Context, session *domain.InterviewSession) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Get(ctx context.Context, id string) (*domain.InterviewSession, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.InterviewSession, error)
	Delete(ctx context.Context, id string) error
}

// PresenceStore holds the ephemeral live-session marker per user.
type PresenceStore interface {
	Set(ctx context.Context, userID string, presence domain.LiveSessionPresence) error
	Remove(ctx context.Context, userID string) error
}

// FeedbackDispatcher asks the backend to fetch the call transcript and
// produce a scored review. At most one call per session is expected.
type FeedbackDispatcher interface {
	RequestFeedback(ctx context.Context, callID string, userID string, jobRole string) error
}

// IdentityProvider supplies the signed-in identity and bearer credential.
type IdentityProvider interface {
	Current(ctx context.Context) (domain.Identity, error)
}

// Clock lets the orchestrator and timer be tested against wall-clock jumps.
type Clock func() time.Time

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	AgentSpeakingChanged(speaking bool)
	CameraStateChanged(on bool)
	SessionError(code domain.ErrorCode, detail string)
	NavigationReady(sessionID string)
}
