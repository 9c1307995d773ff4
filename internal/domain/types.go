package domain

import "time"

// SessionState models the live interview lifecycle.
type SessionState string

const (
	SessionStateIdle         SessionState = "idle"
	SessionStateInitializing SessionState = "initializing"
	SessionStateConnecting   SessionState = "connecting"
	SessionStateActive       SessionState = "active"
	SessionStateTerminating  SessionState = "terminating"
	SessionStateTerminated   SessionState = "terminated"
	SessionStateError        SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonBooting         SessionStateReason = "booting"
	SessionReasonSessionCreated  SessionStateReason = "session_created"
	SessionReasonCallStarted     SessionStateReason = "call_started"
	SessionReasonUserEnded       SessionStateReason = "user_ended"
	SessionReasonRemoteEnded     SessionStateReason = "remote_ended"
	SessionReasonTransportFailed SessionStateReason = "transport_failed"
	SessionReasonConnectTimeout  SessionStateReason = "connect_timeout"
	SessionReasonRecordSaved     SessionStateReason = "record_saved"
	SessionReasonSaveFailed      SessionStateReason = "save_failed"
	SessionReasonCreationFailed  SessionStateReason = "creation_failed"
	SessionReasonDisposed        SessionStateReason = "disposed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup         ErrorCode = "startup"
	ErrorCodeSessionCreation ErrorCode = "session_creation"
	ErrorCodeMedia           ErrorCode = "media"
	ErrorCodeCallTransport   ErrorCode = "call_transport"
	ErrorCodePersistence     ErrorCode = "persistence"
	ErrorCodePresenceCleanup ErrorCode = "presence_cleanup"
	ErrorCodeDispatch        ErrorCode = "dispatch"
)

// RecordStatus is the durable interview record status.
// active -> processing happens exactly once, in the termination path;
// processing -> completed/error is owned by the backend feedback pipeline.
type RecordStatus string

const (
	RecordStatusActive     RecordStatus = "active"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusError      RecordStatus = "error"
)

// EndReason tags how a session ended on the durable record.
type EndReason string

const (
	EndReasonUser           EndReason = "user"
	EndReasonRemote         EndReason = "remote"
	EndReasonTransportError EndReason = "transport_error"
	EndReasonConnectTimeout EndReason = "connect_timeout"
	EndReasonDisposed       EndReason = "disposed"
	EndReasonCreationFailed EndReason = "creation_failed"
)

// InterviewSession is the durable record of one interview attempt.
type InterviewSession struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	JobRole     string        `json:"jobRole"`
	CallID      string        `json:"callId"`
	AccessToken string        `json:"accessToken,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
	Duration    int           `json:"duration"`
	Status      RecordStatus  `json:"status"`
	EndReason   EndReason     `json:"endReason,omitempty"`
	Transcript  string        `json:"transcript,omitempty"`
	Feedback    *ScoredReview `json:"feedback,omitempty"`
}

// ScoredReview is produced asynchronously by the feedback pipeline.
type ScoredReview struct {
	Score        int      `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// LiveSessionPresence is the ephemeral "user has a live session" marker,
// keyed by user ID. At most one per user.
type LiveSessionPresence struct {
	Active    bool      `json:"active"`
	CallID    string    `json:"callId"`
	JobRole   string    `json:"jobRole"`
	StartedAt time.Time `json:"startedAt"`
}

// CallCredentials are issued by the call service when a session is created.
type CallCredentials struct {
	CallID      string `json:"callId"`
	AccessToken string `json:"accessToken"`
}

// Identity is the signed-in participant.
type Identity struct {
	UserID string `json:"userId"`
	Token  string `json:"-"`
}

// CallEventKind identifies a normalized call lifecycle event.
type CallEventKind string

const (
	CallEventStarted       CallEventKind = "started"
	CallEventEnded         CallEventKind = "ended"
	CallEventAgentSpeaking CallEventKind = "agent_speaking"
	CallEventError         CallEventKind = "error"
)

// CallEvent is one entry in the ordered call-service event stream.
type CallEvent struct {
	Kind          CallEventKind `json:"kind"`
	AgentSpeaking bool          `json:"agentSpeaking"`
	Reason        string        `json:"reason,omitempty"`
}

// Status summarizes the current session status for the UI.
type Status struct {
	State     SessionState `json:"state"`
	SessionID string       `json:"sessionId,omitempty"`
	Active    bool         `json:"active"`
	CameraOn  bool         `json:"cameraOn"`
	Muted     bool         `json:"muted"`
	Elapsed   int          `json:"elapsed"`
	Message   string       `json:"message,omitempty"`
}
