package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"intervox/internal/domain"
	"intervox/internal/ports"
)

// Config controls live session behavior.
type Config struct {
	Media          ports.MediaConstraints
	ConnectTimeout time.Duration
	DetachTimeout  time.Duration
}

// Deps bundles the collaborators a session orchestrator needs.
type Deps struct {
	Call     ports.CallService
	Media    ports.MediaCapture
	Records  ports.SessionRecordStore
	Presence ports.PresenceStore
	Feedback ports.FeedbackDispatcher
	Identity ports.IdentityProvider
	Log      *slog.Logger
	Config   Config
}

// SessionOrchestrator owns one interview session end to end: it sequences
// media capture, the call service, the durable record, the presence marker
// and feedback dispatch, and guarantees idempotent, total cleanup no matter
// which event ends the session first.
type SessionOrchestrator struct {
	call      ports.CallService
	media     ports.MediaCapture
	records   ports.SessionRecordStore
	presence  ports.PresenceStore
	identity  ports.IdentityProvider
	events    ports.EventSink
	finalizer sessionFinalizer
	log       *slog.Logger
	cfg       Config

	now ports.Clock

	mu      sync.Mutex
	latched bool
	current *activeSession
}

func NewSessionOrchestrator(deps Deps, events ports.EventSink) *SessionOrchestrator {
	cfg := deps.Config
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.DetachTimeout <= 0 {
		cfg.DetachTimeout = 10 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &SessionOrchestrator{
		call:      deps.Call,
		media:     deps.Media,
		records:   deps.Records,
		presence:  deps.Presence,
		identity:  deps.Identity,
		events:    events,
		finalizer: newSessionFinalizer(deps.Records, deps.Presence, deps.Feedback, events, log, cfg.DetachTimeout),
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start creates the durable record, the presence marker and the call session,
// and acquires local media concurrently. It returns once both launches have
// settled. Media failure degrades the session; creation failure is fatal.
// The one-shot latch makes a second Start fail regardless of outcome.
func (o *SessionOrchestrator) Start(ctx context.Context, jobRole string) (string, error) {
	o.mu.Lock()
	if o.latched {
		o.mu.Unlock()
		return "", domain.ErrSessionAlreadyStarted
	}
	o.latched = true
	o.mu.Unlock()

	identity, err := o.identity.Current(ctx)
	if err != nil {
		o.events.SessionError(domain.ErrorCodeSessionCreation, "not signed in")
		return "", &domain.SessionCreationError{Cause: err}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	active := newActiveSession("interview_"+uuid.NewString(), jobRole, identity, cancel)

	o.mu.Lock()
	o.current = active
	o.mu.Unlock()
	o.events.SessionStateChanged(domain.SessionStateInitializing, domain.SessionReasonBooting)

	// Camera/mic acquisition runs independently. Its failure must never block
	// the interview itself.
	go o.acquireMedia(sessionCtx, active)

	creds, err := o.call.CreateSession(sessionCtx, jobRole, identity.UserID)
	if err != nil {
		return "", o.failCreation(active, fmt.Errorf("call service session: %w", err))
	}
	active.mu.Lock()
	active.creds = creds
	active.mu.Unlock()

	startedAt := o.now()
	record := &domain.InterviewSession{
		ID:          active.id,
		UserID:      identity.UserID,
		JobRole:     jobRole,
		CallID:      creds.CallID,
		AccessToken: creds.AccessToken,
		StartedAt:   startedAt,
		Status:      domain.RecordStatusActive,
	}
	if err := o.records.Create(sessionCtx, record); err != nil {
		return "", o.failCreation(active, fmt.Errorf("interview record: %w", err))
	}
	if !active.markRecordCreated() {
		o.compensateAfterDispose(active, nil)
		return "", disposedDuringStart()
	}

	presence := domain.LiveSessionPresence{
		Active:    true,
		CallID:    creds.CallID,
		JobRole:   jobRole,
		StartedAt: startedAt,
	}
	if err := o.presence.Set(sessionCtx, identity.UserID, presence); err != nil {
		return "", o.failCreation(active, fmt.Errorf("presence marker: %w", err))
	}
	if !active.markPresenceSet() {
		o.compensateAfterDispose(active, nil)
		return "", disposedDuringStart()
	}

	call, err := o.call.Start(sessionCtx, creds)
	if err != nil {
		return "", o.failCreation(active, fmt.Errorf("call start: %w", err))
	}
	if !active.adoptCall(call) {
		o.compensateAfterDispose(active, call)
		return "", disposedDuringStart()
	}

	active.setState(domain.SessionStateConnecting)
	o.events.SessionStateChanged(domain.SessionStateConnecting, domain.SessionReasonSessionCreated)

	go o.consumeCallEvents(active, call)
	go o.watchConnect(active)

	<-active.mediaDone
	return active.id, nil
}

// EndSession runs the termination routine. Idempotent: it returns once the
// durable record is safely finalized, no matter how many times it is called
// or which event fired first.
func (o *SessionOrchestrator) EndSession() error {
	o.mu.Lock()
	active := o.current
	o.mu.Unlock()
	if active == nil {
		return domain.ErrNoActiveSession
	}
	o.finish(active, endOutcome{
		reason:   domain.EndReasonUser,
		status:   domain.RecordStatusProcessing,
		dispatch: true,
	}, domain.SessionReasonUserEnded)
	return nil
}

// Dispose is safe in any state. If the session is still live it runs the same
// termination routine as EndSession; a session whose call never started is
// finalized as an error instead, with no feedback dispatch.
func (o *SessionOrchestrator) Dispose() {
	o.mu.Lock()
	active := o.current
	o.mu.Unlock()
	if active == nil {
		return
	}

	active.mu.Lock()
	started := active.callStarted
	active.mu.Unlock()

	outcome := endOutcome{reason: domain.EndReasonDisposed, status: domain.RecordStatusError}
	if started {
		outcome = endOutcome{reason: domain.EndReasonDisposed, status: domain.RecordStatusProcessing, dispatch: true}
	}
	o.finish(active, outcome, domain.SessionReasonDisposed)
}

// ToggleMute flips the microphone state. Requests after the call ended are
// silently ignored and report the last known state.
func (o *SessionOrchestrator) ToggleMute() (bool, error) {
	o.mu.Lock()
	active := o.current
	o.mu.Unlock()
	if active == nil {
		return false, domain.ErrNoActiveSession
	}

	active.mu.Lock()
	call := active.call
	finished := active.finished
	muted := active.muted
	active.mu.Unlock()

	if call == nil || finished {
		return muted, nil
	}

	var err error
	if muted {
		err = call.Unmute()
	} else {
		err = call.Mute()
	}
	if err != nil {
		return muted, err
	}

	active.mu.Lock()
	active.muted = !muted
	muted = active.muted
	active.mu.Unlock()
	return muted, nil
}

// ToggleCamera releases or re-acquires the local stream while the session is
// live. Reports the resulting camera state.
func (o *SessionOrchestrator) ToggleCamera(ctx context.Context) (bool, error) {
	o.mu.Lock()
	active := o.current
	o.mu.Unlock()
	if active == nil {
		return false, domain.ErrNoActiveSession
	}

	if stream := active.takeMedia(); stream != nil {
		if err := stream.Release(); err != nil {
			o.log.Warn("camera release failed", "session_id", active.id, "error", err)
		}
		o.events.CameraStateChanged(false)
		return false, nil
	}

	active.mu.Lock()
	finished := active.finished
	active.mu.Unlock()
	if finished {
		return false, nil
	}

	stream, err := o.media.Acquire(ctx, o.cfg.Media)
	if err != nil {
		o.events.SessionError(domain.ErrorCodeMedia, mediaErrorDetail(err))
		return false, err
	}
	if !active.adoptMedia(stream) {
		_ = stream.Release()
		return false, nil
	}
	o.events.CameraStateChanged(true)
	return true, nil
}

// Status returns the current session status.
func (o *SessionOrchestrator) Status() domain.Status {
	o.mu.Lock()
	active := o.current
	o.mu.Unlock()
	if active == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}

	active.mu.Lock()
	state := active.state
	cameraOn := active.cameraOn
	muted := active.muted
	active.mu.Unlock()

	live := state != domain.SessionStateIdle &&
		state != domain.SessionStateTerminated &&
		state != domain.SessionStateError

	return domain.Status{
		State:     state,
		SessionID: active.id,
		Active:    live,
		CameraOn:  cameraOn,
		Muted:     muted,
		Elapsed:   active.timer.Elapsed(),
	}
}

func (o *SessionOrchestrator) acquireMedia(ctx context.Context, active *activeSession) {
	defer close(active.mediaDone)

	stream, err := o.media.Acquire(ctx, o.cfg.Media)
	if err != nil {
		o.log.Warn("media acquisition failed", "session_id", active.id, "error", err)
		o.events.SessionError(domain.ErrorCodeMedia, mediaErrorDetail(err))
		o.events.CameraStateChanged(false)
		return
	}
	if !active.adoptMedia(stream) {
		// session ended while acquiring
		_ = stream.Release()
		return
	}
	o.events.CameraStateChanged(true)
}

func (o *SessionOrchestrator) onCallStarted(active *activeSession) {
	if !active.markCallStarted() {
		return
	}
	active.timer.Start(o.now())
	active.setState(domain.SessionStateActive)
	o.events.SessionStateChanged(domain.SessionStateActive, domain.SessionReasonCallStarted)
}

// watchConnect bounds the wait for the call-started event so a credential or
// network failure cannot hang the session indefinitely.
func (o *SessionOrchestrator) watchConnect(active *activeSession) {
	timer := time.NewTimer(o.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-active.started:
	case <-active.ended:
	case <-timer.C:
		o.events.SessionError(domain.ErrorCodeCallTransport, "the interviewer did not join in time")
		o.finish(active, endOutcome{
			reason: domain.EndReasonConnectTimeout,
			status: domain.RecordStatusError,
		}, domain.SessionReasonConnectTimeout)
	}
}

// finish is the single termination routine. Every exit path converges here;
// the one-shot guard makes racing triggers observe work already done. Steps
// run in a fixed order and only the record write is awaited.
func (o *SessionOrchestrator) finish(active *activeSession, outcome endOutcome, reason domain.SessionStateReason) {
	active.endOnce.Do(func() {
		defer close(active.ended)

		active.mu.Lock()
		active.finished = true
		call := active.call
		recordCreated := active.recordCreated
		presenceSet := active.presenceSet
		callID := active.creds.CallID
		active.state = domain.SessionStateTerminating
		active.mu.Unlock()

		o.events.SessionStateChanged(domain.SessionStateTerminating, reason)

		if call != nil {
			if err := call.Stop(); err != nil {
				o.log.Warn("call stop failed", "session_id", active.id, "error", err)
			}
		}

		if stream := active.takeMedia(); stream != nil {
			if err := stream.Release(); err != nil {
				o.log.Warn("media release failed", "session_id", active.id, "error", err)
			}
		}
		o.events.CameraStateChanged(false)

		endedAt := o.now()
		var duration int
		if active.timer.Started() {
			duration = int(endedAt.Sub(active.timer.StartedAt()).Round(time.Second) / time.Second)
		}

		finalState := domain.SessionStateTerminated
		finalReason := domain.SessionReasonRecordSaved
		if outcome.status == domain.RecordStatusError {
			finalState = domain.SessionStateError
			finalReason = reason
		}
		if recordCreated {
			if err := o.finalizer.persistEnd(active.id, endedAt, duration, outcome); err != nil {
				o.log.Error("final record write failed", "session_id", active.id, "error", err)
				o.events.SessionError(domain.ErrorCodePersistence, "the interview could not be saved")
				finalState = domain.SessionStateError
				finalReason = domain.SessionReasonSaveFailed
			}
		}

		if presenceSet {
			o.finalizer.removePresence(active.identity.UserID, active.id)
		}
		if outcome.dispatch && callID != "" {
			o.finalizer.dispatchFeedback(callID, active.identity.UserID, active.jobRole, active.id)
		}

		active.cancel()
		active.setState(finalState)
		o.events.SessionStateChanged(finalState, finalReason)
		o.events.NavigationReady(active.id)
	})
	<-active.ended
}

// failCreation finalizes a session whose creation step failed. The record, if
// it reached the store before the failing step, is demoted to error rather
// than retracted.
func (o *SessionOrchestrator) failCreation(active *activeSession, cause error) error {
	o.log.Error("session creation failed", "session_id", active.id, "error", cause)
	o.events.SessionError(domain.ErrorCodeSessionCreation, cause.Error())
	o.finish(active, endOutcome{
		reason: domain.EndReasonCreationFailed,
		status: domain.RecordStatusError,
	}, domain.SessionReasonCreationFailed)
	return &domain.SessionCreationError{Cause: cause}
}

// compensateAfterDispose cleans up resources that were created in the narrow
// window after Dispose already ran the termination routine without seeing
// them.
func (o *SessionOrchestrator) compensateAfterDispose(active *activeSession, call ports.CallSession) {
	active.mu.Lock()
	recordCreated := active.recordCreated
	presenceSet := active.presenceSet
	active.mu.Unlock()

	if call != nil {
		_ = call.Stop()
	}
	if recordCreated {
		outcome := endOutcome{reason: domain.EndReasonDisposed, status: domain.RecordStatusError}
		if err := o.finalizer.persistEnd(active.id, o.now(), 0, outcome); err != nil {
			o.log.Warn("late record cleanup failed", "session_id", active.id, "error", err)
		}
	}
	if presenceSet {
		o.finalizer.removePresence(active.identity.UserID, active.id)
	}
}

func disposedDuringStart() error {
	return &domain.SessionCreationError{Cause: errors.New("session disposed during initialization")}
}

func mediaErrorDetail(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Please allow camera and microphone access in your system settings"
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "No camera or microphone found on this device"
	case errors.Is(err, domain.ErrDeviceBusy):
		return "The camera is being used by another application"
	default:
		return err.Error()
	}
}
