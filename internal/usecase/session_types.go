package usecase

import (
	"context"
	"sync"

	"intervox/internal/domain"
	"intervox/internal/ports"
)

// endOutcome describes how a termination run finalizes the durable record.
type endOutcome struct {
	reason   domain.EndReason
	status   domain.RecordStatus
	dispatch bool
}

type activeSession struct {
	id       string
	jobRole  string
	identity domain.Identity

	cancel context.CancelFunc

	mu            sync.Mutex
	state         domain.SessionState
	creds         domain.CallCredentials
	call          ports.CallSession
	media         ports.MediaStream
	recordCreated bool
	presenceSet   bool
	callStarted   bool
	cameraOn      bool
	muted         bool
	finished      bool

	timer *SessionTimer

	endOnce    sync.Once
	started    chan struct{} // closed when the call-started event arrives
	ended      chan struct{} // closed once the termination critical path is done
	eventsDone chan struct{}
	mediaDone  chan struct{}
}

func newActiveSession(id string, jobRole string, identity domain.Identity, cancel context.CancelFunc) *activeSession {
	return &activeSession{
		id:         id,
		jobRole:    jobRole,
		identity:   identity,
		cancel:     cancel,
		state:      domain.SessionStateInitializing,
		timer:      NewSessionTimer(),
		started:    make(chan struct{}),
		ended:      make(chan struct{}),
		eventsDone: make(chan struct{}),
		mediaDone:  make(chan struct{}),
	}
}

func (s *activeSession) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// markCallStarted closes the started gate once. Returns false if the session
// already finished or the call had already started.
func (s *activeSession) markCallStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.callStarted {
		return false
	}
	s.callStarted = true
	close(s.started)
	return true
}

// markRecordCreated records that the durable record exists. Returns false if
// the session was already terminated, in which case the caller must finalize
// the record itself.
func (s *activeSession) markRecordCreated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordCreated = true
	return !s.finished
}

// markPresenceSet records that the presence marker exists. Returns false if
// the session was already terminated.
func (s *activeSession) markPresenceSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenceSet = true
	return !s.finished
}

// adoptCall stores the live call, or rejects it when termination already ran
// so the call is not leaked.
func (s *activeSession) adoptCall(call ports.CallSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.call = call
	return true
}

// adoptMedia stores an acquired stream, or rejects it when termination
// already ran so the handle is not leaked.
func (s *activeSession) adoptMedia(stream ports.MediaStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.media = stream
	s.cameraOn = true
	return true
}

// takeMedia removes and returns the stream so release happens exactly once
// per handle.
func (s *activeSession) takeMedia() ports.MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.media
	s.media = nil
	s.cameraOn = false
	return stream
}
