package domain

import (
	"errors"
	"fmt"
)

// Media acquisition failures. Each maps to different user messaging.
var (
	ErrPermissionDenied  = errors.New("camera and microphone access was denied")
	ErrDeviceUnavailable = errors.New("no camera or microphone found")
	ErrDeviceBusy        = errors.New("capture device is in use by another application")
)

var (
	ErrSessionAlreadyStarted = errors.New("an interview session was already started")
	ErrNoActiveSession       = errors.New("no active interview session")
	ErrRecordNotFound        = errors.New("interview record not found")
)

// SessionCreationError is fatal: the call service or the durable store could
// not be reached at start, so no usable session exists.
type SessionCreationError struct {
	Cause error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("interview session could not be created: %v", e.Cause)
}

func (e *SessionCreationError) Unwrap() error { return e.Cause }

// CallTransportError is a mid-session drop. It routes through the normal
// termination path, tagged so the record reflects an abnormal end.
type CallTransportError struct {
	Reason string
}

func (e *CallTransportError) Error() string {
	if e.Reason == "" {
		return "call transport failed"
	}
	return "call transport failed: " + e.Reason
}

// PersistenceError wraps a failed durable write at termination.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }
