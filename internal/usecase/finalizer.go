package usecase

import (
	"context"
	"log/slog"
	"time"

	"intervox/internal/domain"
	"intervox/internal/ports"
)

// sessionFinalizer runs the persistence and dispatch steps of the
// termination routine: the awaited record write, then the detached
// best-effort presence removal and feedback dispatch.
type sessionFinalizer struct {
	records  ports.SessionRecordStore
	presence ports.PresenceStore
	feedback ports.FeedbackDispatcher
	events   ports.EventSink
	log      *slog.Logger
	timeout  time.Duration
}

func newSessionFinalizer(
	records ports.SessionRecordStore,
	presence ports.PresenceStore,
	feedback ports.FeedbackDispatcher,
	events ports.EventSink,
	log *slog.Logger,
	timeout time.Duration,
) sessionFinalizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return sessionFinalizer{
		records:  records,
		presence: presence,
		feedback: feedback,
		events:   events,
		log:      log,
		timeout:  timeout,
	}
}

// persistEnd writes endedAt, duration and the final status to the durable
// record. This is the only write the termination path waits on; it is
// retried at most once.
func (f sessionFinalizer) persistEnd(sessionID string, endedAt time.Time, duration int, outcome endOutcome) error {
	fields := map[string]any{
		"endedAt":   endedAt,
		"duration":  duration,
		"status":    string(outcome.status),
		"endReason": string(outcome.reason),
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	err := f.records.Update(ctx, sessionID, fields)
	if err == nil {
		return nil
	}
	f.log.Warn("final record write failed, retrying", "session_id", sessionID, "error", err)
	if err = f.records.Update(ctx, sessionID, fields); err == nil {
		return nil
	}
	return &domain.PersistenceError{Op: "update", Cause: err}
}

// removePresence deletes the live-session marker. Detached and best effort:
// failures are logged and surfaced as non-fatal, never propagated.
func (f sessionFinalizer) removePresence(userID string, sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		if err := f.presence.Remove(ctx, userID); err != nil {
			f.log.Warn("presence cleanup failed", "session_id", sessionID, "user_id", userID, "error", err)
			f.events.SessionError(domain.ErrorCodePresenceCleanup, "live session marker was not removed")
		}
	}()
}

// dispatchFeedback asks the backend to produce the scored review. Detached:
// feedback generation can take far longer than the user is willing to wait
// on the interview screen, so its outcome never blocks or taints the
// session's terminal state.
func (f sessionFinalizer) dispatchFeedback(callID string, userID string, jobRole string, sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		if err := f.feedback.RequestFeedback(ctx, callID, userID, jobRole); err != nil {
			f.log.Warn("feedback dispatch failed", "session_id", sessionID, "call_id", callID, "error", err)
			f.events.SessionError(domain.ErrorCodeDispatch, "feedback processing could not be started")
		}
	}()
}
