package usecase

import (
	"intervox/internal/domain"
	"intervox/internal/ports"
)

// consumeCallEvents drains the single ordered call-service event stream and
// feeds it into the state machine. Translating the push-style SDK callbacks
// into one channel removes ordering ambiguity between events that fire close
// together, such as "ended" and "error".
func (o *SessionOrchestrator) consumeCallEvents(active *activeSession, call ports.CallSession) {
	defer close(active.eventsDone)

	for event := range call.Events() {
		switch event.Kind {
		case domain.CallEventStarted:
			o.onCallStarted(active)
		case domain.CallEventAgentSpeaking:
			// UI feedback only, no state transition.
			o.events.AgentSpeakingChanged(event.AgentSpeaking)
		case domain.CallEventEnded:
			o.finish(active, endOutcome{
				reason:   domain.EndReasonRemote,
				status:   domain.RecordStatusProcessing,
				dispatch: true,
			}, domain.SessionReasonRemoteEnded)
		case domain.CallEventError:
			o.events.SessionError(domain.ErrorCodeCallTransport, (&domain.CallTransportError{Reason: event.Reason}).Error())
			o.finish(active, endOutcome{
				reason:   domain.EndReasonTransportError,
				status:   domain.RecordStatusProcessing,
				dispatch: true,
			}, domain.SessionReasonTransportFailed)
		}
	}
}
