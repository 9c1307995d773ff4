package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"intervox/internal/bootstrap"
	"intervox/internal/config"
	"intervox/internal/domain"
	"intervox/internal/usecase"
)

const (
	eventSession  = "intervox:session"
	eventAgent    = "intervox:agent"
	eventCamera   = "intervox:camera"
	eventError    = "intervox:error"
	eventNavigate = "intervox:navigate"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	deps    usecase.Deps
	cfg     config.Config
	bootErr error
	close   func() error

	mu           sync.Mutex
	orchestrator *usecase.SessionOrchestrator
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	services, err := bootstrap.Build(ctx, log)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.deps = services.Deps
	a.cfg = services.Config
	a.close = services.Store.Close
	a.SessionStateChanged(domain.SessionStateIdle, "")
}

func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	orchestrator := a.orchestrator
	a.mu.Unlock()
	if orchestrator != nil {
		orchestrator.Dispose()
	}
	if a.close != nil {
		_ = a.close()
	}
}

// StartInterview creates a live interview session for the given job role and
// returns the new session ID. Each session gets a fresh orchestrator; a second
// start while one is live fails.
func (a *App) StartInterview(jobRole string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}

	a.mu.Lock()
	if a.orchestrator != nil && a.orchestrator.Status().Active {
		a.mu.Unlock()
		return "", domain.ErrSessionAlreadyStarted
	}
	orchestrator := usecase.NewSessionOrchestrator(a.deps, a)
	a.orchestrator = orchestrator
	a.mu.Unlock()

	id, err := orchestrator.Start(a.ctx, jobRole)
	if err != nil {
		return "", err
	}
	return id, nil
}

// EndInterview terminates the live session. Safe to call more than once; it
// returns after the interview record is finalized.
func (a *App) EndInterview() error {
	orchestrator := a.currentOrchestrator()
	if orchestrator == nil {
		return nil
	}
	if err := orchestrator.EndSession(); err != nil {
		return err
	}
	return nil
}

// ToggleMute flips the microphone and reports the resulting muted state.
func (a *App) ToggleMute() (bool, error) {
	orchestrator := a.currentOrchestrator()
	if orchestrator == nil {
		return false, domain.ErrNoActiveSession
	}
	return orchestrator.ToggleMute()
}

// ToggleCamera flips the local camera and reports the resulting state.
func (a *App) ToggleCamera() (bool, error) {
	orchestrator := a.currentOrchestrator()
	if orchestrator == nil {
		return false, domain.ErrNoActiveSession
	}
	return orchestrator.ToggleCamera(a.ctx)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.bootErr != nil {
		return domain.Status{State: domain.SessionStateError, Message: a.bootErr.Error()}
	}
	orchestrator := a.currentOrchestrator()
	if orchestrator == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	return orchestrator.Status()
}

// InterviewHistory returns the signed-in user's past interviews, newest first.
func (a *App) InterviewHistory(limit int) ([]*domain.InterviewSession, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	ident, err := a.deps.Identity.Current(a.ctx)
	if err != nil {
		return nil, err
	}
	return a.deps.Records.ListByUser(a.ctx, ident.UserID, limit)
}

// Interview returns one interview record, including transcript and feedback
// once the backend pipeline has produced them.
func (a *App) Interview(id string) (*domain.InterviewSession, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.deps.Records.Get(a.ctx, id)
}

// DeleteInterview removes an interview record.
func (a *App) DeleteInterview(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.deps.Records.Delete(a.ctx, id)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":     a.cfg.Backend.APIBaseURL,
		"videoDevice": a.cfg.Media.VideoDevice,
		"audioDevice": a.cfg.Media.AudioDevice,
		"userId":      a.cfg.Identity.UserID,
	}
}

func (a *App) currentOrchestrator() *usecase.SessionOrchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orchestrator
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.deps.Records == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// AgentSpeakingChanged emits the interviewer speaking indicator.
func (a *App) AgentSpeakingChanged(speaking bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAgent, map[string]bool{"speaking": speaking})
}

// CameraStateChanged emits the local camera indicator state.
func (a *App) CameraStateChanged(on bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCamera, map[string]bool{"on": on})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// NavigationReady tells the frontend it can leave the interview page; the
// feedback view polls the record while the backend pipeline fills it in.
func (a *App) NavigationReady(sessionID string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventNavigate, map[string]string{"sessionId": sessionID})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonBooting:
		return "Setting up your interview..."
	case domain.SessionReasonSessionCreated:
		return "Connecting to your interviewer..."
	case domain.SessionReasonCallStarted:
		return "Interview in progress"
	case domain.SessionReasonUserEnded:
		return "Wrapping up your interview..."
	case domain.SessionReasonRemoteEnded:
		return "The interviewer ended the call"
	case domain.SessionReasonTransportFailed:
		return "The call was interrupted"
	case domain.SessionReasonConnectTimeout:
		return "The interviewer did not join in time"
	case domain.SessionReasonRecordSaved:
		return "Interview saved. Preparing your feedback..."
	case domain.SessionReasonSaveFailed:
		return "The interview could not be saved"
	case domain.SessionReasonCreationFailed:
		return "The interview could not be started"
	case domain.SessionReasonDisposed:
		return "Interview closed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSessionCreation:
		return "The interview could not be started"
	case domain.ErrorCodeMedia:
		return "Camera or microphone problem"
	case domain.ErrorCodeCallTransport:
		return "Call connection problem"
	case domain.ErrorCodePersistence:
		return "The interview could not be saved"
	case domain.ErrorCodePresenceCleanup:
		return "Live session cleanup problem"
	case domain.ErrorCodeDispatch:
		return "Feedback could not be requested"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
