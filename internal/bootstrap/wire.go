package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"intervox/internal/config"
	"intervox/internal/feedback"
	"intervox/internal/identity"
	"intervox/internal/media"
	"intervox/internal/ports"
	"intervox/internal/providers/retell"
	"intervox/internal/storage/firestore"
	"intervox/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Deps   usecase.Deps
	Store  *firestore.Store
	Config config.Config
}

// Build wires all backend dependencies for the current runtime. The returned
// Deps are used to create one orchestrator per interview session.
func Build(ctx context.Context, log *slog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	store, err := firestore.NewStore(ctx, cfg.Storage.ProjectID)
	if err != nil {
		return Services{}, fmt.Errorf("storage: %w", err)
	}

	deps := usecase.Deps{
		Call: retell.NewClient(retell.Config{
			APIBaseURL: cfg.Backend.APIBaseURL,
			AuthToken:  cfg.Backend.AuthToken,
		}),
		Media:    media.NewFFMPEGCapture(cfg.Media.CaptureCommand),
		Records:  store,
		Presence: store,
		Feedback: feedback.NewDispatcher(feedback.Config{
			APIBaseURL: cfg.Backend.APIBaseURL,
			AuthToken:  cfg.Backend.AuthToken,
		}),
		Identity: identity.NewStaticProvider(cfg.Identity.UserID, cfg.Identity.Token),
		Log:      log,
		Config: usecase.Config{
			Media: ports.MediaConstraints{
				VideoFormat: cfg.Media.VideoFormat,
				VideoDevice: cfg.Media.VideoDevice,
				AudioFormat: cfg.Media.AudioFormat,
				AudioDevice: cfg.Media.AudioDevice,
				Width:       cfg.Media.Width,
				Height:      cfg.Media.Height,
				FrameRate:   cfg.Media.FrameRate,
				SampleRate:  cfg.Media.SampleRate,
				Channels:    cfg.Media.Channels,
			},
			ConnectTimeout: cfg.Session.ConnectTimeout,
			DetachTimeout:  cfg.Session.DetachTimeout,
		},
	}

	return Services{Deps: deps, Store: store, Config: cfg}, nil
}
