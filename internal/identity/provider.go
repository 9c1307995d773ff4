package identity

import (
	"context"
	"errors"

	"intervox/internal/domain"
)

// StaticProvider serves the identity configured at startup. The desktop app
// is single-user per process; sign-in happens out of band and the resulting
// user ID and bearer token are injected through configuration.
type StaticProvider struct {
	identity domain.Identity
}

func NewStaticProvider(userID string, token string) *StaticProvider {
	return &StaticProvider{identity: domain.Identity{UserID: userID, Token: token}}
}

func (p *StaticProvider) Current(ctx context.Context) (domain.Identity, error) {
	if p.identity.UserID == "" {
		return domain.Identity{}, errors.New("no signed-in user is configured")
	}
	return p.identity, nil
}
