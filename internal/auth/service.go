package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	actors rbac.ActorResolver
}

// NewService constructs a new Service. actors supplies the access level and
// creates a missing profile.
func NewService(repo Repository, actors rbac.ActorResolver) *Service {
	return &Service{repo: repo, actors: actors}
}

// Authenticate validates username/password credentials. When role is set the
// account's level must match it.
func (s *Service) Authenticate(ctx context.Context, username, password, role string) (shared.Actor, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, shared.ErrInvalidCredentials
		}
		return shared.Actor{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	actor, err := s.actors.ResolveActor(ctx, user.ID)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	if role != "" {
		want, ok := rbac.LevelForRole(role)
		if ok && rbac.Level(actor.Level) != want {
			return shared.Actor{}, &roleMismatchError{want: want}
		}
	}
	return actor, nil
}
