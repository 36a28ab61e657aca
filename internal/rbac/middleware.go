package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sma-almacen/sma/internal/shared"
)

// LoginPath is where anonymous requests are sent.
const LoginPath = "/auth/login"

// ActorResolver loads the actor bound to a user id.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID int64) (shared.Actor, error)
}

// Middleware wires the access gate into HTTP handlers.
type Middleware struct {
	Resolver ActorResolver
	Logger   *slog.Logger
}

// Require resolves the current actor and checks op against the policy.
// Anonymous callers are redirected to the login page; denied callers are
// redirected to their safe default view with a warning flash.
func (m Middleware) Require(op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.actor(w, r)
			if !ok {
				return
			}
			if !Allowed(Level(actor.Level), op) {
				m.log(r).Warn("access denied",
					slog.String("operation", string(op)),
					slog.Int64("user_id", actor.ID),
					slog.Int("level", actor.Level))
				if sess := shared.SessionFromContext(r.Context()); sess != nil {
					sess.AddFlash(shared.FlashMessage{Kind: shared.FlashWarning, Message: "No tienes permiso para acceder a esta sección."})
				}
				http.Redirect(w, r, SafeDefault(Level(actor.Level)), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// Authenticated only requires a logged-in actor.
func (m Middleware) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.actor(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func (m Middleware) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return actor, true
	}
	sess := shared.SessionFromContext(r.Context())
	userID := shared.SessionUserID(sess)
	if userID == 0 {
		redirectToLogin(w, r)
		return shared.Actor{}, false
	}
	if m.Resolver == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return shared.Actor{}, false
	}
	actor, err := m.Resolver.ResolveActor(r.Context(), userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidCredentials) {
			sess.SetUser("")
			redirectToLogin(w, r)
			return shared.Actor{}, false
		}
		m.log(r).Error("resolve actor", slog.Int64("user_id", userID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return shared.Actor{}, false
	}
	return actor, true
}

func (m Middleware) log(r *http.Request) *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if r.Method == http.MethodGet && r.URL.Path != "" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
