package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sma-almacen/sma/internal/auth"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/view"
	_ "github.com/sma-almacen/sma/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

type levelResolver struct {
	level rbac.Level
}

func (l levelResolver) ResolveActor(ctx context.Context, userID int64) (shared.Actor, error) {
	return shared.Actor{ID: userID, Username: "jefe", DisplayName: "Jefe Almacén", Level: int(l.level)}, nil
}

type authFixture struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
}

func newAuthFixture(t *testing.T, level rbac.Level) authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 7, Username: "jefe", PasswordHash: string(hashed), IsActive: true}}
	handler := auth.NewHandler(nil, auth.NewService(repo, levelResolver{level: level}), templates, sessionManager, csrfManager)
	return authFixture{handler: handler, sessions: sessionManager}
}

// prime runs the GET handler so the session holds a CSRF token.
func (f authFixture) prime(t *testing.T) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/login?role=jefe", nil)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	f.handler.ShowLoginForTest(res, req)
	require.NoError(t, f.sessions.Commit(ctx, res, req, sess))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "<form")
	require.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
	return sess
}

func (f authFixture) post(t *testing.T, sess *shared.Session, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	form.Set(shared.CSRFFormField, sess.Get(shared.CSRFSessionKey))
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: f.sessions.CookieName(), Value: sess.ID})

	loaded, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), loaded)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	f.handler.HandleLoginForTest(res, req)
	require.NoError(t, f.sessions.Commit(ctx, res, req, loaded))
	return res, loaded
}

func TestLoginPage(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelChief)
	f.prime(t)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelChief)
	sess := f.prime(t)

	res, loaded := f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"wrongpass"}})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Usuario o contraseña incorrectos.")
	require.Empty(t, loaded.User())

	res, _ = f.post(t, sess, url.Values{"username": {"nadie"}, "password": {"correctpass"}})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginRoleMismatch(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelChief)
	sess := f.prime(t)

	res, loaded := f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"correctpass"}, "role": {"admin"}})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Este acceso es exclusivo para Administradores.")
	require.Empty(t, loaded.User())
}

func TestLoginSuccessRedirectsByLevel(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelChief)
	sess := f.prime(t)
	oldID := sess.ID

	res, loaded := f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"correctpass"}, "role": {"jefe"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/inventory/dashboard", res.Header().Get("Location"))
	require.Equal(t, "7", loaded.User())
	require.NotEqual(t, oldID, loaded.ID)
}

func TestLoginAdminLandsOnUsers(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelAdmin)
	sess := f.prime(t)

	res, _ := f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"correctpass"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/users", res.Header().Get("Location"))
}

func TestLoginHonoursLocalNext(t *testing.T) {
	f := newAuthFixture(t, rbac.LevelChief)
	sess := f.prime(t)

	res, _ := f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"correctpass"}, "next": {"//evil.example"}})
	require.Equal(t, "/inventory/dashboard", res.Header().Get("Location"))

	sess = f.prime(t)
	res, _ = f.post(t, sess, url.Values{"username": {"jefe"}, "password": {"correctpass"}, "next": {"/inventory/exits"}})
	require.Equal(t, "/inventory/exits", res.Header().Get("Location"))
}
