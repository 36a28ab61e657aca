package users

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	_ "github.com/sma-almacen/sma/testing"
)

func newRouter(t *testing.T, repo *memoryRepo, userID string) (http.Handler, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "sma_session", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser(userID)

	svc, _ := newTestService(repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, nil, shared.NewCSRFManager("csrf"), nil, rbac.Middleware{Resolver: svc, Logger: logger})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/users", h.MountRoutes)
	return r, sess
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func seededRepo() *memoryRepo {
	return newMemoryRepo(
		User{ID: 1, Username: "admin", IsActive: true, HasProfile: true, Level: rbac.LevelAdmin},
		User{ID: 2, Username: "jefe", IsActive: true, HasProfile: true, Level: rbac.LevelChief},
	)
}

func TestDeleteUserHandler(t *testing.T) {
	repo := seededRepo()
	r, sess := newRouter(t, repo, "1")

	res := postForm(r, "/users/1/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/users", res.Header().Get("Location"))
	flash := sess.PopFlash()
	require.Equal(t, shared.FlashError, flash.Kind)
	require.Equal(t, "No se puede eliminar a un Administrador.", flash.Message)

	res = postForm(r, "/users/2/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, shared.FlashSuccess, sess.PopFlash().Kind)
	require.NotContains(t, repo.users, int64(2))
}

func TestCreateUserHandlerRedirects(t *testing.T) {
	repo := seededRepo()
	r, sess := newRouter(t, repo, "1")

	res := postForm(r, "/users", url.Values{
		"usuario":              {"nuevo"},
		"contrasena":           {"secreto1"},
		"confirmar_contrasena": {"secreto1"},
		"nivel":                {"2"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)
	flash := sess.PopFlash()
	require.Equal(t, shared.FlashSuccess, flash.Kind)
	require.Contains(t, flash.Message, "nuevo")
	require.Len(t, repo.users, 3)
}

func TestUsersRequireAdmin(t *testing.T) {
	repo := seededRepo()
	r, sess := newRouter(t, repo, "2")

	res := postForm(r, "/users/1/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, rbac.SafeDefault(rbac.LevelChief), res.Header().Get("Location"))
	require.Equal(t, shared.FlashWarning, sess.PopFlash().Kind)
	require.Len(t, repo.users, 2)
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	r, _ := newRouter(t, seededRepo(), "")

	req := httptest.NewRequest(http.MethodGet, "/users/", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.True(t, strings.HasPrefix(res.Header().Get("Location"), rbac.LoginPath))
}
