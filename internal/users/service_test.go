package users

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo(seed ...User) *memoryRepo {
	r := &memoryRepo{users: map[int64]User{}}
	for _, u := range seed {
		r.users[u.ID] = u
		if u.ID > r.nextID {
			r.nextID = u.ID
		}
	}
	return r
}

func (r *memoryRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) Create(ctx context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return User{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.IsActive = true
	u.HasProfile = true
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) Update(ctx context.Context, u User, passwordHash string) error {
	current, ok := r.users[u.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if passwordHash == "" {
		u.PasswordHash = current.PasswordHash
	} else {
		u.PasswordHash = passwordHash
	}
	u.HasProfile = true
	r.users[u.ID] = u
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepo) EnsureProfile(ctx context.Context, userID int64, level rbac.Level) (bool, error) {
	u, ok := r.users[userID]
	if !ok {
		return false, errors.New("foreign key violation")
	}
	if u.HasProfile {
		return false, nil
	}
	u.HasProfile = true
	u.Level = level
	r.users[userID] = u
	return true, nil
}

func newTestService(repo RepositoryPort) (*Service, *bytes.Buffer) {
	var logs bytes.Buffer
	svc := NewService(repo, slog.New(slog.NewTextHandler(&logs, nil)))
	svc.hashCost = bcrypt.MinCost
	return svc, &logs
}

func validCreate() CreateInput {
	return CreateInput{
		Username:  "mlopez",
		FirstName: "María",
		LastName:  "López",
		Email:     "mlopez@example.com",
		Password:  "almacen1",
		Confirm:   "almacen1",
		Level:     rbac.LevelResponsible,
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	u, err := svc.Create(context.Background(), validCreate())
	require.NoError(t, err)
	require.Equal(t, rbac.LevelResponsible, repo.users[u.ID].Level)
	require.NotEqual(t, "almacen1", repo.users[u.ID].PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[u.ID].PasswordHash), []byte("almacen1")))
	require.Equal(t, "María López", u.DisplayName())
}

func TestCreateUserValidation(t *testing.T) {
	cases := map[string]func(*CreateInput){
		"missing username":  func(in *CreateInput) { in.Username = "  " },
		"password mismatch": func(in *CreateInput) { in.Confirm = "otra" },
		"bad level":         func(in *CreateInput) { in.Level = 4 },
		"bad email":         func(in *CreateInput) { in.Email = "no-es-correo" },
		"short password":    func(in *CreateInput) { in.Password, in.Confirm = "abc", "abc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc, _ := newTestService(repo)
			in := validCreate()
			mutate(&in)
			_, err := svc.Create(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Empty(t, repo.users)
		})
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newMemoryRepo(User{ID: 1, Username: "mlopez", HasProfile: true, Level: rbac.LevelChief})
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), validCreate())
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Contains(t, shared.UserSafeMessage(err), "mlopez")
}

func TestUpdateKeepsPasswordWhenBlank(t *testing.T) {
	repo := newMemoryRepo(User{ID: 5, Username: "jperez", PasswordHash: "stored", IsActive: true, HasProfile: true, Level: rbac.LevelChief})
	svc, _ := newTestService(repo)

	u, err := svc.Update(context.Background(), 5, UpdateInput{FirstName: "Juan", Active: false, Level: rbac.LevelResponsible, EmployeeNumber: "E-10"})
	require.NoError(t, err)
	require.False(t, u.IsActive)
	require.Equal(t, "stored", repo.users[5].PasswordHash)
	require.Equal(t, rbac.LevelResponsible, repo.users[5].Level)
	require.Equal(t, "E-10", repo.users[5].EmployeeNumber)

	_, err = svc.Update(context.Background(), 5, UpdateInput{Password: "nuevaclave", Confirm: "distinta", Level: rbac.LevelChief})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Update(context.Background(), 5, UpdateInput{Password: "nuevaclave", Confirm: "nuevaclave", Active: true, Level: rbac.LevelChief})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[5].PasswordHash), []byte("nuevaclave")))
}

func TestDeleteProtectsAdminsAndSelf(t *testing.T) {
	repo := newMemoryRepo(
		User{ID: 1, Username: "admin", HasProfile: true, Level: rbac.LevelAdmin},
		User{ID: 2, Username: "jefe", HasProfile: true, Level: rbac.LevelChief},
		User{ID: 3, Username: "resp", HasProfile: true, Level: rbac.LevelResponsible},
	)
	svc, _ := newTestService(repo)

	_, err := svc.Delete(context.Background(), 1, 3)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Delete(context.Background(), 3, 3)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, repo.users, 3)

	deleted, err := svc.Delete(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Equal(t, "jefe", deleted.Username)
	require.NotContains(t, repo.users, int64(2))

	_, err = svc.Delete(context.Background(), 99, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveActorCreatesMissingProfile(t *testing.T) {
	repo := newMemoryRepo(User{ID: 8, Username: "legacy", IsActive: true})
	svc, logs := newTestService(repo)

	actor, err := svc.ResolveActor(context.Background(), 8)
	require.NoError(t, err)
	require.Equal(t, int(rbac.DefaultLevel), actor.Level)
	require.Equal(t, "legacy", actor.DisplayName)
	require.True(t, repo.users[8].HasProfile)
	require.Contains(t, logs.String(), "level=WARN")
	require.Contains(t, logs.String(), "user profile missing")

	_, created, err := svc.Load(context.Background(), 8)
	require.NoError(t, err)
	require.False(t, created)
}

func TestResolveActorRejectsInactive(t *testing.T) {
	repo := newMemoryRepo(User{ID: 4, Username: "baja", HasProfile: true, Level: rbac.LevelChief})
	svc, _ := newTestService(repo)

	_, err := svc.ResolveActor(context.Background(), 4)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.ResolveActor(context.Background(), 40)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
