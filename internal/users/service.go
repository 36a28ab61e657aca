package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	EnsureProfile(ctx context.Context, userID int64, level rbac.Level) (bool, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	logger   *slog.Logger
	validate *validator.Validate
	hashCost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: validator.New(), hashCost: bcrypt.DefaultCost}
}

// List returns all users ordered by username.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get loads a user for editing. A missing profile is created first, so the
// returned user always carries a level.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	u, _, err := s.Load(ctx, id)
	return u, err
}

// Load is Get that also reports whether the profile had to be created.
func (s *Service) Load(ctx context.Context, id int64) (User, bool, error) {
	if id <= 0 {
		return User{}, false, shared.ErrNotFound
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, false, err
	}
	return s.EnsureProfile(ctx, u)
}

// EnsureProfile gives u the default level when its profile row is missing.
// It reports whether a profile was created.
func (s *Service) EnsureProfile(ctx context.Context, u User) (User, bool, error) {
	if u.HasProfile {
		return u, false, nil
	}
	created, err := s.repo.EnsureProfile(ctx, u.ID, rbac.DefaultLevel)
	if err != nil {
		return u, false, fmt.Errorf("ensure profile for user %d: %w", u.ID, err)
	}
	if created {
		s.logger.Warn("user profile missing, created with default level",
			slog.Int64("user_id", u.ID),
			slog.String("username", u.Username),
			slog.Int("level", int(rbac.DefaultLevel)))
		u.Level = rbac.DefaultLevel
		u.HasProfile = true
		return u, true, nil
	}
	// Another request created it first; reload the stored level.
	reloaded, err := s.repo.Get(ctx, u.ID)
	if err != nil {
		return u, false, err
	}
	return reloaded, false, nil
}

func (s *Service) ensureProfile(ctx context.Context, u User) (User, error) {
	u, _, err := s.EnsureProfile(ctx, u)
	return u, err
}

// ResolveActor implements rbac.ActorResolver. Inactive or deleted users are
// reported as invalid credentials so the gate signs them out.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (shared.Actor, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !u.IsActive {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	if u, err = s.ensureProfile(ctx, u); err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName(), Level: int(u.Level)}, nil
}

// Create registers a new account with its profile.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	if in.Password != in.Confirm {
		return User{}, shared.Invalid("confirmar_contrasena", "Las contraseñas no coinciden. Por favor, inténtalo de nuevo.")
	}
	if !in.Level.Valid() {
		return User{}, shared.Invalid("nivel", "Selecciona un nivel de acceso válido.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, User{
		Username:       in.Username,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		PasswordHash:   string(hash),
		Level:          in.Level,
		EmployeeNumber: in.EmployeeNumber,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return User{}, &duplicateUsernameError{username: in.Username, err: err}
		}
		return User{}, err
	}
	return u, nil
}

// Update saves the edit form. The password changes only when one is given.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	if in.Password != "" && in.Password != in.Confirm {
		return User{}, shared.Invalid("confirmar_contrasena", "Las contraseñas nuevas no coinciden.")
	}
	if !in.Level.Valid() {
		return User{}, shared.Invalid("nivel", "Selecciona un nivel de acceso válido.")
	}
	var hash string
	if in.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}
	current.FirstName = in.FirstName
	current.LastName = in.LastName
	current.Email = in.Email
	current.IsActive = in.Active
	current.Level = in.Level
	current.EmployeeNumber = in.EmployeeNumber
	if err := s.repo.Update(ctx, current, hash); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return User{}, &duplicateUsernameError{username: current.Username, err: err}
		}
		return User{}, err
	}
	return current, nil
}

// Delete removes a user. Administrators and the acting user are protected.
func (s *Service) Delete(ctx context.Context, id, actorID int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Level == rbac.LevelAdmin {
		return User{}, shared.Invalid("usuario", "No se puede eliminar a un Administrador.")
	}
	if u.ID == actorID {
		return User{}, shared.Invalid("usuario", "No puedes eliminar tu propia cuenta mientras está activa.")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "max" {
			return shared.Invalid("usuario", "El usuario admite como máximo 150 caracteres.")
		}
		return shared.Invalid("usuario", "El nombre de usuario es obligatorio.")
	case "Email":
		return shared.Invalid("email", "El correo electrónico no es válido.")
	case "Password":
		if fe.Tag() == "required" {
			return shared.Invalid("contrasena", "La contraseña es obligatoria.")
		}
		return shared.Invalid("contrasena", "La contraseña debe tener al menos 6 caracteres.")
	case "EmployeeNumber":
		return shared.Invalid("num_empleado", "El número de empleado admite como máximo 20 caracteres.")
	default:
		return shared.Invalid(strings.ToLower(fe.Field()), "El campo admite como máximo 150 caracteres.")
	}
}

type duplicateUsernameError struct {
	username string
	err      error
}

func (e *duplicateUsernameError) Error() string {
	return fmt.Sprintf("username %q: %v", e.username, e.err)
}

func (e *duplicateUsernameError) Unwrap() error { return e.err }

func (e *duplicateUsernameError) UserMessage() string {
	return fmt.Sprintf("El nombre de usuario %q ya está registrado o el email ya existe.", e.username)
}
