package auth

import "github.com/sma-almacen/sma/internal/rbac"

// User is the slice of an account needed to check credentials.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
}

// roleMismatchError is returned when a role-specific login button is used by
// an account of another level.
type roleMismatchError struct {
	want rbac.Level
}

func (e *roleMismatchError) Error() string {
	return "login role does not match access level"
}

func (e *roleMismatchError) UserMessage() string {
	switch e.want {
	case rbac.LevelAdmin:
		return "Este acceso es exclusivo para Administradores."
	case rbac.LevelResponsible:
		return "Este acceso es exclusivo para Responsables de Área."
	default:
		return "Este acceso es exclusivo para Jefes de Almacén."
	}
}
