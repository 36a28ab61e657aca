package shared

import "errors"

// Flash kinds understood by the layout template.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

type userMessager interface {
	UserMessage() string
}

// UserSafeMessage converts an error into a message that can be shown in the UI.
// Raw driver errors never reach the page; callers log them separately.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	switch {
	case errors.Is(err, ErrDuplicate):
		return "Error de integridad: ya existe un registro con esos datos."
	case errors.Is(err, ErrNotFound):
		return "El registro solicitado no existe."
	case errors.Is(err, ErrForbidden):
		return "No tienes permiso para realizar esta acción."
	case errors.Is(err, ErrUnauthenticated):
		return "Debes iniciar sesión para continuar."
	case errors.Is(err, ErrInvalidCredentials):
		return "Usuario o contraseña incorrectos."
	case errors.Is(err, ErrValidation):
		return "Los datos enviados no son válidos."
	default:
		return "Ocurrió un error inesperado. Intenta de nuevo."
	}
}
