package users

import (
	"strings"
	"time"

	"github.com/sma-almacen/sma/internal/rbac"
)

// User is an account together with its profile row.
type User struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	IsActive       bool
	Level          rbac.Level
	EmployeeNumber string
	HasProfile     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is the full name, falling back to the username.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

// CreateInput is submitted by the new user form.
type CreateInput struct {
	Username       string `validate:"required,max=150"`
	FirstName      string `validate:"max=150"`
	LastName       string `validate:"max=150"`
	Email          string `validate:"omitempty,email,max=254"`
	Password       string `validate:"required,min=6"`
	Confirm        string
	Level          rbac.Level
	EmployeeNumber string `validate:"max=20"`
}

// UpdateInput is submitted by the edit form. An empty Password keeps the
// current one.
type UpdateInput struct {
	FirstName      string `validate:"max=150"`
	LastName       string `validate:"max=150"`
	Email          string `validate:"omitempty,email,max=254"`
	Password       string `validate:"omitempty,min=6"`
	Confirm        string
	Active         bool
	Level          rbac.Level
	EmployeeNumber string `validate:"max=20"`
}
