package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/view"
)

const listPath = "/users"

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	audit     shared.AuditRecorder
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, audit shared.AuditRecorder, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, audit: audit, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpManageUsers))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}/edit", h.editForm)
		r.Post("/{id}/edit", h.updateUser)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, CreateInput{Level: rbac.DefaultLevel}, formErrors{}, http.StatusOK)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, form CreateInput, errs formErrors, status int) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	form.Password, form.Confirm = "", ""
	h.render(w, r, "pages/users/list.html", "Gestión de usuarios", map[string]any{
		"Users":  list,
		"Form":   form,
		"Errors": errs,
		"Levels": rbac.Levels(),
	}, status)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := CreateInput{
		Username:       r.PostFormValue("usuario"),
		FirstName:      r.PostFormValue("nombre"),
		LastName:       r.PostFormValue("apellidos"),
		Email:          r.PostFormValue("email"),
		Password:       r.PostFormValue("contrasena"),
		Confirm:        r.PostFormValue("confirmar_contrasena"),
		Level:          parseLevel(r.PostFormValue("nivel")),
		EmployeeNumber: r.PostFormValue("num_empleado"),
	}
	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrDuplicate) {
			h.logger.Error("create user failed", slog.Any("error", err))
		}
		h.renderList(w, r, in, formErrors{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	h.record(r, "user.created", created)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "¡Usuario \""+created.Username+"\" creado exitosamente!")
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, created, err := h.service.Load(r.Context(), id)
	if err != nil {
		h.notFound(w, r, err)
		return
	}
	if created {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{
				Kind:    shared.FlashWarning,
				Message: "Perfil de usuario para \"" + u.Username + "\" creado automáticamente. Por favor, verifique el Nivel y el # Empleado.",
			})
		}
	}
	h.renderForm(w, r, u, formErrors{}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := UpdateInput{
		FirstName:      r.PostFormValue("nombre"),
		LastName:       r.PostFormValue("apellidos"),
		Email:          r.PostFormValue("email"),
		Password:       r.PostFormValue("contrasena"),
		Confirm:        r.PostFormValue("confirmar_contrasena"),
		Active:         r.PostFormValue("estado") == "Activo",
		Level:          parseLevel(r.PostFormValue("nivel")),
		EmployeeNumber: r.PostFormValue("num_empleado"),
	}
	updated, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFound(w, r, err)
			return
		}
		if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrDuplicate) {
			h.logger.Error("update user failed", slog.Int64("id", id), slog.Any("error", err))
		}
		current, loadErr := h.service.Get(r.Context(), id)
		if loadErr != nil {
			h.notFound(w, r, loadErr)
			return
		}
		current.FirstName, current.LastName, current.Email = in.FirstName, in.LastName, in.Email
		current.IsActive, current.EmployeeNumber = in.Active, in.EmployeeNumber
		if in.Level.Valid() {
			current.Level = in.Level
		}
		h.renderForm(w, r, current, formErrors{"general": shared.UserSafeMessage(err)}, http.StatusBadRequest)
		return
	}
	h.record(r, "user.updated", updated)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Usuario \""+updated.Username+"\" modificado exitosamente.")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	deleted, err := h.service.Delete(r.Context(), id, actor.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFound(w, r, err)
			return
		}
		if !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("delete user failed", slog.Int64("id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.record(r, "user.deleted", deleted)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Usuario \""+deleted.Username+"\" eliminado correctamente.")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, u User, errs formErrors, status int) {
	h.render(w, r, "pages/users/form.html", "Editar usuario", map[string]any{
		"User":   u,
		"Errors": errs,
		"Levels": rbac.Levels(),
		"Action": listPath + "/" + strconv.FormatInt(u.ID, 10) + "/edit",
	}, status)
}

func parseLevel(raw string) rbac.Level {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return rbac.Level(n)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		h.redirectWithFlash(w, r, listPath, shared.FlashError, "El usuario no existe.")
		return
	}
	h.logger.Error("load user failed", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) record(r *http.Request, action string, u User) {
	if h.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(u.ID, 10),
		Meta:     map[string]any{"username": u.Username, "level": int(u.Level)},
	}); err != nil {
		h.logger.Warn("audit user", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	actor, _ := shared.ActorFromContext(r.Context())
	viewData := view.TemplateData{Title: title, CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Actor: actor, Data: data}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
