package suppliers

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

const listPath = "/suppliers"

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	audit     shared.AuditRecorder
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, audit shared.AuditRecorder, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, audit: audit, rbac: rbac}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Page:   shared.PageFromQuery(q),
		Limit:  shared.DefaultPerPage,
		Search: q.Get("busqueda"),
	}

	suppliers, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list suppliers failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/suppliers/list.html", "Proveedores", map[string]any{
		"Suppliers":  suppliers,
		"Filters":    filters,
		"Pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	}, http.StatusOK)
}

func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/suppliers/form.html", "Nuevo proveedor", map[string]any{
		"Errors":   map[string]string{},
		"Supplier": Supplier{Active: true},
		"Action":   listPath,
	}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	supplier := supplierFromForm(r)

	created, err := h.service.Create(r.Context(), supplier)
	if err != nil {
		h.formError(w, r, "Nuevo proveedor", listPath, supplier, err)
		return
	}
	h.record(r, "supplier.created", created.ID, created.Name)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Proveedor \""+created.Name+"\" registrado correctamente.")
}

func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.notFound(w, r, err)
		return
	}
	h.render(w, r, "pages/suppliers/form.html", "Editar proveedor", map[string]any{
		"Errors":   map[string]string{},
		"Supplier": supplier,
		"Action":   editPath(id),
	}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	supplier := supplierFromForm(r)
	supplier.ID = id

	if err := h.service.Update(r.Context(), id, supplier); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFound(w, r, err)
			return
		}
		h.formError(w, r, "Editar proveedor", editPath(id), supplier, err)
		return
	}
	h.record(r, "supplier.updated", id, supplier.Name)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Proveedor \""+supplier.Name+"\" actualizado correctamente.")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.notFound(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete supplier failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, listPath, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.record(r, "supplier.deleted", id, supplier.Name)
	h.redirectWithFlash(w, r, listPath, shared.FlashSuccess, "Proveedor \""+supplier.Name+"\" eliminado.")
}

func supplierFromForm(r *http.Request) Supplier {
	return Supplier{
		Name:           r.PostFormValue("nombre"),
		TaxID:          r.PostFormValue("rfc"),
		Contact:        r.PostFormValue("contacto"),
		Address:        r.PostFormValue("direccion"),
		LineOfBusiness: r.PostFormValue("giro"),
		Active:         checkbox(r.PostFormValue("activo")),
	}
}

func checkbox(v string) bool {
	switch v {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

func editPath(id int64) string {
	return listPath + "/" + strconv.FormatInt(id, 10) + "/edit"
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		h.redirectWithFlash(w, r, listPath, shared.FlashError, "El proveedor no existe.")
		return
	}
	h.logger.Error("load supplier failed", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, title, action string, supplier Supplier, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrDuplicate) {
		h.logger.Error("save supplier failed", slog.Any("error", err))
	}
	h.render(w, r, "pages/suppliers/form.html", title, map[string]any{
		"Errors":   map[string]string{"general": shared.UserSafeMessage(err)},
		"Supplier": supplier,
		"Action":   action,
	}, http.StatusBadRequest)
}

func (h *Handler) record(r *http.Request, action string, id int64, name string) {
	if h.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "supplier",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"name": name},
	}); err != nil {
		h.logger.Warn("audit supplier", slog.Any("error", err))
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
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Actor:       actor,
		Data:        data,
	}
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
