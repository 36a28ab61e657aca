package items

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
)

// DashboardPath is where catalog actions return to.
const DashboardPath = "/inventory/dashboard"

// Handler serves catalog mutations.
type Handler struct {
	logger  *slog.Logger
	service *Service
	audit   shared.AuditRecorder
	rbac    rbac.Middleware
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, audit shared.AuditRecorder, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, rbac: rbac}
}

// MountRoutes registers catalog routes under /inventory/items.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpCreateItems)).Post("/", h.create)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, msg := parseItemForm(r)
	if msg != "" {
		h.redirectWithFlash(w, r, shared.FlashError, msg)
		return
	}
	item, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Warn("create item failed", slog.String("description", in.Description), slog.Any("error", err))
		h.redirectWithFlash(w, r, shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if h.audit != nil {
		if err := h.audit.Record(r.Context(), shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "item.created",
			Entity:   "item",
			EntityID: strconv.FormatInt(item.ID, 10),
			Meta:     map[string]any{"description": item.Description},
		}); err != nil {
			h.logger.Warn("audit item", slog.Any("error", err))
		}
	}
	h.redirectWithFlash(w, r, shared.FlashSuccess, "Elemento \""+item.Description+"\" agregado correctamente.")
}

func parseItemForm(r *http.Request) (NewItem, string) {
	in := NewItem{
		Description: r.PostFormValue("descripcion"),
		Unit:        r.PostFormValue("unidad"),
		Location:    r.PostFormValue("ubicacion"),
		UnitCost:    decimal.Zero,
	}
	if raw := strings.TrimSpace(r.PostFormValue("clase")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return in, "La clase seleccionada no es válida."
		}
		in.ClassID = id
	}
	if raw := strings.TrimSpace(r.PostFormValue("costo_unitario")); raw != "" {
		cost, err := shared.ParseDecimal(raw)
		if err != nil {
			return in, "El costo unitario debe ser un número válido."
		}
		in.UnitCost = cost
	}
	return in, ""
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}
