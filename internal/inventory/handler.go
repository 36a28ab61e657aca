package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/view"
)

const (
	dashboardPath = "/inventory/dashboard"
	entriesPath   = "/inventory/entries"
	exitsPath     = "/inventory/exits"
)

// Catalog is the part of the item catalog the pages read.
type Catalog interface {
	List(ctx context.Context, filter items.ListFilter) ([]items.Item, error)
	Classes(ctx context.Context) ([]items.Class, error)
}

// SupplierDirectory lists suppliers selectable on entry lines.
type SupplierDirectory interface {
	Active(ctx context.Context) ([]suppliers.Supplier, error)
}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   Catalog
	suppliers SupplierDirectory
	carts     CartStore
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, catalog Catalog, directory SupplierDirectory, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, catalog: catalog, suppliers: directory, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpViewInventory)).Get("/dashboard", h.dashboard)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpRecordMovements))
		r.Route("/entries", func(r chi.Router) { h.mountCart(r, KindEntry) })
		r.Route("/exits", func(r chi.Router) { h.mountCart(r, KindExit) })
	})
}

func (h *Handler) mountCart(r chi.Router, kind MovementKind) {
	r.Get("/", h.showCart(kind))
	r.Post("/lines", h.addLine(kind))
	r.Post("/lines/{index}/delete", h.removeLine(kind))
	r.Post("/confirm", h.confirm(kind))
	r.Post("/cancel", h.cancel(kind))
}

// DashboardFilter is the search box state of the dashboard.
type DashboardFilter struct {
	Search string
	Field  string
}

// dashboardFilters maps the "filtro_por" values to the catalog and the ledger.
// Ubicacion narrows both tables.
func dashboardFilters(f DashboardFilter) (items.ListFilter, MovementFilter) {
	var catalog items.ListFilter
	var ledger MovementFilter
	switch f.Field {
	case string(items.SearchDescription), string(items.SearchClass):
		catalog = items.ListFilter{Search: f.Search, Field: items.SearchField(f.Field)}
	case string(MovementByItem), string(MovementByDestination):
		ledger = MovementFilter{Search: f.Search, Field: MovementField(f.Field)}
	case string(items.SearchLocation):
		catalog = items.ListFilter{Search: f.Search, Field: items.SearchLocation}
		ledger = MovementFilter{Search: f.Search, Field: MovementByLocation}
	}
	return catalog, ledger
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := DashboardFilter{Search: strings.TrimSpace(q.Get("busqueda")), Field: q.Get("filtro_por")}
	if filter.Field == "" {
		filter.Field = string(items.SearchDescription)
	}
	catalogFilter, ledgerFilter := dashboardFilters(filter)

	list, err := h.catalog.List(r.Context(), catalogFilter)
	if err != nil {
		h.serverError(w, "list items", err)
		return
	}
	classes, err := h.catalog.Classes(r.Context())
	if err != nil {
		h.serverError(w, "list classes", err)
		return
	}
	movements, err := h.service.ListMovements(r.Context(), ledgerFilter.Search, ledgerFilter.Field)
	if err != nil {
		h.serverError(w, "list movements", err)
		return
	}

	h.render(w, r, "pages/inventory/dashboard.html", "Inventario", map[string]any{
		"Items":     list,
		"Classes":   classes,
		"Movements": movements,
		"Filter":    filter,
		"Fields": []string{
			string(items.SearchDescription), string(items.SearchClass), string(items.SearchLocation),
			string(MovementByItem), string(MovementByDestination),
		},
	}, http.StatusOK)
}

func (h *Handler) showCart(kind MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		cart, err := h.carts.Load(sess, kind)
		if err != nil {
			h.logger.Warn("discarded unreadable cart", slog.String("kind", string(kind)), slog.Any("error", err))
		}
		catalog, err := h.catalog.List(r.Context(), items.ListFilter{})
		if err != nil {
			h.serverError(w, "list items", err)
			return
		}
		data := map[string]any{
			"Cart":  cart,
			"Items": catalog,
		}
		template, title := "pages/inventory/entries.html", "Registro de entradas"
		if kind == KindEntry {
			active, err := h.suppliers.Active(r.Context())
			if err != nil {
				h.serverError(w, "list suppliers", err)
				return
			}
			data["Suppliers"] = active
		} else {
			template, title = "pages/inventory/exits.html", "Registro de salidas"
		}
		h.render(w, r, template, title, data, http.StatusOK)
	}
}

func (h *Handler) addLine(kind MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := cartPath(kind)
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		cart, _ := h.carts.Load(sess, kind)

		itemID, _ := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("elemento")), 10, 64)
		qty, err := shared.ParseDecimal(r.PostFormValue("cantidad"))
		if err != nil {
			h.redirectWithFlash(w, r, back, shared.FlashError, "La cantidad debe ser un número válido.")
			return
		}

		var line PendingLine
		if kind == KindEntry {
			supplierID, _ := strconv.ParseInt(strings.TrimSpace(r.PostFormValue("proveedor")), 10, 64)
			line, err = h.service.AddEntryLine(r.Context(), cart, EntryLineInput{ItemID: itemID, Quantity: qty, SupplierID: supplierID})
		} else {
			line, err = h.service.AddExitLine(r.Context(), cart, ExitLineInput{ItemID: itemID, Quantity: qty, Destination: r.PostFormValue("destino")})
		}
		if err != nil {
			h.failure(w, r, back, "add cart line", err)
			return
		}
		if err := h.carts.Save(sess, cart); err != nil {
			h.serverError(w, "save cart", err)
			return
		}
		h.redirectWithFlash(w, r, back, shared.FlashSuccess, fmt.Sprintf("\"%s\" agregado a la lista.", line.Description))
	}
}

func (h *Handler) removeLine(kind MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := cartPath(kind)
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			h.redirectWithFlash(w, r, back, shared.FlashError, ErrLineIndex.UserMessage())
			return
		}
		sess := shared.SessionFromContext(r.Context())
		cart, _ := h.carts.Load(sess, kind)
		removed, err := h.service.RemoveLine(cart, index)
		if err != nil {
			h.redirectWithFlash(w, r, back, shared.FlashError, shared.UserSafeMessage(err))
			return
		}
		if err := h.carts.Save(sess, cart); err != nil {
			h.serverError(w, "save cart", err)
			return
		}
		h.redirectWithFlash(w, r, back, shared.FlashInfo, fmt.Sprintf("\"%s\" eliminado de la lista.", removed.Description))
	}
}

func (h *Handler) confirm(kind MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		back := cartPath(kind)
		sess := shared.SessionFromContext(r.Context())
		cart, _ := h.carts.Load(sess, kind)
		actor, _ := shared.ActorFromContext(r.Context())

		result, err := h.service.Commit(r.Context(), cart, actor.ID)
		if err != nil {
			h.failure(w, r, back, "commit cart", err)
			return
		}
		if err := h.carts.Save(sess, cart); err != nil {
			h.serverError(w, "save cart", err)
			return
		}
		h.logger.Info("movements committed",
			slog.String("kind", string(result.Kind)),
			slog.Int("lines", result.Lines),
			slog.String("folio", result.Folio),
			slog.Int64("actor_id", actor.ID))

		msg := fmt.Sprintf("Se registraron %d salidas correctamente.", result.Lines)
		if kind == KindEntry {
			msg = fmt.Sprintf("Se registraron %d entradas con folio %s.", result.Lines, result.Folio)
		}
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashSuccess, msg)
	}
}

func (h *Handler) cancel(kind MovementKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		cart, _ := h.carts.Load(sess, kind)
		h.service.Cancel(cart)
		if err := h.carts.Save(sess, cart); err != nil {
			h.serverError(w, "save cart", err)
			return
		}
		h.redirectWithFlash(w, r, cartPath(kind), shared.FlashInfo, "Se descartaron los elementos pendientes.")
	}
}

func cartPath(kind MovementKind) string {
	if kind == KindExit {
		return exitsPath
	}
	return entriesPath
}

// failure shows validation problems to the user and logs everything else.
func (h *Handler) failure(w http.ResponseWriter, r *http.Request, back, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	h.redirectWithFlash(w, r, back, shared.FlashError, shared.UserSafeMessage(err))
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
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
