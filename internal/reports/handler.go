package reports

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/view"
)

const dashboardPath = "/reports"

// Handler serves the report dashboard, generation and downloads.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	limiter   func(http.Handler) http.Handler
}

// NewHandler constructs the report handler. Generation is limited to
// perMinute requests per user.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware, perMinute int) *Handler {
	h := &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
	if perMinute <= 0 {
		perMinute = 10
	}
	h.limiter = httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(keyByActor),
		httprate.WithLimitHandler(h.tooManyRequests),
	)
	return h
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpViewReports)).Get("/", h.dashboard)
	r.With(h.rbac.Require(rbac.OpViewReports)).Get("/download/{filename}", h.download)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpGenerateReports), h.limiter)
		r.Get("/inventory", h.inventory)
		r.Get("/movements", h.movements)
	})
}

func keyByActor(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.ID != 0 {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.redirectWithFlash(w, r, dashboardPath, shared.FlashWarning, "Has generado demasiados reportes. Espera un momento e intenta de nuevo.")
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("load report dashboard failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/reports/dashboard.html", "Reportes", map[string]any{
		"Dashboard":   d,
		"ChartLabels": d.ChartLabels(),
		"ChartValues": d.ChartValues(),
		"Bars":        d.Bars(),
		"Formats":     []Format{FormatXLSX, FormatCSV, FormatPDF},
	})
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, ok := ParseFormat(q.Get("format"))
	if !ok {
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashError, "Formato de reporte no soportado.")
		return
	}
	file, err := h.service.GenerateInventory(r.Context(), q.Get("tipo_reporte"), format)
	h.finish(w, r, file, err)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	format, ok := ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashError, "Formato de reporte no soportado.")
		return
	}
	file, err := h.service.GenerateMovements(r.Context(), format)
	h.finish(w, r, file, err)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, file GeneratedFile, err error) {
	switch {
	case err == nil:
		http.Redirect(w, r, DownloadPath(file.Name), http.StatusSeeOther)
	case errors.Is(err, ErrPDFNotImplemented):
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashWarning, "La generación de PDF requiere implementación.")
	case errors.Is(err, ErrNoMovements):
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashInfo, "No hay movimientos registrados para generar el reporte.")
	default:
		h.logger.Error("generate report failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, dashboardPath, shared.FlashError, "No se pudo generar el reporte. Intenta de nuevo.")
	}
}

// DownloadPath is the URL of a generated file.
func DownloadPath(name string) string {
	return dashboardPath + "/download/" + url.PathEscape(name)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	f, info, err := h.service.Open(name)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("open report failed", slog.String("file", name), slog.Any("error", err))
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", ContentType(info.Name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name}))
	http.ServeContent(w, r, info.Name, info.ModTime, f)
}

// ContentType infers the download type from the file extension.
func ContentType(name string) string {
	if typ := mime.TypeByExtension(filepath.Ext(name)); typ != "" {
		return typ
	}
	return "application/octet-stream"
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.templates.Render(w, template, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Actor:       actor,
		Data:        data,
	}); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
