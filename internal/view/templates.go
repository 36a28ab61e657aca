package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Actor       shared.Actor
	Data        any
}

// IsAdmin is used by the navigation partial.
func (d TemplateData) IsAdmin() bool {
	return rbac.Level(d.Actor.Level) == rbac.LevelAdmin
}

// LoggedIn reports whether an actor was resolved for the request.
func (d TemplateData) LoggedIn() bool {
	return d.Actor.ID != 0
}

// Can reports whether the actor may perform op, e.g. {{if .Can "reports.view"}}.
func (d TemplateData) Can(op string) bool {
	return d.LoggedIn() && rbac.Allowed(rbac.Level(d.Actor.Level), rbac.Operation(op))
}

// NewEngine parses every embedded template. Pages declare their own names
// with {{define "pages/..."}} so nested directories are supported.
func NewEngine() (*Engine, error) {
	tpl := template.New("root").Funcs(funcMap())
	err := fs.WalkDir(web.Templates, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		content, err := fs.ReadFile(web.Templates, path)
		if err != nil {
			return err
		}
		if _, err := tpl.New(path).Parse(string(content)); err != nil {
			return fmt.Errorf("view: parse %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData and status 200.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus buffers the template so a failed execution never produces a
// half written page.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02/01/2006 15:04")
		},
		"qty": func(d decimal.Decimal) string {
			return d.StringFixed(shared.Scale)
		},
		"money": Money,
		"levelLabel": func(level int) string {
			return rbac.Level(level).Label()
		},
		"add": func(a, b int) int { return a + b },
		"hasPrefix": strings.HasPrefix,
	}
}

// Money formats d as "$1,234.56".
func Money(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String() + "." + frac
}
