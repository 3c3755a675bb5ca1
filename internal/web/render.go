package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

//go:embed templates
var templateFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"minutes": formatter.FormatMinutes,
	"join":    strings.Join,
	"add":     func(a, b int) int { return a + b },
	"fav": func(kind, id string, on bool) favoriteButton {
		return favoriteButton{Kind: models.Kind(kind), ID: id, Favorite: on}
	},
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
}

// parseTemplates builds one template set per page, each with the layout and partials.
func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files)+1)
	for _, file := range files {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		if pages[name], err = clone.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}
	pages["partials"] = base
	return pages, nil
}

// page is the data every template receives.
type page struct {
	Title     string
	User      *models.User
	Path      string
	Error     string
	Notice    string
	OAuthName string
	Data      any
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// render writes a full page. Rendering happens into a buffer so a template
// error can still become a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	s.execute(w, r, status, name, "layout", p)
}

// renderPartial writes one named block of a page's template set.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, block string, data any) {
	s.execute(w, r, status, "partials", block, data)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, name, block string, data any) {
	if p, ok := data.(page); ok {
		p.User = currentUser(r)
		p.Path = r.URL.Path
		p.OAuthName = s.oauthName
		if p.Notice == "" {
			p.Notice = r.URL.Query().Get("notice")
		}
		data = p
	}

	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("unknown template", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, block, data); err != nil {
		s.logger.Error("template failed", "name", name, "block", block, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// statusFor maps error sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is what the error banner shows. Internal errors are not echoed.
func userMessage(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return "We couldn't find that page."
	case http.StatusForbidden:
		return "You don't have permission to do that."
	case http.StatusBadGateway:
		return "The content service is unavailable right now. Please try again shortly."
	case http.StatusInternalServerError:
		return "Something went wrong on our side."
	default:
		return err.Error()
	}
}

// fail logs err and renders it in the error banner, as a partial for HTMX requests.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	msg := userMessage(err, status)
	if isHTMX(r) {
		w.Header().Set("HX-Retarget", "#errors")
		w.Header().Set("HX-Reswap", "innerHTML")
		s.renderPartial(w, r, status, "error-banner", msg)
		return
	}
	s.render(w, r, status, "error", page{Title: http.StatusText(status), Error: msg})
}

// redirect sends HTMX clients a client-side redirect and everyone else a 303.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// localPath keeps redirect targets on this site.
func localPath(p, fallback string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return fallback
	}
	return p
}
