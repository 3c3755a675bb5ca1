// Package web serves the trainhub dashboard as server-rendered HTML.
//
// Pages are html/template documents embedded in the binary. A small amount of
// HTMX swaps favorite buttons and training steps in place, and every page opens
// an EventSource on /events so changes made elsewhere (another tab, another
// user, a content sync) refresh the main column.
//
// Authentication is a session cookie backed by the sessions table. Accounts are
// created with email and password, or through the optional OAuth provider.
package web

import (
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/server"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
)

// UserStore is the account storage the web layer needs (implemented by repositories.UserRepository).
type UserStore interface {
	Register(user *models.User, plain string) error
	Get(id string) (*models.User, error)
	Update(user *models.User) error
	SetPassword(id, plain string) error
	Authenticate(email, plain string) (*models.User, error)
	Upsert(user *models.User) (*models.User, error)
}

// SessionStore persists login sessions (implemented by repositories.SessionRepository).
type SessionStore interface {
	Create(userID string, ttl time.Duration) (*models.Session, error)
	Get(token string) (*models.Session, error)
	Delete(token string) error
}

// Options holds the dependencies of a [Server].
type Options struct {
	Library        *tasks.Library
	Users          UserStore
	Sessions       SessionStore
	Broker         *events.Broker // nil disables /events
	Files          fs.FS          // uploaded objects served under /files/
	MaxUploadBytes int64
	SessionTTL     time.Duration
	CookieSecure   bool
	OAuth          shared.OAuthConfig
	Logger         *log.Logger
}

// Server renders the dashboard pages.
type Server struct {
	lib       *tasks.Library
	users     UserStore
	sessions  SessionStore
	broker    *events.Broker
	files     fs.FS
	maxUpload int64
	ttl       time.Duration
	secure    bool
	oauth     *server.OAuthHandler
	oauthName string
	pages     map[string]*template.Template
	logger    *log.Logger
}

// New parses the templates and wires the optional OAuth provider.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}

	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		lib:       opts.Library,
		users:     opts.Users,
		sessions:  opts.Sessions,
		broker:    opts.Broker,
		files:     opts.Files,
		maxUpload: opts.MaxUploadBytes,
		ttl:       opts.SessionTTL,
		secure:    opts.CookieSecure,
		pages:     pages,
		logger:    opts.Logger,
	}

	s.oauth = server.NewOAuthHandler(opts.OAuth, opts.CookieSecure, s.oauthLogin, opts.Logger)
	if s.oauth != nil {
		s.oauthName = opts.OAuth.Name
		if s.oauthName == "" {
			s.oauthName = "OAuth"
		}
	}
	return s, nil
}

// Handler returns the routed and middleware-wrapped application.
func (s *Server) Handler() http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.Recoverer(s.logger), server.RequestLogger(s.logger), s.loadUser)

	r.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.HandleFunc(http.MethodGet, "/{$}", s.dashboard)

	r.HandleFunc(http.MethodGet, "/blog", s.blog)
	r.HandleFunc(http.MethodGet, "/blog/{slug}", s.post)

	r.HandleFunc(http.MethodGet, "/resources", s.resources)
	r.HandleFunc(http.MethodGet, "/resources/new", s.requireAuth(s.newResource))
	r.HandleFunc(http.MethodPost, "/resources", s.requireAuth(s.createResource))
	r.HandleFunc(http.MethodGet, "/resources/{slug}", s.resource)
	r.HandleFunc(http.MethodGet, "/resources/{slug}/edit", s.requireAuth(s.editResource))
	r.HandleFunc(http.MethodPost, "/resources/{slug}", s.requireAuth(s.updateResource))
	r.HandleFunc(http.MethodPost, "/resources/{slug}/delete", s.requireAuth(s.deleteResource))

	r.HandleFunc(http.MethodGet, "/trainings", s.trainings)
	r.HandleFunc(http.MethodGet, "/trainings/new", s.requireAuth(s.newTraining))
	r.HandleFunc(http.MethodPost, "/trainings", s.requireAuth(s.createTraining))
	r.HandleFunc(http.MethodGet, "/trainings/{slug}", s.training)
	r.HandleFunc(http.MethodGet, "/trainings/{slug}/edit", s.requireAuth(s.editTraining))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}", s.requireAuth(s.updateTraining))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/delete", s.requireAuth(s.deleteTraining))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/reset", s.requireAuth(s.resetTraining))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/reorder", s.requireAuth(s.reorderSteps))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/steps", s.requireAuth(s.addStep))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/steps/{step}", s.requireAuth(s.updateStep))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/steps/{step}/delete", s.requireAuth(s.removeStep))
	r.HandleFunc(http.MethodPost, "/trainings/{slug}/steps/{step}/toggle", s.requireAuth(s.toggleStep))

	r.HandleFunc(http.MethodGet, "/favorites", s.requireAuth(s.favorites))
	r.HandleFunc(http.MethodPost, "/favorites/{kind}/{id}", s.requireAuth(s.toggleFavorite))

	r.HandleFunc(http.MethodGet, "/login", s.loginForm)
	r.HandleFunc(http.MethodPost, "/login", s.login)
	r.HandleFunc(http.MethodGet, "/register", s.registerForm)
	r.HandleFunc(http.MethodPost, "/register", s.register)
	r.HandleFunc(http.MethodPost, "/logout", s.logout)
	r.HandleFunc(http.MethodGet, "/profile", s.requireAuth(s.profile))
	r.HandleFunc(http.MethodPost, "/profile", s.requireAuth(s.updateProfile))

	r.HandleFunc(http.MethodGet, "/events", s.events)

	if s.files != nil {
		r.Handle(http.MethodGet, "/files/", http.StripPrefix("/files/", http.FileServerFS(s.files)))
	}
	if s.oauth != nil {
		r.Handler(s.oauth)
	}
	return r
}
