package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/repositories"
	"github.com/desertthunder/trainhub/internal/server"
	"github.com/desertthunder/trainhub/internal/shared"
)

// SessionCookie names the login cookie.
const SessionCookie = "trainhub_session"

type ctxKey int

const userKey ctxKey = iota

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func userID(r *http.Request) string {
	if u := currentUser(r); u != nil {
		return u.ID
	}
	return ""
}

// loadUser resolves the session cookie to a user. Stale cookies are cleared.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.sessionUser(cookie.Value)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrSessionExpired) {
				s.logger.Error("failed to load session", "error", err)
			}
			s.clearSession(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (s *Server) sessionUser(token string) (*models.User, error) {
	session, err := s.sessions.Get(token)
	if err != nil {
		return nil, err
	}
	return s.users.Get(session.UserID)
}

// requireAuth sends anonymous visitors to the login page and back afterwards.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) != nil {
			next(w, r)
			return
		}

		target := r.URL.RequestURI()
		if r.Method != http.MethodGet {
			target = localPath(refererPath(r), "/")
		}
		redirect(w, r, "/login?next="+url.QueryEscape(target))
	}
}

func (s *Server) startSession(w http.ResponseWriter, user *models.User) error {
	session, err := s.sessions.Create(user.ID, s.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type authForm struct {
	Email string
	Name  string
	Next  string
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", page{Title: "Sign in", Data: authForm{Next: r.URL.Query().Get("next")}})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errors.Join(shared.ErrInvalidInput, err))
		return
	}

	form := authForm{Email: strings.TrimSpace(r.FormValue("email")), Next: r.FormValue("next")}
	user, err := s.users.Authenticate(form.Email, r.FormValue("password"))
	if err != nil {
		msg := "Email or password is incorrect."
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			s.logger.Error("login failed", "error", err)
			msg = "Sign in failed. Please try again."
		}
		s.render(w, r, statusFor(err), "login", page{Title: "Sign in", Error: msg, Data: form})
		return
	}

	if err := s.startSession(w, user); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, localPath(form.Next, "/"), http.StatusSeeOther)
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", page{Title: "Create account", Data: authForm{}})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errors.Join(shared.ErrInvalidInput, err))
		return
	}

	form := authForm{Email: strings.TrimSpace(r.FormValue("email")), Name: strings.TrimSpace(r.FormValue("name"))}
	password := r.FormValue("password")

	fail := func(status int, msg string) {
		s.render(w, r, status, "register", page{Title: "Create account", Error: msg, Data: form})
	}

	if len(password) < repositories.MinPasswordLength {
		fail(http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	}
	if password != r.FormValue("confirm") {
		fail(http.StatusBadRequest, "Passwords do not match.")
		return
	}

	user := models.NewUser(form.Email, form.Name)
	if err := s.users.Register(user, password); err != nil {
		switch {
		case errors.Is(err, shared.ErrConflict):
			fail(http.StatusConflict, "An account with that email already exists.")
		case errors.Is(err, shared.ErrInvalidInput):
			fail(http.StatusBadRequest, err.Error())
		default:
			s.fail(w, r, err)
		}
		return
	}

	if err := s.startSession(w, user); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if err := s.sessions.Delete(cookie.Value); err != nil {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	s.clearSession(w)
	redirect(w, r, "/")
}

// oauthLogin finishes an OAuth login by upserting the account and starting a session.
func (s *Server) oauthLogin(w http.ResponseWriter, r *http.Request, identity server.OAuthUser) error {
	user, err := s.users.Upsert(models.NewUser(identity.Email, identity.Name))
	if err != nil {
		return err
	}
	if err := s.startSession(w, user); err != nil {
		return err
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile", page{Title: "Profile", Data: currentUser(r)})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errors.Join(shared.ErrInvalidInput, err))
		return
	}

	user := *currentUser(r)
	user.Name = strings.TrimSpace(r.FormValue("name"))
	user.AvatarURL = strings.TrimSpace(r.FormValue("avatar_url"))

	fail := func(err error) {
		s.render(w, r, statusFor(err), "profile", page{Title: "Profile", Error: err.Error(), Data: &user})
	}

	if err := s.users.Update(&user); err != nil {
		if statusFor(err) >= 500 {
			s.fail(w, r, err)
			return
		}
		fail(err)
		return
	}

	if password := r.FormValue("password"); password != "" {
		if err := s.users.SetPassword(user.ID, password); err != nil {
			if statusFor(err) >= 500 {
				s.fail(w, r, err)
				return
			}
			fail(err)
			return
		}
	}

	http.Redirect(w, r, "/profile?notice="+url.QueryEscape("Profile saved."), http.StatusSeeOther)
}
