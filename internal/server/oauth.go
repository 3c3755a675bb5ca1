package server

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trainhub/internal/shared"
	"golang.org/x/oauth2"
)

const (
	OAuthLoginPath    = "/auth/oauth/login"
	OAuthCallbackPath = "/auth/oauth/callback"
	oauthStateCookie  = "trainhub_oauth_state"
	oauthStateTTL     = 10 * time.Minute
)

// OAuthUser is the identity returned by the provider's userinfo endpoint.
type OAuthUser struct {
	Subject string
	Email   string
	Name    string
}

// LoginFunc finishes a login for the provider identity, typically by creating a
// session cookie and redirecting. Returned errors become 500 responses.
type LoginFunc func(w http.ResponseWriter, r *http.Request, user OAuthUser) error

// OAuthHandler runs the OAuth2 authorization code flow against a generic provider.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	config      *oauth2.Config
	userInfoURL string
	onLogin     LoginFunc
	secure      bool
	logger      *log.Logger
}

// NewOAuthHandler creates a handler for the configured provider. It returns nil
// when the provider is not fully configured.
func NewOAuthHandler(cfg shared.OAuthConfig, secure bool, onLogin LoginFunc, logger *log.Logger) *OAuthHandler {
	if !cfg.Enabled() {
		return nil
	}
	return &OAuthHandler{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		onLogin:     onLogin,
		secure:      secure,
		logger:      logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{OAuthLoginPath, OAuthCallbackPath}
}

// ServeHTTP dispatches between the login redirect and the callback.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case OAuthLoginPath:
		h.login(w, r)
	case OAuthCallbackPath:
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login stores a random state in a short-lived cookie and redirects to the provider.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/oauth",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusFound)
}

// callback validates state, exchanges the code and hands the identity to onLogin.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || cookie.Value != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/oauth", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("oauth authorization failed",
			"error", r.URL.Query().Get("error"),
			"description", r.URL.Query().Get("error_description"))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	user, err := h.fetchUser(r.Context(), token)
	if err != nil {
		h.logger.Error("oauth userinfo failed", "error", err)
		http.Error(w, "Could not read account details", http.StatusBadGateway)
		return
	}

	if err := h.onLogin(w, r, user); err != nil {
		h.logger.Error("oauth login failed", "email", user.Email, "error", err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
	}
}

// fetchUser reads the userinfo endpoint with the access token.
func (h *OAuthHandler) fetchUser(ctx context.Context, token *oauth2.Token) (OAuthUser, error) {
	client := h.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return OAuthUser{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return OAuthUser{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OAuthUser{}, fmt.Errorf("%w: userinfo returned %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var info struct {
		Sub               string `json:"sub"`
		ID                any    `json:"id"`
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
		Login             string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return OAuthUser{}, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	user := OAuthUser{Subject: info.Sub, Email: strings.ToLower(strings.TrimSpace(info.Email)), Name: info.Name}
	if user.Subject == "" && info.ID != nil {
		user.Subject = fmt.Sprint(info.ID)
	}
	if user.Name == "" {
		user.Name = cmp.Or(info.PreferredUsername, info.Login)
	}
	if user.Email == "" {
		return OAuthUser{}, fmt.Errorf("%w: provider did not return an email address", shared.ErrAuthFailed)
	}
	return user, nil
}
