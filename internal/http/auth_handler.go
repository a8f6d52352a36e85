package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/room-reservations/internal/application"
)

const (
	// DefaultSessionCookie is the cookie carrying the browser session id.
	DefaultSessionCookie = "room_session"

	loginSucceededPath = "/?auth=success"
	loginFailedPath    = "/?error=auth_failed"
)

type authService interface {
	BeginLogin(ctx context.Context) (string, error)
	CompleteLogin(ctx context.Context, state, code string) (application.Session, error)
	Status(ctx context.Context, sessionID string) (application.AuthStatus, error)
	Logout(ctx context.Context, sessionID string) error
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	service   authService
	cookie    CookieConfig
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = DefaultSessionCookie
	}
	base := defaultLogger(logger)
	return &AuthHandler{service: service, cookie: cookie, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// BeginLogin redirects the browser to the identity provider.
func (h *AuthHandler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	target, err := h.service.BeginLogin(r.Context())
	if err != nil {
		h.log(r.Context(), "BeginLogin").WarnContext(r.Context(), "login unavailable", "error", err, "error_kind", application.ErrorKind(err))
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the login and sends the browser back to the app.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.log(r.Context(), "Callback", "error_kind", "provider").WarnContext(r.Context(), "provider rejected login", "error", providerErr)
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	session, err := h.service.CompleteLogin(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	h.setSessionCookie(w, session.ID, session.ExpiresAt)
	http.Redirect(w, r, loginSucceededPath, http.StatusFound)
}

// Status reports the signed in identity.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	status, err := h.service.Status(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if status.Restored != nil {
		h.setSessionCookie(w, status.Restored.ID, status.Restored.ExpiresAt)
		h.log(r.Context(), "Status").InfoContext(r.Context(), "session restored from latest identity")
	}

	resp := authStatusResponse{Authenticated: status.Authenticated}
	if status.User != nil {
		resp.User = &authUserDTO{Email: status.User.Email, Name: status.User.Name}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Logout ends the session. The cookie is cleared even when the store fails.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	err := h.service.Logout(r.Context(), SessionIDFromContext(r.Context()))
	h.clearSessionCookie(w)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, id string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type authStatusResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *authUserDTO `json:"user"`
}

type authUserDTO struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
