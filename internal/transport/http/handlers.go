// Copyright 2026 The Hostpanel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joern42/hostpanel/internal/audit"
	"github.com/joern42/hostpanel/internal/auth"
	"github.com/joern42/hostpanel/internal/daemon"
	"github.com/joern42/hostpanel/internal/identity"
	"github.com/joern42/hostpanel/internal/observability/logger"
	"github.com/joern42/hostpanel/internal/observability/metrics"
	"github.com/joern42/hostpanel/internal/session"
	"github.com/joern42/hostpanel/internal/settings"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	authService    *auth.Service
	sessionService *session.Service
	credentials    identity.CredentialStore
	hasher         *identity.Hasher
	settings       settings.Provider
	notifier       daemon.Notifier
	auditLogger    audit.Logger
	meter          *metrics.Meter
	sessionConfig  SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authService *auth.Service,
	sessionService *session.Service,
	credentials identity.CredentialStore,
	hasher *identity.Hasher,
	settingsProvider settings.Provider,
	notifier daemon.Notifier,
	auditLogger audit.Logger,
	meter *metrics.Meter,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		authService:    authService,
		sessionService: sessionService,
		credentials:    credentials,
		hasher:         hasher,
		settings:       settingsProvider,
		notifier:       notifier,
		auditLogger:    auditLogger,
		meter:          meter,
		sessionConfig:  sessionConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Get("/me", h.Me)
			r.Put("/me/password", h.ChangePassword)
		})
	})

	return r
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoginRequest is the login form payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login runs the authentication pipeline and, on success, rotates the
// session and sets the cookie. Session fixation is handled by the
// principal storage: the pre-login session (if any) is destroyed and a
// fresh ID minted before the cookie goes out.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	clientIP := getClientIP(r)
	binding := &session.Binding{
		ID:        h.getSessionFromCookie(r),
		IPAddress: clientIP,
		UserAgent: r.UserAgent(),
	}
	hint := &lostPasswordHint{}
	ctx := session.WithBinding(r.Context(), binding)
	ctx = withLostPasswordHint(ctx, hint)

	start := time.Now()
	res, err := h.authService.Authenticate(ctx, auth.Attempt{
		Username:   req.Username,
		Password:   req.Password,
		ClientAddr: clientIP,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "authentication pipeline failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "authentication unavailable")
		return
	}
	h.meter.RecordLogin(ctx, res.Code().String(), time.Since(start).Seconds())

	if !res.Valid() {
		payload := map[string]any{
			"error":    "authentication failed",
			"messages": res.Messages(),
		}
		if hint.Scheduled() {
			payload["lost_password"] = true
		}
		respondJSON(w, http.StatusUnauthorized, payload)
		return
	}

	if err := h.authService.SetIdentity(ctx, *res.Identity()); err != nil {
		slog.ErrorContext(ctx, "failed to persist identity", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, binding.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   res.Identity().UserID,
		"username":  res.Identity().Username,
		"user_type": res.Identity().Type,
	})
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.getSessionFromCookie(r)
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	binding := &session.Binding{ID: sessionID}
	ctx := session.WithBinding(r.Context(), binding)

	if ident, err := h.authService.Identity(ctx); err == nil {
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeLogout,
			ActorID:   ident.UserID,
			Resource:  "session",
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
		})
	}

	if err := h.authService.ClearIdentity(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to clear identity", logger.Error(err))
	}
	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident, err := h.authService.Identity(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   ident.UserID,
		"username":  ident.Username,
		"user_type": ident.Type,
	})
}

// ChangePasswordRequest is the password change payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password, enforces the configured
// minimum length, rewrites the credential, and signs the user out
// everywhere. The daemon is notified so managed services pick up the new
// credential.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	ident, err := h.credentials.FindByUsername(ctx, identity.NormalizeUsername(GetUsername(ctx)))
	if err != nil {
		slog.ErrorContext(ctx, "failed to load credentials", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	if !h.hasher.Verify(req.CurrentPassword, ident.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	minLength, err := h.settings.Int(ctx, settings.KeyMinPasswordLength)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read password policy", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read password policy")
		return
	}
	if len(req.NewPassword) < minLength {
		respondError(w, http.StatusBadRequest, "new password is too short")
		return
	}

	newHash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	if err := h.credentials.UpdatePasswordHash(ctx, ident.UserID, newHash); err != nil {
		slog.ErrorContext(ctx, "failed to update password", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	if err := h.notifier.Notify(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to notify daemon", logger.Error(err))
	}

	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypePasswordChanged,
		ActorID:   ident.UserID,
		Resource:  "credentials",
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})

	// All sessions die with the old password, this one included.
	if err := h.sessionService.DestroyByUser(ctx, ident.UserID); err != nil {
		slog.ErrorContext(ctx, "failed to destroy user sessions", logger.Error(err))
	}
	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed, please sign in again"})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Domain:   h.sessionConfig.CookieDomain,
		Path:     h.sessionConfig.CookiePath,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    "",
		Path:     h.sessionConfig.CookiePath,
		MaxAge:   -1,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
