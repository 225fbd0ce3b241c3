package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"fitstack/auth/internal/identity/service"
	"fitstack/auth/internal/server"
)

// Handler exposes the authentication facade over REST.
type Handler struct {
	svc    *service.AuthService
	logger *zap.Logger
}

// NewHandler returns an auth HTTP handler.
func NewHandler(svc *service.AuthService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the auth routes. authed wraps routes that require a live
// session behind a Bearer token.
func (h *Handler) Mount(r chi.Router, authed func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/password-reset", h.handlePasswordReset)
		r.Post("/password-reset/confirm", h.handlePasswordResetConfirm)

		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Post("/check", h.handleCheck)
		})
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password,
		r.UserAgent(), server.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(res.ExpiresAt).Seconds()),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(res.ExpiresAt).Seconds()),
	})
}

type logoutRequest struct {
	All bool `json:"all"`
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identityID, _ := server.GetIdentityID(r.Context())
	sessionID, _ := server.GetSessionID(r.Context())

	var req logoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	var err error
	if req.All {
		err = h.svc.LogoutAll(r.Context(), identityID)
	} else {
		err = h.svc.Logout(r.Context(), identityID, sessionID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identityID, _ := server.GetIdentityID(r.Context())
	info, err := h.svc.CurrentUser(r.Context(), identityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:          info.ID,
		Email:       info.Email,
		Active:      info.Active,
		LastLoginAt: info.LastLoginAt,
		Roles:       info.Roles,
		Permissions: info.Permissions,
	})
}

type checkRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	ScopeID  string `json:"scope_id"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Resource == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "resource and action are required")
		return
	}
	identityID, _ := server.GetIdentityID(r.Context())
	allowed, err := h.svc.CheckPermission(r.Context(), identityID, req.Resource, req.Action, req.ScopeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	// Same response whether or not the account exists.
	w.WriteHeader(http.StatusAccepted)
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
