package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leavewise/compliance-server-go/internal/audit"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/middleware"
	"github.com/leavewise/compliance-server-go/internal/service"
)

// AuthHandler serves registration, login, logout, session introspection,
// access-code redemption, and the password reset flow.
type AuthHandler struct {
	authService  *service.AuthService
	codeService  *service.AccessCodeService
	sessionMW    *middleware.SessionMiddleware
	csrfMW       *middleware.CSRFMiddleware
	isProduction bool
}

func NewAuthHandler(
	authService *service.AuthService,
	codeService *service.AccessCodeService,
	sessionMW *middleware.SessionMiddleware,
	csrfMW *middleware.CSRFMiddleware,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		codeService:  codeService,
		sessionMW:    sessionMW,
		csrfMW:       csrfMW,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/password-reset/request", h.RequestPasswordReset)
	r.Get("/password-reset/verify", h.VerifyResetToken)
	r.Post("/password-reset/confirm", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMW.RequireAuth)
		r.Use(h.csrfMW.Handler)
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
		r.Post("/redeem", h.RedeemCode)
	})

	return r
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		AccessCode string `json:"accessCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	user, err := h.authService.Register(r.Context(), service.RegisterParams{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		AccessCode: req.AccessCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventRegister,
		UserID: user.ID,
	})

	writeSuccess(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if allowed, _ := h.authService.CheckLoginLimit(r.Context(), clientIP(r)); !allowed {
		writeError(w, apperrors.RateLimitExceeded())
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	user, session, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type: audit.EventLoginFailure,
			Details: map[string]interface{}{
				"email": req.Email,
			},
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: user.ID,
	})

	middleware.SetSessionCookie(w, token, session.ExpiresAt, h.isProduction)
	writeSuccess(w, http.StatusOK, map[string]any{
		"user":      user,
		"csrfToken": session.CSRFToken,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	if err := h.authService.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLogout,
		UserID: user.ID,
	})

	middleware.ClearSessionCookie(w, h.isProduction)
	writeSuccess(w, http.StatusOK, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	session := middleware.GetSession(r.Context())

	writeSuccess(w, http.StatusOK, map[string]any{
		"user":      user,
		"csrfToken": session.CSRFToken,
		"expiresAt": session.ExpiresAt,
	})
}

// RedeemCode upgrades an existing account with an access code after
// registration.
func (h *AuthHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	code, err := h.codeService.Redeem(r.Context(), req.Code, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventCodeRedeemed,
		UserID: user.ID,
		Details: map[string]interface{}{
			"codeId": code.ID,
		},
	})

	writeSuccess(w, http.StatusOK, map[string]any{"accessLevel": "paid"})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if allowed, _ := h.authService.CheckResetLimit(r.Context(), clientIP(r)); !allowed {
		writeError(w, apperrors.RateLimitExceeded())
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	// Uniform response whether or not the account exists.
	writeSuccess(w, http.StatusOK, map[string]any{
		"message": "If an account exists for that email, a reset link has been sent",
	})
}

func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	valid, err := h.authService.VerifyResetToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"valid": valid})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPasswordReset})

	writeSuccess(w, http.StatusOK, nil)
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already rewritten RemoteAddr from the
	// forwarding headers.
	return r.RemoteAddr
}
