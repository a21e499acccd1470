package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/leavewise/compliance-server-go/internal/audit"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/service"
)

type contextKey string

const (
	UserContextKey    contextKey = "user"
	SessionContextKey contextKey = "session"

	// SessionCookieName is the cookie carrying the opaque session token.
	SessionCookieName = "session_token"
)

// SessionMiddleware resolves the session cookie to a user and session and
// stores both on the request context.
type SessionMiddleware struct {
	authService *service.AuthService
}

func NewSessionMiddleware(authService *service.AuthService) *SessionMiddleware {
	return &SessionMiddleware{authService: authService}
}

// RequireAuth rejects requests without a valid session.
func (m *SessionMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, session, err := m.authService.Authenticate(r.Context(), SessionToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if user == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, apperrors.Unauthorized("Authentication required"))
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin sessions. Runs after RequireAuth.
func (m *SessionMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			writeError(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		if !user.IsAdmin {
			audit.LogFromRequest(r, audit.Event{
				Type:   audit.EventAuthFailure,
				UserID: user.ID,
				Details: map[string]interface{}{
					"reason": "admin_required",
				},
			})
			writeError(w, apperrors.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser returns the authenticated user from the context, or nil.
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserContextKey).(*model.User)
	return user
}

// GetSession returns the authenticated session from the context, or nil.
func GetSession(ctx context.Context) *model.Session {
	session, _ := ctx.Value(SessionContextKey).(*model.Session)
	return session
}

// SessionToken extracts the raw session token from the request cookie.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie writes the session cookie. Secure is set in production
// so the token never travels over plaintext HTTP.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
