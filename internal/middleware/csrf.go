package middleware

import (
	"net/http"

	"github.com/leavewise/compliance-server-go/internal/audit"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/util"
)

const (
	// CSRFHeaderName carries the session-bound CSRF token.
	CSRFHeaderName = "X-CSRF-Token"
	csrfQueryParam = "csrf_token"
)

// CSRFMiddleware verifies the session-bound CSRF token on every mutating
// request. Runs after RequireAuth so the session is already on the context.
type CSRFMiddleware struct{}

func NewCSRFMiddleware() *CSRFMiddleware {
	return &CSRFMiddleware{}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		session := GetSession(r.Context())
		if session == nil {
			writeError(w, apperrors.Unauthorized("Authentication required"))
			return
		}

		token := r.Header.Get(CSRFHeaderName)
		if token == "" {
			token = r.URL.Query().Get(csrfQueryParam)
		}

		if token == "" || !util.ConstantTimeEqual(token, session.CSRFToken) {
			audit.LogFromRequest(r, audit.Event{
				Type:   audit.EventCSRFFailure,
				UserID: session.UserID,
				Details: map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
				},
			})
			writeError(w, apperrors.InvalidCSRF())
			return
		}

		next.ServeHTTP(w, r)
	})
}
