package handler

import (
	"net/http"

	"github.com/leavewise/compliance-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeSuccess(w http.ResponseWriter, status int, payload map[string]any) {
	httputil.WriteSuccess(w, status, payload)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
