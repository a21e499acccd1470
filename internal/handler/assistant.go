package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/middleware"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/service"
)

// AssistantHandler serves the leave-assistant endpoints for signed-in
// users.
type AssistantHandler struct {
	assistantService *service.AssistantService
	sessionMW        *middleware.SessionMiddleware
	csrfMW           *middleware.CSRFMiddleware
}

func NewAssistantHandler(
	assistantService *service.AssistantService,
	sessionMW *middleware.SessionMiddleware,
	csrfMW *middleware.CSRFMiddleware,
) *AssistantHandler {
	return &AssistantHandler{
		assistantService: assistantService,
		sessionMW:        sessionMW,
		csrfMW:           csrfMW,
	}
}

func (h *AssistantHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.sessionMW.RequireAuth)
	r.Use(h.csrfMW.Handler)

	r.Post("/complete", h.Complete)
	r.Get("/conversations", h.ListConversations)

	return r
}

func (h *AssistantHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		ToolName  string `json:"toolName"`
		InputText string `json:"inputText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.assistantService.Complete(r.Context(), model.ToolName(req.ToolName), req.InputText, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"response":   result.Response,
		"tokensUsed": result.TokensUsed,
		"cost":       result.Cost,
	})
}

func (h *AssistantHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	p := ParsePagination(r)

	convs, err := h.assistantService.ListConversations(r.Context(), user.ID, p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"items": convs,
		"total": len(convs),
	})
}
