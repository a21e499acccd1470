package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/leavewise/compliance-server-go/internal/audit"
	apperrors "github.com/leavewise/compliance-server-go/internal/errors"
	"github.com/leavewise/compliance-server-go/internal/middleware"
	"github.com/leavewise/compliance-server-go/internal/model"
	"github.com/leavewise/compliance-server-go/internal/service"
	"github.com/leavewise/compliance-server-go/internal/util"
)

// AdminHandler serves the admin control surface. Every route requires an
// admin session; mutations additionally require the CSRF token.
type AdminHandler struct {
	adminService     *service.AdminService
	codeService      *service.AccessCodeService
	settingsService  *service.SettingsService
	assistantService *service.AssistantService
	sessionMW        *middleware.SessionMiddleware
	csrfMW           *middleware.CSRFMiddleware
}

func NewAdminHandler(
	adminService *service.AdminService,
	codeService *service.AccessCodeService,
	settingsService *service.SettingsService,
	assistantService *service.AssistantService,
	sessionMW *middleware.SessionMiddleware,
	csrfMW *middleware.CSRFMiddleware,
) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		codeService:      codeService,
		settingsService:  settingsService,
		assistantService: assistantService,
		sessionMW:        sessionMW,
		csrfMW:           csrfMW,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.sessionMW.RequireAuth)
	r.Use(h.sessionMW.RequireAdmin)
	r.Use(h.csrfMW.Handler)

	r.Get("/stats", h.Stats)

	// Users
	r.Get("/users", h.ListUsers)
	r.Get("/users/export", h.ExportUsersCSV)
	r.Get("/users/{id}", h.GetUser)
	r.Patch("/users/{id}", h.UpdateUser)
	r.Delete("/users/{id}", h.DeleteUser)

	// Access codes
	r.Get("/codes", h.ListCodes)
	r.Post("/codes", h.GenerateCode)
	r.Delete("/codes/{id}", h.RevokeCode)

	// Assistant settings
	r.Get("/settings/instructions/{tool}", h.GetInstructions)
	r.Put("/settings/instructions/{tool}", h.SaveInstructions)

	// Upstream API key
	r.Get("/api-key", h.GetAPIConfig)
	r.Put("/api-key", h.SaveAPIKey)
	r.Post("/api-key/test", h.TestAPIKey)

	// Data and maintenance
	r.Get("/export", h.ExportAll)
	r.Post("/maintenance/optimize", h.Optimize)

	return r
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"stats": stats})
}

// Users

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	users, total, err := h.adminService.GetUsers(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"items": users,
		"total": total,
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.adminService.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName     *string `json:"firstName"`
		LastName      *string `json:"lastName"`
		IsAdmin       *bool   `json:"isAdmin"`
		EmailVerified *bool   `json:"emailVerified"`
		AccessLevel   *string `json:"accessLevel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	params := model.UpdateUserParams{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		IsAdmin:       req.IsAdmin,
		EmailVerified: req.EmailVerified,
	}
	if req.AccessLevel != nil {
		level := model.AccessLevel(*req.AccessLevel)
		params.AccessLevel = &level
	}

	user, err := h.adminService.UpdateUser(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.adminService.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventUserDelete,
		UserID: middleware.GetUser(r.Context()).ID,
		Details: map[string]interface{}{
			"targetUserId": id,
		},
	})

	writeSuccess(w, http.StatusOK, nil)
}

func (h *AdminHandler) ExportUsersCSV(w http.ResponseWriter, r *http.Request) {
	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventDataExport,
		UserID: middleware.GetUser(r.Context()).ID,
		Details: map[string]interface{}{
			"format": "csv",
		},
	})

	filename := fmt.Sprintf("users-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.adminService.ExportUsersCSV(r.Context(), w); err != nil {
		// Headers are already out; all we can do is log.
		log.Error().Err(err).Msg("user CSV export failed")
	}
}

// Access codes

func (h *AdminHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	codes, total, err := h.codeService.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"items": codes,
		"total": total,
	})
}

func (h *AdminHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetUser(r.Context())

	var req struct {
		Length       int    `json:"length"`
		Duration     int    `json:"duration"`
		DurationType string `json:"durationType"`
		Description  string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	code, err := h.codeService.Issue(r.Context(), service.IssueCodeParams{
		Length:       req.Length,
		Duration:     req.Duration,
		DurationType: model.DurationType(req.DurationType),
		Description:  req.Description,
		IssuerID:     admin.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventCodeIssued,
		UserID: admin.ID,
		Details: map[string]interface{}{
			"codeId": code.ID,
			"code":   util.MaskCode(code.Code),
		},
	})

	writeSuccess(w, http.StatusCreated, map[string]any{"code": code})
}

func (h *AdminHandler) RevokeCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.codeService.Revoke(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventCodeRevoked,
		UserID: middleware.GetUser(r.Context()).ID,
		Details: map[string]interface{}{
			"codeId": id,
		},
	})

	writeSuccess(w, http.StatusOK, nil)
}

// Assistant settings

func (h *AdminHandler) GetInstructions(w http.ResponseWriter, r *http.Request) {
	tool := model.ToolName(chi.URLParam(r, "tool"))

	text, err := h.settingsService.GetInstructions(r.Context(), tool)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"instructions": text})
}

func (h *AdminHandler) SaveInstructions(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetUser(r.Context())
	tool := model.ToolName(chi.URLParam(r, "tool"))

	var req struct {
		Instructions string `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	setting, err := h.settingsService.SaveInstructions(r.Context(), tool, req.Instructions, admin.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"setting": setting})
}

// Upstream API key

func (h *AdminHandler) GetAPIConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.adminService.GetActiveAPIConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"configured": cfg != nil,
		"config":     cfg,
	})
}

func (h *AdminHandler) SaveAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	cfg, err := h.adminService.SaveAPIKey(r.Context(), req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventAPIKeyUpdated,
		UserID: middleware.GetUser(r.Context()).ID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{"config": cfg})
}

// TestAPIKey checks a candidate key against the upstream API without
// saving it.
func (h *AdminHandler) TestAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.assistantService.TestKey(r.Context(), req.APIKey); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"valid": true})
}

// Data and maintenance

func (h *AdminHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	data, err := h.adminService.ExportAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventDataExport,
		UserID: middleware.GetUser(r.Context()).ID,
		Details: map[string]interface{}{
			"format": "json",
		},
	})

	filename := fmt.Sprintf("export-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, data)
}

func (h *AdminHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if err := h.adminService.OptimizeStorage(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventMaintenanceRun,
		UserID: middleware.GetUser(r.Context()).ID,
	})

	writeSuccess(w, http.StatusOK, nil)
}
