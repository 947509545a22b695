package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultAuditLimit = 100

// AuditHandler exposes the authorization audit log. Owner-only.
type AuditHandler struct {
	accounts *service.AccountService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(accounts *service.AccountService) *AuditHandler {
	return &AuditHandler{accounts: accounts}
}

// RegisterRoutes registers audit endpoints on the given Chi router.
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/audit", h.List)
}

type auditEntryResponse struct {
	ActorID    uuid.UUID `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAuditResponse(e store.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		Outcome:    e.Outcome,
		Detail:     e.Detail,
		RemoteAddr: e.RemoteAddr,
		CreatedAt:  e.CreatedAt,
	}
}

// List returns the newest audit entries.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.accounts.AuditLog(r.Context(), limit)
	if err != nil {
		log.Printf("ERROR: list audit log: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toAuditResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}
