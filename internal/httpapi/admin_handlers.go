package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"securelogin/internal/audit"
	"securelogin/internal/auth"
)

// handleListUsers backs the admin panel: every role assignment joined
// with its account profile.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	if err := a.gate.Authorize(r.Context(), principal.AccountID, auth.ActionViewAdminPanel); err != nil {
		handleGateError(w, r, err)
		return
	}

	assignments, err := a.gate.Assignments(r.Context())
	if err != nil {
		handleGateError(w, r, err)
		return
	}

	type userRow struct {
		auth.RoleAssignment
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
	rows := make([]userRow, 0, len(assignments))
	for _, assignment := range assignments {
		row := userRow{RoleAssignment: assignment}
		if account, err := a.dir.Find(r.Context(), assignment.AccountID); err == nil {
			row.Email = account.Email
			row.DisplayName = account.DisplayName
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": rows})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	targetID := mux.Vars(r)["id"]
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.gate.SetStatus(r.Context(), principal.AccountID, targetID, auth.Status(req.Status)); err != nil {
		handleGateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.status_changed", map[string]any{
		"target": targetID,
		"status": req.Status,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "applied"})
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	if err := a.gate.Authorize(r.Context(), principal.AccountID, auth.ActionViewAuditLog); err != nil {
		handleGateError(w, r, err)
		return
	}
	if a.audits == nil {
		writeError(w, r, http.StatusNotFound, "audit history not available")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := a.audits.Recent(r.Context(), limit)
	if err != nil {
		writeReasonError(w, r, http.StatusServiceUnavailable, auth.ReasonTransientError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
