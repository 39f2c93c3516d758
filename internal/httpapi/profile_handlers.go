package httpapi

import (
	"net/http"

	"securelogin/internal/auth"
)

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	account, err := a.dir.Find(r.Context(), principal.AccountID)
	if err != nil {
		handleGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type updateMeRequest struct {
	DisplayName string `json:"display_name"`
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	// Even editing your own profile goes through the gate: a blocked or
	// fired account keeps its session until expiry but can no longer act.
	if err := a.gate.Authorize(r.Context(), principal.AccountID, auth.ActionChangeOwnSettings); err != nil {
		handleGateError(w, r, err)
		return
	}
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.dir.UpdateDisplayName(r.Context(), principal.AccountID, req.DisplayName); err != nil {
		handleGateError(w, r, err)
		return
	}
	account, err := a.dir.Find(r.Context(), principal.AccountID)
	if err != nil {
		handleGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
