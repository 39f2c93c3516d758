package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"securelogin/internal/audit"
	"securelogin/internal/auth"
)

func (a *API) handleFactors(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	summary, err := a.orch.Factors(r.Context(), principal.AccountID)
	if err != nil {
		handleGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleEnrollTOTP returns the secret and provisioning URI exactly once.
// There is no endpoint that reads them back.
func (a *API) handleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
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
	enrollment, err := a.orch.EnrollTOTP(r.Context(), principal.AccountID, account.Email)
	if err != nil {
		handleGateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.totp.enrolled", nil)
	writeJSON(w, http.StatusOK, enrollment)
}

type activateTOTPRequest struct {
	Code string `json:"code"`
}

func (a *API) handleActivateTOTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	var req activateTOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.orch.ActivateTOTP(r.Context(), principal.AccountID, req.Code); err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			writeError(w, r, http.StatusConflict, "no pending enrollment")
			return
		}
		handleGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "enrolled"})
}

type enrollBiometricRequest struct {
	Sample string `json:"sample"`
}

func (a *API) handleEnrollBiometric(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	var req enrollBiometricRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := base64.StdEncoding.DecodeString(req.Sample)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "sample must be base64")
		return
	}
	if err := a.orch.EnrollBiometric(r.Context(), principal.AccountID, sample); err != nil {
		handleGateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.biometric.enrolled", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "enrolled"})
}
