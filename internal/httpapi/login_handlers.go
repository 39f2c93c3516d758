package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"securelogin/internal/audit"
	"securelogin/internal/auth"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	account, err := a.orch.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		// Duplicate emails get the same generic answer as store failures:
		// the signup surface must not confirm which addresses exist.
		writeError(w, r, http.StatusConflict, "signup failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{"account_id": account.ID})
	writeJSON(w, http.StatusCreated, account)
}

type beginLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.orch.BeginLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeReasonError(w, r, http.StatusServiceUnavailable, auth.ReasonTransientError)
		return
	}
	writeLoginResult(w, r, result)
}

type biometricStepRequest struct {
	// Sample is the base64 capture blob; Skip abandons the step and falls
	// through to the code factor.
	Sample string `json:"sample,omitempty"`
	Skip   bool   `json:"skip,omitempty"`
}

func (a *API) handleContinueBiometric(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	var req biometricStepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var sample auth.BiometricSample
	if req.Sample != "" {
		raw, err := base64.StdEncoding.DecodeString(req.Sample)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "sample must be base64")
			return
		}
		sample = raw
	}
	result, err := a.orch.ContinueBiometric(r.Context(), handle, sample, req.Skip)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unknown login attempt")
		return
	}
	writeLoginResult(w, r, result)
}

type codeStepRequest struct {
	Code string `json:"code"`
}

func (a *API) handleContinueCode(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	var req codeStepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.orch.ContinueCode(r.Context(), handle, req.Code)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unknown login attempt")
		return
	}
	writeLoginResult(w, r, result)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "no session")
		return
	}
	if err := a.idp.InvalidateSessions(r.Context(), principal.AccountID); err != nil {
		writeReasonError(w, r, http.StatusServiceUnavailable, auth.ReasonTransientError)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// writeLoginResult maps a state-machine result onto HTTP. Rejections keep
// their reason code but a deliberately generic message; the state and
// handle are all a well-behaved client needs.
func writeLoginResult(w http.ResponseWriter, r *http.Request, result auth.LoginResult) {
	code := http.StatusOK
	if result.State == auth.StateRejected {
		switch result.Reason {
		case auth.ReasonTransientError:
			code = http.StatusServiceUnavailable
		case auth.ReasonLockedOut:
			code = http.StatusTooManyRequests
		default:
			code = http.StatusUnauthorized
		}
	}
	writeJSON(w, code, result)
}
