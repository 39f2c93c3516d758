package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"securelogin/internal/auth"
	"securelogin/internal/obs"
)

// ReadyProbe checks backing-store readiness (database ping when wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP surface over the auth core. Every route below /v1/auth
// is public by construction; everything else requires a session.
type API struct {
	router *mux.Router
	orch   *auth.Orchestrator
	gate   *auth.Gate
	idp    auth.IdentityProvider
	dir    auth.Directory
	audits auth.AuditReader

	readyProbe ReadyProbe
	version    string
}

// New wires the routes.
func New(orch *auth.Orchestrator, gate *auth.Gate, idp auth.IdentityProvider, dir auth.Directory, audits auth.AuditReader, rp ReadyProbe, version string) *API {
	a := &API{
		router:     mux.NewRouter(),
		orch:       orch,
		gate:       gate,
		idp:        idp,
		dir:        dir,
		audits:     audits,
		readyProbe: rp,
		version:    version,
	}

	r := a.router
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.handleInfo).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	// Login flow: no session yet.
	r.HandleFunc("/v1/auth/signup", a.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", a.handleBeginLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login/{handle}/biometric", a.handleContinueBiometric).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login/{handle}/code", a.handleContinueCode).Methods(http.MethodPost)

	// Session required.
	r.HandleFunc("/v1/auth/logout", a.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/factors", a.handleFactors).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/totp/enroll", a.handleEnrollTOTP).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/totp/activate", a.handleActivateTOTP).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/biometric/enroll", a.handleEnrollBiometric).Methods(http.MethodPost)
	r.HandleFunc("/v1/me", a.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/v1/me", a.handleUpdateMe).Methods(http.MethodPatch)
	r.HandleFunc("/v1/admin/users", a.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/users/{id}/status", a.handleSetStatus).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/audit", a.handleAuditLog).Methods(http.MethodGet)

	return a
}

// Handler returns the full middleware-wrapped handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "securelogin-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "securelogin-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": requestIDFrom(r.Context()),
	})
}

// writeReasonError reports a denial with its reason code. The message is
// deliberately generic for unauthenticated callers.
func writeReasonError(w http.ResponseWriter, r *http.Request, code int, reason string) {
	writeJSON(w, code, map[string]any{
		"error":      "request refused",
		"reason":     reason,
		"request_id": requestIDFrom(r.Context()),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// handleGateError maps taxonomy errors on the privileged surface, where
// specific reasons are fine to show.
func handleGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrAccountDisabled):
		writeReasonError(w, r, http.StatusForbidden, auth.ReasonAccountDisabled)
	case errors.Is(err, auth.ErrInsufficientRole):
		writeReasonError(w, r, http.StatusForbidden, auth.ReasonInsufficientRole)
	case errors.Is(err, auth.ErrTargetIsAdmin):
		writeReasonError(w, r, http.StatusConflict, auth.ReasonTargetIsAdmin)
	case errors.Is(err, auth.ErrLockedOut):
		writeReasonError(w, r, http.StatusTooManyRequests, auth.ReasonLockedOut)
	case errors.Is(err, auth.ErrInvalidCode):
		writeReasonError(w, r, http.StatusBadRequest, auth.ReasonInvalidCode)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeReasonError(w, r, http.StatusServiceUnavailable, auth.ReasonTransientError)
	}
}
