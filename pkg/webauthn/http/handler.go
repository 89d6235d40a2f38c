// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeys.
//
// go-passkeys is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkeys/pkg/webauthn"
)

// UserDirectory is the user lookup surface the handlers need on top of the
// core UserStore. MemoryUserStore implements it; applications back it with
// their account system.
type UserDirectory interface {
	webauthn.UserStore

	// FindByHandle resolves a WebAuthn user handle to a user.
	FindByHandle(ctx context.Context, handle []byte) (webauthn.User, error)

	// FindOrCreate returns the user for an identity, provisioning one on
	// first registration.
	FindOrCreate(ctx context.Context, identity, displayName string) (webauthn.User, error)
}

// Handler provides HTTP handlers for WebAuthn ceremonies.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *webauthn.Service
	users   UserDirectory
	creds   webauthn.CredentialStore
	logger  *slog.Logger
}

// NewHandler creates a new WebAuthn HTTP handler.
func NewHandler(service *webauthn.Service, users UserDirectory, creds webauthn.CredentialStore) *Handler {
	return &Handler{
		service: service,
		users:   users,
		creds:   creds,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "identity": "user@example.com",
//	    "display_name": "User Name",       // optional
//	    "credential_name": "YubiKey 5C"
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
// Header: X-Ceremony-State (token for FinishRegistration)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Identity == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identity is required")
		return
	}
	if req.CredentialName == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "credential_name is required")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Identity
	}

	user, err := h.users.FindOrCreate(r.Context(), req.Identity, displayName)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	options, token, err := h.service.BeginRegistration(r.Context(), user, req.CredentialName)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyState, token)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-Ceremony-State (from BeginRegistration)
// Request body: attestation response from the authenticator
// Response: RegistrationResponse
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	token := r.Header.Get(HeaderCeremonyState)
	if token == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeStateInvalid, "ceremony state header is required")
		return
	}

	// Strict parse; raw parser diagnostics stay out of the response.
	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	cred, err := h.service.FinishRegistration(r.Context(), token, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	owner, err := h.users.FindByHandle(r.Context(), cred.UserHandle)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	// The store is the authority on uniqueness; either this commits one
	// new descriptor or nothing is persisted.
	if err := h.creds.Create(r.Context(), owner, cred); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RegistrationResponse{
		Name:         cred.Name,
		CredentialID: base64.RawURLEncoding.EncodeToString(cred.ID),
	})
}

// BeginLogin handles POST /login/begin
//
// Request body:
//
//	{
//	    "identity": "user@example.com" // optional
//	}
//
// Without an identity the discoverable-credential flow is used.
// Response: WebAuthn PublicKeyCredentialRequestOptions
// Header: X-Ceremony-State (token for FinishLogin)
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for discoverable credentials
		req = BeginLoginRequest{}
	}

	options, token, err := h.service.BeginLogin(r.Context(), req.Identity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyState, token)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishLogin handles POST /login/finish
//
// Header: X-Ceremony-State (from BeginLogin)
// Request body: assertion response from the authenticator
// Response: LoginResponse
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	token := r.Header.Get(HeaderCeremonyState)
	if token == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeStateInvalid, "ceremony state header is required")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	result, err := h.service.FinishLogin(r.Context(), token, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	// Persist the authenticator-reported counter and last use as one
	// atomic store update.
	cred := result.Credential
	cred.Authenticator.SignCount = result.NewSignCount
	cred.LastUsedAt = time.Now().UTC()
	if err := h.creds.Update(r.Context(), cred); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, LoginResponse{
		UserID:       base64.RawURLEncoding.EncodeToString(result.User.WebAuthnID()),
		UserVerified: result.UserVerified,
		SignCount:    result.NewSignCount,
	})
}

// Credentials handles GET /credentials?identity=...
//
// Response: CredentialsResponse in descriptor-list order.
func (h *Handler) Credentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	identity := r.URL.Query().Get("identity")
	if identity == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identity is required")
		return
	}

	user, err := h.users.FindByIdentity(r.Context(), identity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	summaries, err := h.service.Credentials(r.Context(), user)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CredentialsResponse{Credentials: summaries})
}

// DeleteCredential handles DELETE /credentials?identity=...&name=...
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	identity := r.URL.Query().Get("identity")
	name := r.URL.Query().Get("name")
	if identity == "" || name == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "identity and name are required")
		return
	}

	user, err := h.users.FindByIdentity(r.Context(), identity)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if err := h.service.DeleteCredential(r.Context(), user, name); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps ceremony errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webauthn.ErrTokenExpired):
		h.writeError(w, http.StatusBadRequest, ErrorCodeStateExpired, "ceremony expired, please retry")
	case errors.Is(err, webauthn.ErrTokenInvalid):
		h.writeError(w, http.StatusBadRequest, ErrorCodeStateInvalid, "ceremony state invalid")
	case errors.Is(err, webauthn.ErrMalformedInput):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "malformed request")
	case errors.Is(err, webauthn.ErrNameInUse):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNameInUse, "credential name already in use")
	case errors.Is(err, webauthn.ErrDuplicateCredential):
		h.writeError(w, http.StatusConflict, ErrorCodeDuplicateCredential, "authenticator already registered")
	case errors.Is(err, webauthn.ErrUnknownCredential):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnknownCredential, "credential not registered")
	case errors.Is(err, webauthn.ErrUnknownCredentialName):
		h.writeError(w, http.StatusNotFound, ErrorCodeUnknownCredential, "no credential with that name")
	case errors.Is(err, webauthn.ErrUnknownIdentity):
		h.writeError(w, http.StatusNotFound, ErrorCodeIdentityNotFound, "identity not found")
	case errors.Is(err, webauthn.ErrInactiveUser):
		h.writeError(w, http.StatusForbidden, ErrorCodeInactiveAccount, "account is disabled")
	case errors.Is(err, webauthn.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "no registered credentials")
	case errors.Is(err, webauthn.ErrClonedAuthenticator):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeClonedAuthenticator, "authenticator counter regressed")
	case errors.Is(err, webauthn.ErrVerificationFailed):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, webauthn.ErrOrphanCredential):
		// Store-consistency bug, not a user error. Alert-worthy.
		h.logger.Error("orphan credential detected", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	default:
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
