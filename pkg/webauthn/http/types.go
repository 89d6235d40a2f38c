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

import "github.com/jeremyhahn/go-passkeys/pkg/webauthn"

// HeaderCeremonyState carries the signed ceremony state token from a begin
// response to the matching finish request.
const HeaderCeremonyState = "X-Ceremony-State"

// BeginRegistrationRequest is the request body for starting registration.
type BeginRegistrationRequest struct {
	// Identity is the user's login identity, e.g. email (required).
	Identity string `json:"identity"`

	// DisplayName is the user's display name (optional, defaults to identity).
	DisplayName string `json:"display_name,omitempty"`

	// CredentialName is the nickname for the new authenticator (required).
	CredentialName string `json:"credential_name"`
}

// BeginLoginRequest is the request body for starting authentication.
type BeginLoginRequest struct {
	// Identity is the user's login identity (optional). If not provided,
	// the discoverable-credential flow is used.
	Identity string `json:"identity,omitempty"`
}

// RegistrationResponse is the response after successful registration.
type RegistrationResponse struct {
	// Name is the nickname of the registered credential.
	Name string `json:"name"`

	// CredentialID is the base64url-encoded credential ID.
	CredentialID string `json:"credential_id"`
}

// LoginResponse is the response after successful authentication.
type LoginResponse struct {
	// UserID is the base64url-encoded user handle.
	UserID string `json:"user_id"`

	// UserVerified is true when the authenticator proved a local user
	// check, i.e. this sign-in alone satisfies multi-factor policy.
	UserVerified bool `json:"user_verified"`

	// SignCount is the persisted authenticator counter.
	SignCount uint32 `json:"sign_count"`
}

// CredentialsResponse lists a user's registered credentials.
type CredentialsResponse struct {
	Credentials []webauthn.CredentialSummary `json:"credentials"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeStateInvalid        = "state_invalid"
	ErrorCodeStateExpired        = "state_expired"
	ErrorCodeNameInUse           = "name_in_use"
	ErrorCodeDuplicateCredential = "duplicate_credential"
	ErrorCodeUnknownCredential   = "unknown_credential"
	ErrorCodeIdentityNotFound    = "identity_not_found"
	ErrorCodeInactiveAccount     = "inactive_account"
	ErrorCodeNoCredentials       = "no_credentials"
	ErrorCodeVerificationFailed  = "verification_failed"
	ErrorCodeClonedAuthenticator = "cloned_authenticator"
	ErrorCodeInternalError       = "internal_error"
)
