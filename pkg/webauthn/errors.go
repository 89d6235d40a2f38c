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

package webauthn

import (
	"errors"
	"fmt"
)

// Sentinel errors for WebAuthn ceremony operations. Every error a ceremony
// can produce wraps exactly one of these, so callers can branch with
// errors.Is and render field-level or API-level messages.
var (
	// ErrMalformedInput is returned when a client response cannot be
	// parsed. Parser diagnostics are never echoed to the caller.
	ErrMalformedInput = errors.New("malformed client response")

	// ErrTokenInvalid is returned when a ceremony state token fails
	// signature verification or is structurally broken. The two cases are
	// deliberately indistinguishable.
	ErrTokenInvalid = errors.New("ceremony state token invalid")

	// ErrTokenExpired is returned when a structurally valid, correctly
	// signed state token is older than the ceremony window. Expired is an
	// expected, retryable condition; invalid suggests tampering or a bug.
	ErrTokenExpired = errors.New("ceremony state token expired")

	// ErrNameInUse is returned when the requested credential name already
	// exists among the user's credentials (case-sensitive).
	ErrNameInUse = errors.New("credential name already in use")

	// ErrDuplicateCredential is returned when a credential ID is already
	// registered, for this or any other user.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrUnknownCredential is returned when no stored credential matches
	// the asserted credential ID.
	ErrUnknownCredential = errors.New("credential not registered")

	// ErrOrphanCredential is returned when a stored credential has no
	// owning user. This signals a store-consistency bug (user deletion must
	// cascade to credentials) and warrants operator alerting; it is never a
	// normal outcome.
	ErrOrphanCredential = errors.New("credential has no owning user")

	// ErrVerificationFailed is returned when the attestation or assertion
	// does not verify against the challenge, origin, RP ID, or key.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrUnknownIdentity is returned when an identity hint does not resolve
	// to a known user.
	ErrUnknownIdentity = errors.New("identity not found")

	// ErrInactiveUser is returned when the resolved user is disabled.
	ErrInactiveUser = errors.New("account is disabled")

	// ErrIdentityInUse is returned when creating a user whose identity is
	// already taken.
	ErrIdentityInUse = errors.New("identity already in use")

	// ErrUnknownCredentialName is returned when deleting a credential by a
	// name the user does not have.
	ErrUnknownCredentialName = errors.New("no credential with that name")

	// ErrNoCredentials is returned when a login is begun for a user with no
	// registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrClonedAuthenticator is returned when an authenticator reports a
	// sign counter lower than the stored one while both are nonzero.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")
)

// WebAuthnError wraps an error with the operation that produced it.
type WebAuthnError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *WebAuthnError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WebAuthnError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *WebAuthnError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new WebAuthnError with the given operation and error.
func NewError(op string, err error) error {
	return &WebAuthnError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsTokenInvalid returns true if the error indicates a bad state token.
func IsTokenInvalid(err error) bool {
	return errors.Is(err, ErrTokenInvalid)
}

// IsTokenExpired returns true if the error indicates an expired state token.
func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsNameInUse returns true if the error indicates a credential name clash.
func IsNameInUse(err error) bool {
	return errors.Is(err, ErrNameInUse)
}

// IsDuplicateCredential returns true if the error indicates a duplicate
// credential ID.
func IsDuplicateCredential(err error) bool {
	return errors.Is(err, ErrDuplicateCredential)
}

// IsUnknownCredential returns true if the error indicates an unregistered
// credential ID.
func IsUnknownCredential(err error) bool {
	return errors.Is(err, ErrUnknownCredential)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsOrphanCredential returns true if the error indicates a store-consistency
// violation.
func IsOrphanCredential(err error) bool {
	return errors.Is(err, ErrOrphanCredential)
}
