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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// User represents a WebAuthn user. Applications should implement this
// interface to integrate with their existing user model.
//
// WebAuthnID must return a stable opaque uniquifier, never an email or
// username: the handle ends up inside authenticator storage and must not
// leak identity.
type User interface {
	webauthn.User

	// Active reports whether the account may authenticate. Inactive users
	// are refused at ceremony begin.
	Active() bool
}

// Credential is the relying party's record of one registered authenticator.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	// Globally unique across all users.
	ID []byte `json:"id"`

	// UserHandle is the owning user's WebAuthn uniquifier.
	UserHandle []byte `json:"user_handle"`

	// Name is the user-chosen nickname, unique within the owner's
	// credential set (case-sensitive).
	Name string `json:"name"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator flags captured at registration.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data.
	Authenticator AuthenticatorData `json:"authenticator"`

	// Extensions holds the raw client extension outputs from registration,
	// kept opaque for forward compatibility.
	Extensions []byte `json:"extensions,omitempty"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection. Zero means
	// the authenticator does not implement counting; nonzero counters must
	// never decrease across successful authentications.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`

	// Attachment indicates how the authenticator is attached.
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
}

// CeremonyResult is the outcome of a completed authentication ceremony.
type CeremonyResult struct {
	// Verified is true when the assertion verified against the stored key.
	Verified bool `json:"verified"`

	// UserVerified is true iff the strict verification pass succeeded,
	// i.e. the authenticator proved a local user check (PIN/biometric)
	// rather than mere presence. Callers use this to decide whether the
	// authentication alone satisfies a multi-factor requirement.
	UserVerified bool `json:"user_verified"`

	// NewSignCount is the authenticator-reported counter for the caller to
	// persist through CredentialStore.Update.
	NewSignCount uint32 `json:"new_sign_count"`

	// CloneWarning is true when the reported counter regressed while both
	// counters were nonzero.
	CloneWarning bool `json:"clone_warning"`

	// Credential is the stored credential that produced the assertion.
	Credential *Credential `json:"-"`

	// User is the credential's owner.
	User User `json:"-"`
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
			Attachment:   c.Authenticator.Attachment,
		},
	}
}

// Clone returns an independent copy of the credential, including its byte
// slices. Stores return clones so callers can never mutate stored state
// outside the store's own lock.
func (c *Credential) Clone() *Credential {
	clone := *c
	clone.ID = append([]byte(nil), c.ID...)
	clone.UserHandle = append([]byte(nil), c.UserHandle...)
	clone.PublicKey = append([]byte(nil), c.PublicKey...)
	clone.Extensions = append([]byte(nil), c.Extensions...)
	clone.Authenticator.AAGUID = append([]byte(nil), c.Authenticator.AAGUID...)
	clone.Transport = append([]protocol.AuthenticatorTransport(nil), c.Transport...)
	return &clone
}

// newCredential builds a fully-populated descriptor from a verified
// registration.
func newCredential(userHandle []byte, name string, wc *webauthn.Credential, extensions []byte) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserHandle:      userHandle,
		Name:            name,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
			Attachment:   wc.Authenticator.Attachment,
		},
		Extensions: extensions,
		CreatedAt:  time.Now().UTC(),
	}
}

// DefaultUser is a simple implementation of the User interface.
// Applications can use this directly or as a reference for their own
// implementation.
type DefaultUser struct {
	handle      []byte
	identity    string
	displayName string
	active      bool
	credentials []*Credential
}

// NewDefaultUser creates a user with a freshly generated opaque handle.
func NewDefaultUser(identity, displayName string) *DefaultUser {
	handle := uuid.New()
	return &DefaultUser{
		handle:      handle[:],
		identity:    identity,
		displayName: displayName,
		active:      true,
		credentials: make([]*Credential, 0),
	}
}

// WebAuthnID returns the user's opaque WebAuthn handle.
func (u *DefaultUser) WebAuthnID() []byte {
	return u.handle
}

// WebAuthnName returns the user's identity (typically email or username).
func (u *DefaultUser) WebAuthnName() string {
	return u.identity
}

// WebAuthnDisplayName returns the user's display name.
func (u *DefaultUser) WebAuthnDisplayName() string {
	if u.displayName == "" {
		return u.identity
	}
	return u.displayName
}

// WebAuthnCredentials returns the user's registered credentials.
func (u *DefaultUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// Active reports whether the account may authenticate.
func (u *DefaultUser) Active() bool {
	return u.active
}

// SetActive enables or disables the account.
func (u *DefaultUser) SetActive(active bool) {
	u.active = active
}

// Identity returns the user's identity string.
func (u *DefaultUser) Identity() string {
	return u.identity
}

// AddCredential adds a new credential to the user.
func (u *DefaultUser) AddCredential(cred *Credential) {
	u.credentials = append(u.credentials, cred)
}

// UpdateCredential updates an existing credential.
func (u *DefaultUser) UpdateCredential(cred *Credential) {
	for i, c := range u.credentials {
		if string(c.ID) == string(cred.ID) {
			u.credentials[i] = cred
			return
		}
	}
}

// Credentials returns the user's credentials.
func (u *DefaultUser) Credentials() []*Credential {
	return u.credentials
}
