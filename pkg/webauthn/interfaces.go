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
	"context"

	"github.com/go-webauthn/webauthn/protocol"
)

// UserStore resolves identity hints at ceremony begin. This interface is
// intentionally minimal - applications bring their own user model.
type UserStore interface {
	// FindByIdentity resolves an identity hint (email, username) to a user.
	// Returns ErrUnknownIdentity if no user matches.
	FindByIdentity(ctx context.Context, identity string) (User, error)
}

// CredentialStore manages WebAuthn credential persistence. The pre-checks
// the ceremonies perform (name-in-use, duplicate credential ID) are
// advisory only; the store is the authority and must enforce both inside a
// single atomic operation per insert, guarded by uniqueness constraints,
// to close the check-then-act race between concurrent registrations.
//
// Read methods return snapshots, never aliases of stored state: callers
// mutate the snapshot (sign count, last use) and hand it back to Update,
// which must run the counter-regression check against the stored value
// inside its own atomic read-modify-write.
type CredentialStore interface {
	// FindByCredentialID retrieves a credential by its globally unique ID.
	// Returns ErrUnknownCredential if the credential does not exist.
	FindByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// FindOwner resolves the user owning a credential. Returns
	// ErrOrphanCredential if the owner is gone; with correct cascade-delete
	// from user deletion this is unreachable.
	FindOwner(ctx context.Context, cred *Credential) (User, error)

	// GetByUserHandle retrieves all credentials owned by a user handle.
	// Returns an empty slice if the user has no credentials.
	GetByUserHandle(ctx context.Context, handle []byte) ([]*Credential, error)

	// Create stores a new credential atomically. Returns
	// ErrDuplicateCredential if the credential ID exists for any user, and
	// ErrNameInUse if the name exists within the owner's set.
	Create(ctx context.Context, user User, cred *Credential) error

	// Update persists counter/last-use changes as a single atomic
	// read-modify-write. A nonzero stored counter must never decrease;
	// implementations return ErrClonedAuthenticator instead of accepting a
	// regression.
	Update(ctx context.Context, cred *Credential) error

	// Delete removes a credential. Implementations must also cascade
	// credential deletion from user deletion.
	// Returns ErrUnknownCredential if the credential does not exist.
	Delete(ctx context.Context, cred *Credential) error
}

// SelectionPolicy supplies the authenticator-selection criteria for a
// registration ceremony: resident-key preference, attachment, and the
// verification requirement requested from the authenticator. The default
// policy derives everything from Config; applications can vary it per user
// (e.g. require a two-factor capable key for admins).
type SelectionPolicy interface {
	AuthenticatorSelection(user User) protocol.AuthenticatorSelection
}

// configSelectionPolicy is the default SelectionPolicy, derived entirely
// from Config.
type configSelectionPolicy struct {
	config *Config
}

func (p *configSelectionPolicy) AuthenticatorSelection(User) protocol.AuthenticatorSelection {
	return p.config.authenticatorSelection()
}
