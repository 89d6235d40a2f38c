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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()

	// Unknown identity
	_, err := store.FindByIdentity(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	// Create and find
	user, err := store.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.WebAuthnID())
	assert.True(t, user.Active())

	found, err := store.FindByIdentity(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.WebAuthnID(), found.WebAuthnID())

	byHandle, err := store.FindByHandle(ctx, user.WebAuthnID())
	require.NoError(t, err)
	assert.Equal(t, user.WebAuthnID(), byHandle.WebAuthnID())

	// Duplicate identity
	_, err = store.Create(ctx, "alice@example.com", "Alice Again")
	assert.ErrorIs(t, err, ErrIdentityInUse)

	// FindOrCreate returns the existing user
	same, err := store.FindOrCreate(ctx, "alice@example.com", "ignored")
	require.NoError(t, err)
	assert.Equal(t, user.WebAuthnID(), same.WebAuthnID())

	// FindOrCreate provisions a new one
	fresh, err := store.FindOrCreate(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)
	assert.NotEqual(t, user.WebAuthnID(), fresh.WebAuthnID())

	// Delete
	require.NoError(t, store.Delete(ctx, "alice@example.com"))
	_, err = store.FindByIdentity(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	_, err = store.FindByHandle(ctx, user.WebAuthnID())
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	assert.ErrorIs(t, store.Delete(ctx, "alice@example.com"), ErrUnknownIdentity)
}

func TestMemoryUserStore_HandleUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUserStore()

	seen := make(map[string]bool)
	for _, identity := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		user, err := store.Create(ctx, identity, identity)
		require.NoError(t, err)
		handle := string(user.WebAuthnID())
		assert.False(t, seen[handle], "handle repeated")
		seen[handle] = true
	}
}

func TestMemoryCredentialStore_Create(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, alice, &Credential{
		ID:   []byte("cred-1"),
		Name: "laptop",
	}))

	// Credential IDs are globally unique, even across users.
	err = store.Create(ctx, bob, &Credential{ID: []byte("cred-1"), Name: "other"})
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// Names are unique per user only.
	err = store.Create(ctx, alice, &Credential{ID: []byte("cred-2"), Name: "laptop"})
	assert.ErrorIs(t, err, ErrNameInUse)

	require.NoError(t, store.Create(ctx, bob, &Credential{
		ID:   []byte("cred-3"),
		Name: "laptop",
	}))

	// Create stamps the owner handle onto the credential.
	stored, err := store.FindByCredentialID(ctx, []byte("cred-3"))
	require.NoError(t, err)
	assert.Equal(t, bob.WebAuthnID(), stored.UserHandle)
}

func TestMemoryCredentialStore_FindOwner(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	cred := &Credential{ID: []byte("cred-owner"), Name: "key"}
	require.NoError(t, store.Create(ctx, alice, cred))

	owner, err := store.FindOwner(ctx, cred)
	require.NoError(t, err)
	assert.Equal(t, alice.WebAuthnID(), owner.WebAuthnID())

	// A credential the store never saw has no owner.
	_, err = store.FindOwner(ctx, &Credential{ID: []byte("cred-ghost")})
	assert.ErrorIs(t, err, ErrOrphanCredential)
}

func TestMemoryCredentialStore_Update(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	cred := &Credential{ID: []byte("cred-count"), Name: "counter key"}
	require.NoError(t, store.Create(ctx, alice, cred))

	// Unknown credential
	err = store.Update(ctx, &Credential{ID: []byte("cred-ghost")})
	assert.ErrorIs(t, err, ErrUnknownCredential)

	advance := func(count uint32) error {
		next := *cred
		next.Authenticator.SignCount = count
		err := store.Update(ctx, &next)
		if err == nil {
			cred = &next
		}
		return err
	}

	// Zero to nonzero, then monotonic increases.
	require.NoError(t, advance(5))
	require.NoError(t, advance(6))
	require.NoError(t, advance(6))

	// Regression from a nonzero counter is refused.
	assert.ErrorIs(t, advance(3), ErrClonedAuthenticator)

	stored, err := store.FindByCredentialID(ctx, []byte("cred-count"))
	require.NoError(t, err)
	assert.Equal(t, uint32(6), stored.Authenticator.SignCount)
}

func TestMemoryCredentialStore_Update_FetchedSnapshotRegression(t *testing.T) {
	// Reads hand out snapshots, so regressing a fetched credential's
	// counter cannot overwrite the stored value before Update compares
	// against it.
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, alice, &Credential{
		ID:            []byte("cred-snapshot"),
		Name:          "key",
		Authenticator: AuthenticatorData{SignCount: 10},
	}))

	fetched, err := store.FindByCredentialID(ctx, []byte("cred-snapshot"))
	require.NoError(t, err)

	fetched.Authenticator.SignCount = 2
	assert.ErrorIs(t, store.Update(ctx, fetched), ErrClonedAuthenticator)

	stored, err := store.FindByCredentialID(ctx, []byte("cred-snapshot"))
	require.NoError(t, err)
	assert.Equal(t, uint32(10), stored.Authenticator.SignCount)
}

func TestMemoryCredentialStore_ReadsDoNotAliasStore(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	original := &Credential{
		ID:        []byte("cred-alias"),
		Name:      "key",
		PublicKey: []byte{1, 2, 3},
	}
	require.NoError(t, store.Create(ctx, alice, original))

	// Mutating the caller's struct after Create changes nothing stored.
	original.Name = "mutated"
	original.PublicKey[0] = 9

	stored, err := store.FindByCredentialID(ctx, []byte("cred-alias"))
	require.NoError(t, err)
	assert.Equal(t, "key", stored.Name)
	assert.Equal(t, []byte{1, 2, 3}, stored.PublicKey)

	// Mutating a listed credential changes nothing stored either.
	listed, err := store.GetByUserHandle(ctx, alice.WebAuthnID())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Name = "rewritten"

	stored, err = store.FindByCredentialID(ctx, []byte("cred-alias"))
	require.NoError(t, err)
	assert.Equal(t, "key", stored.Name)
}

func TestMemoryCredentialStore_Update_ZeroCounterExempt(t *testing.T) {
	// Authenticators that do not implement counting always report zero;
	// staying at zero is not a regression.
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	cred := &Credential{ID: []byte("cred-nocount"), Name: "no counter"}
	require.NoError(t, store.Create(ctx, alice, cred))

	next := *cred
	next.Authenticator.SignCount = 0
	assert.NoError(t, store.Update(ctx, &next))
}

func TestMemoryCredentialStore_Delete(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	cred := &Credential{ID: []byte("cred-del"), Name: "key"}
	require.NoError(t, store.Create(ctx, alice, cred))

	require.NoError(t, store.Delete(ctx, cred))
	_, err = store.FindByCredentialID(ctx, []byte("cred-del"))
	assert.ErrorIs(t, err, ErrUnknownCredential)

	assert.ErrorIs(t, store.Delete(ctx, cred), ErrUnknownCredential)
}

func TestMemoryCredentialStore_DeleteByUserHandle(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUserStore()
	store := NewMemoryCredentialStore()

	alice, err := users.Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, alice, &Credential{ID: []byte("a-1"), Name: "one"}))
	require.NoError(t, store.Create(ctx, alice, &Credential{ID: []byte("a-2"), Name: "two"}))
	require.NoError(t, store.Create(ctx, bob, &Credential{ID: []byte("b-1"), Name: "one"}))

	require.NoError(t, store.DeleteByUserHandle(ctx, alice.WebAuthnID()))

	aliceCreds, err := store.GetByUserHandle(ctx, alice.WebAuthnID())
	require.NoError(t, err)
	assert.Empty(t, aliceCreds)

	bobCreds, err := store.GetByUserHandle(ctx, bob.WebAuthnID())
	require.NoError(t, err)
	assert.Len(t, bobCreds, 1)
}
