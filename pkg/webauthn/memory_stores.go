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
	"encoding/hex"
	"sync"
)

// MemoryUserStore is an in-memory implementation of UserStore.
// This is intended for development and testing only.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byIdentity map[string]*DefaultUser
	byHandle   map[string]*DefaultUser
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byIdentity: make(map[string]*DefaultUser),
		byHandle:   make(map[string]*DefaultUser),
	}
}

// FindByIdentity resolves an identity to a user.
func (s *MemoryUserStore) FindByIdentity(ctx context.Context, identity string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byIdentity[identity]
	if !ok {
		return nil, ErrUnknownIdentity
	}
	return user, nil
}

// FindByHandle resolves a WebAuthn user handle to a user.
func (s *MemoryUserStore) FindByHandle(ctx context.Context, handle []byte) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byHandle[hex.EncodeToString(handle)]
	if !ok {
		return nil, ErrUnknownIdentity
	}
	return user, nil
}

// Create creates a new user with the given identity and display name.
func (s *MemoryUserStore) Create(ctx context.Context, identity, displayName string) (*DefaultUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentity[identity]; ok {
		return nil, ErrIdentityInUse
	}

	user := NewDefaultUser(identity, displayName)
	s.byIdentity[identity] = user
	s.byHandle[hex.EncodeToString(user.WebAuthnID())] = user
	return user, nil
}

// FindOrCreate returns the user for an identity, creating one on first use.
func (s *MemoryUserStore) FindOrCreate(ctx context.Context, identity, displayName string) (User, error) {
	if user, err := s.FindByIdentity(ctx, identity); err == nil {
		return user, nil
	}
	return s.Create(ctx, identity, displayName)
}

// Delete removes a user. Credential cleanup is the credential store's
// cascade responsibility; see MemoryCredentialStore.DeleteByUserHandle.
func (s *MemoryUserStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byIdentity[identity]
	if !ok {
		return ErrUnknownIdentity
	}
	delete(s.byIdentity, identity)
	delete(s.byHandle, hex.EncodeToString(user.WebAuthnID()))
	return nil
}

// memoryCredential pairs a stored credential with its owner.
type memoryCredential struct {
	cred  *Credential
	owner User
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// Uniqueness of credential ID and of name-per-user is enforced under a
// single lock per insert, standing in for the database uniqueness
// constraints a production store relies on.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryCredential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		entries: make(map[string]*memoryCredential),
	}
}

// FindByCredentialID retrieves a credential by its ID. The returned
// credential is a snapshot; mutating it does not touch stored state until
// Update accepts it.
func (s *MemoryCredentialStore) FindByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrUnknownCredential
	}
	return entry.cred.Clone(), nil
}

// FindOwner resolves the user owning a credential.
func (s *MemoryCredentialStore) FindOwner(ctx context.Context, cred *Credential) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[hex.EncodeToString(cred.ID)]
	if !ok || entry.owner == nil {
		return nil, ErrOrphanCredential
	}
	return entry.owner, nil
}

// GetByUserHandle retrieves all credentials owned by a user handle.
func (s *MemoryCredentialStore) GetByUserHandle(ctx context.Context, handle []byte) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := hex.EncodeToString(handle)
	creds := make([]*Credential, 0)
	for _, entry := range s.entries {
		if hex.EncodeToString(entry.cred.UserHandle) == key {
			creds = append(creds, entry.cred.Clone())
		}
	}
	return creds, nil
}

// Create stores a new credential, enforcing both uniqueness rules
// atomically under the store lock.
func (s *MemoryCredentialStore) Create(ctx context.Context, user User, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.entries[key]; ok {
		return ErrDuplicateCredential
	}

	ownerKey := hex.EncodeToString(user.WebAuthnID())
	for _, entry := range s.entries {
		if hex.EncodeToString(entry.cred.UserHandle) == ownerKey && entry.cred.Name == cred.Name {
			return ErrNameInUse
		}
	}

	cred.UserHandle = user.WebAuthnID()
	s.entries[key] = &memoryCredential{cred: cred.Clone(), owner: user}
	return nil
}

// Update persists counter and last-use changes as one read-modify-write
// under the store lock. The incoming credential is a caller-side snapshot;
// the regression check always compares against the stored value, so a
// nonzero stored counter never decreases and regressions are refused with
// ErrClonedAuthenticator.
func (s *MemoryCredentialStore) Update(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[hex.EncodeToString(cred.ID)]
	if !ok {
		return ErrUnknownCredential
	}

	if entry.cred.Authenticator.SignCount != 0 &&
		cred.Authenticator.SignCount < entry.cred.Authenticator.SignCount {
		return ErrClonedAuthenticator
	}

	entry.cred = cred.Clone()
	return nil
}

// Delete removes a credential by its ID.
func (s *MemoryCredentialStore) Delete(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.entries[key]; !ok {
		return ErrUnknownCredential
	}
	delete(s.entries, key)
	return nil
}

// DeleteByUserHandle removes all credentials owned by a user handle. Call
// when deleting a user so no orphan credentials survive.
func (s *MemoryCredentialStore) DeleteByUserHandle(ctx context.Context, handle []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(handle)
	for id, entry := range s.entries {
		if hex.EncodeToString(entry.cred.UserHandle) == key {
			delete(s.entries, id)
		}
	}
	return nil
}
