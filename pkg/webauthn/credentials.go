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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/samber/lo"
)

// DescriptorList builds the allow/exclude credential-descriptor list for
// ceremony options. Pure and read-only.
//
// Ordering is deterministic: most recently used first, then most recently
// created, then name. Browsers try allow-list entries roughly in order, so
// the credential the user touched last is offered first.
func DescriptorList(creds []*Credential) []protocol.CredentialDescriptor {
	ordered := orderCredentials(creds)

	return lo.Map(ordered, func(cred *Credential, _ int) protocol.CredentialDescriptor {
		return protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transport,
		}
	})
}

// orderCredentials returns a sorted copy; the input is never mutated.
func orderCredentials(creds []*Credential) []*Credential {
	ordered := make([]*Credential, len(creds))
	copy(ordered, creds)

	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].LastUsedAt.Equal(ordered[j].LastUsedAt) {
			return ordered[i].LastUsedAt.After(ordered[j].LastUsedAt)
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].Name < ordered[j].Name
	})

	return ordered
}

// CredentialSummary is the caller-facing view of one registered
// credential, suitable for account-management pages.
type CredentialSummary struct {
	// Name is the user-chosen nickname.
	Name string `json:"name"`

	// CredentialID is the base64url-encoded credential ID.
	CredentialID string `json:"credential_id"`

	// Transports lists the authenticator's supported transports.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed an authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`

	// Discoverable reports whether the authenticator stored the credential
	// as a resident key, when the credProps extension said. Nil when the
	// authenticator didn't say.
	Discoverable *bool `json:"discoverable,omitempty"`
}

// Discoverable reports the credProps resident-key answer captured at
// registration, or nil when the authenticator didn't report one.
func (c *Credential) Discoverable() *bool {
	if len(c.Extensions) == 0 {
		return nil
	}

	var outputs struct {
		CredProps struct {
			RK *bool `json:"rk"`
		} `json:"credProps"`
	}
	if err := json.Unmarshal(c.Extensions, &outputs); err != nil {
		return nil
	}
	return outputs.CredProps.RK
}

// Credentials lists a user's registered credentials in descriptor-list
// order.
func (s *Service) Credentials(ctx context.Context, user User) ([]CredentialSummary, error) {
	stored, err := s.creds.GetByUserHandle(ctx, user.WebAuthnID())
	if err != nil {
		return nil, WrapError("list credentials", err)
	}

	return lo.Map(orderCredentials(stored), func(cred *Credential, _ int) CredentialSummary {
		return CredentialSummary{
			Name:         cred.Name,
			CredentialID: base64.RawURLEncoding.EncodeToString(cred.ID),
			Transports:   cred.Transport,
			CreatedAt:    cred.CreatedAt,
			LastUsedAt:   cred.LastUsedAt,
			Discoverable: cred.Discoverable(),
		}
	}), nil
}

// DeleteCredential removes one of the user's credentials by its nickname
// (case-sensitive exact match). Returns ErrUnknownCredentialName when the
// user has no credential with that name.
func (s *Service) DeleteCredential(ctx context.Context, user User, name string) error {
	const op = "delete credential"

	stored, err := s.creds.GetByUserHandle(ctx, user.WebAuthnID())
	if err != nil {
		return WrapError(op, err)
	}

	cred, found := lo.Find(stored, func(c *Credential) bool {
		return c.Name == name && bytes.Equal(c.UserHandle, user.WebAuthnID())
	})
	if !found {
		return NewError(op, ErrUnknownCredentialName)
	}

	return WrapError(op, s.creds.Delete(ctx, cred))
}

// HasSecondFactor reports whether the user owns any credential usable as a
// second factor.
func (s *Service) HasSecondFactor(ctx context.Context, user User) (bool, error) {
	stored, err := s.creds.GetByUserHandle(ctx, user.WebAuthnID())
	if err != nil {
		return false, WrapError("has second factor", err)
	}
	return len(stored) > 0, nil
}
