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
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService builds a service backed by fresh memory stores.
func newTestService(t *testing.T) (*Service, *MemoryUserStore, *MemoryCredentialStore) {
	t.Helper()

	users := NewMemoryUserStore()
	creds := NewMemoryCredentialStore()

	svc, err := NewService(ServiceParams{
		Config:          validConfig(),
		UserStore:       users,
		CredentialStore: creds,
	})
	require.NoError(t, err)

	return svc, users, creds
}

func TestNewService(t *testing.T) {
	users := NewMemoryUserStore()
	creds := NewMemoryCredentialStore()

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name: "valid params",
			params: ServiceParams{
				Config:          validConfig(),
				UserStore:       users,
				CredentialStore: creds,
			},
		},
		{
			name: "missing config",
			params: ServiceParams{
				UserStore:       users,
				CredentialStore: creds,
			},
			wantErr: "config is required",
		},
		{
			name: "missing user store",
			params: ServiceParams{
				Config:          validConfig(),
				CredentialStore: creds,
			},
			wantErr: "user store is required",
		},
		{
			name: "missing credential store",
			params: ServiceParams{
				Config:    validConfig(),
				UserStore: users,
			},
			wantErr: "credential store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:          &Config{RPID: "example.com"},
				UserStore:       users,
				CredentialStore: creds,
			},
			wantErr: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, svc)
				assert.NotNil(t, svc.Config())
				assert.NotNil(t, svc.StateManager())
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
			}
		})
	}
}

func TestService_BeginRegistration_Validation(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)

	user, err := users.Create(ctx, "reg@example.com", "Reg User")
	require.NoError(t, err)

	// Nil user
	_, _, err = svc.BeginRegistration(ctx, nil, "key")
	assert.ErrorIs(t, err, ErrMalformedInput)

	// Empty name
	_, _, err = svc.BeginRegistration(ctx, user, "")
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestService_BeginRegistration_Options(t *testing.T) {
	ctx := context.Background()
	svc, users, creds := newTestService(t)

	user, err := users.Create(ctx, "reg@example.com", "Reg User")
	require.NoError(t, err)

	options, token, err := svc.BeginRegistration(ctx, user, "first key")
	require.NoError(t, err)
	require.NotNil(t, options)
	require.NotEmpty(t, token)

	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "Example Corp", options.Response.RelyingParty.Name)
	assert.Equal(t, "reg@example.com", options.Response.User.Name)
	assert.Len(t, []byte(options.Response.Challenge), 64)
	assert.Empty(t, options.Response.CredentialExcludeList)
	assert.Equal(t, true, options.Response.Extensions["credProps"])

	// An existing credential shows up in the exclude list.
	require.NoError(t, creds.Create(ctx, user, &Credential{
		ID:   []byte("cred-existing"),
		Name: "first key",
	}))

	_, _, err = svc.BeginRegistration(ctx, user, "first key")
	assert.ErrorIs(t, err, ErrNameInUse)

	options, _, err = svc.BeginRegistration(ctx, user, "second key")
	require.NoError(t, err)
	require.Len(t, options.Response.CredentialExcludeList, 1)
	assert.Equal(t, []byte("cred-existing"), []byte(options.Response.CredentialExcludeList[0].CredentialID))
}

func TestService_BeginRegistration_FreshChallenges(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)

	user, err := users.Create(ctx, "fresh@example.com", "Fresh User")
	require.NoError(t, err)

	a, _, err := svc.BeginRegistration(ctx, user, "key a")
	require.NoError(t, err)
	b, _, err := svc.BeginRegistration(ctx, user, "key b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Response.Challenge, b.Response.Challenge)
}

func TestService_FinishRegistration_TokenErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	// Invalid token
	_, err := svc.FinishRegistration(ctx, "garbage", nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Expired token
	expired, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyRegistration,
		Session:  webauthn.SessionData{Challenge: "x"},
		IssuedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.FinishRegistration(ctx, expired, nil)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Authentication token handed to the registration finish
	crossed, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyAuthentication,
		Session:  webauthn.SessionData{Challenge: "x"},
	})
	require.NoError(t, err)

	_, err = svc.FinishRegistration(ctx, crossed, nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Valid token, missing response
	valid, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyRegistration,
		Session:  webauthn.SessionData{Challenge: "x"},
	})
	require.NoError(t, err)

	_, err = svc.FinishRegistration(ctx, valid, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestService_BeginLogin_Identified(t *testing.T) {
	ctx := context.Background()
	svc, users, creds := newTestService(t)

	// Unknown identity
	_, _, err := svc.BeginLogin(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	user, err := users.Create(ctx, "login@example.com", "Login User")
	require.NoError(t, err)

	// No credentials yet
	_, _, err = svc.BeginLogin(ctx, "login@example.com")
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, creds.Create(ctx, user, &Credential{
		ID:   []byte("cred-a"),
		Name: "key a",
	}))
	require.NoError(t, creds.Create(ctx, user, &Credential{
		ID:   []byte("cred-b"),
		Name: "key b",
	}))

	options, token, err := svc.BeginLogin(ctx, "login@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, "example.com", options.Response.RelyingPartyID)
	assert.Len(t, []byte(options.Response.Challenge), 64)
	assert.Len(t, options.Response.AllowedCredentials, 2)

	// Inactive account is refused before any options leak.
	user.SetActive(false)
	_, _, err = svc.BeginLogin(ctx, "login@example.com")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestService_BeginLogin_Discoverable(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	options, token, err := svc.BeginLogin(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// No allow-list: the authenticator picks the credential. The response
	// is indistinguishable whether or not any user exists.
	assert.Empty(t, options.Response.AllowedCredentials)
	assert.Len(t, []byte(options.Response.Challenge), 64)
}

func TestService_FinishLogin_TokenErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.FinishLogin(ctx, "garbage", nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Login windows are short; a token stale by minutes is expired.
	expired, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyAuthentication,
		Session:  webauthn.SessionData{Challenge: "x"},
		IssuedAt: time.Now().Add(-5 * time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, expired, nil)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Registration token handed to the login finish
	crossed, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyRegistration,
		Session:  webauthn.SessionData{Challenge: "x"},
	})
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, crossed, nil)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Valid token, missing response
	valid, err := svc.StateManager().EncodeState(CeremonyState{
		Ceremony: CeremonyAuthentication,
		Session:  webauthn.SessionData{Challenge: "x"},
	})
	require.NoError(t, err)

	_, err = svc.FinishLogin(ctx, valid, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestService_SelectionPolicy(t *testing.T) {
	users := NewMemoryUserStore()
	creds := NewMemoryCredentialStore()

	policy := &staticSelectionPolicy{
		selection: protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
			ResidentKey:      protocol.ResidentKeyRequirementRequired,
		},
	}

	svc, err := NewService(ServiceParams{
		Config:          validConfig(),
		UserStore:       users,
		CredentialStore: creds,
		SelectionPolicy: policy,
	})
	require.NoError(t, err)

	ctx := context.Background()
	user, err := users.Create(ctx, "policy@example.com", "Policy User")
	require.NoError(t, err)

	options, _, err := svc.BeginRegistration(ctx, user, "admin key")
	require.NoError(t, err)

	selection := options.Response.AuthenticatorSelection
	assert.Equal(t, protocol.VerificationRequired, selection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, selection.ResidentKey)
	assert.Equal(t, 1, policy.calls)
}

type staticSelectionPolicy struct {
	selection protocol.AuthenticatorSelection
	calls     int
}

func (p *staticSelectionPolicy) AuthenticatorSelection(User) protocol.AuthenticatorSelection {
	p.calls = p.calls + 1
	return p.selection
}
