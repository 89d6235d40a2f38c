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
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service provides stateless WebAuthn registration and authentication
// ceremonies. All dependencies are explicit; there is no ambient global
// state, so concurrent ceremonies for the same or different users are
// independent.
type Service struct {
	webauthn *webauthn.WebAuthn
	config   *Config
	users    UserStore
	creds    CredentialStore
	state    *StateManager
	policy   SelectionPolicy
}

// ServiceParams contains dependencies for creating a WebAuthn service.
type ServiceParams struct {
	// Config is the WebAuthn configuration (required).
	Config *Config

	// UserStore resolves identity hints at login begin (required).
	UserStore UserStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// SelectionPolicy supplies authenticator-selection criteria per user.
	// If nil, the policy is derived from Config.
	SelectionPolicy SelectionPolicy
}

// NewService creates a new WebAuthn service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	policy := params.SelectionPolicy
	if policy == nil {
		policy = &configSelectionPolicy{config: params.Config}
	}

	return &Service{
		webauthn: wa,
		config:   params.Config,
		users:    params.UserStore,
		creds:    params.CredentialStore,
		state:    NewStateManager(params.Config.StateSigningKey, params.Config.ChallengeLength),
		policy:   policy,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// StateManager returns the challenge/state manager, mainly for callers
// that need to mint or inspect tokens outside a ceremony (tests, tooling).
func (s *Service) StateManager() *StateManager {
	return s.state
}

// decodeCeremonyState decodes a state token for the given ceremony type
// and window, mapping the three-way outcome onto the error taxonomy. A
// token minted for the other ceremony type is invalid, not expired.
func (s *Service) decodeCeremonyState(op, token string, ceremony Ceremony, within time.Duration) (*CeremonyState, error) {
	state, status := s.state.DecodeState(token, within)
	switch status {
	case StateExpired:
		return nil, NewError(op, ErrTokenExpired)
	case StateValid:
		if state.Ceremony != ceremony {
			return nil, NewError(op, ErrTokenInvalid)
		}
		return state, nil
	default:
		return nil, NewError(op, ErrTokenInvalid)
	}
}

// stampChallenge replaces the library-generated challenge with one of the
// configured length, in both the browser options and the session state,
// and clears the session expiry: ceremony expiry is governed solely by the
// state token's issuance timestamp.
func stampChallenge(challenge protocol.URLEncodedBase64, optionsChallenge *protocol.URLEncodedBase64, session *webauthn.SessionData) {
	*optionsChallenge = challenge
	session.Challenge = base64.RawURLEncoding.EncodeToString(challenge)
	session.Expires = time.Time{}
}

// ceremonyUser carries just enough of a user through a finish call: the
// handle recovered from the state token and, for authentication, the
// single stored credential being asserted.
type ceremonyUser struct {
	handle      []byte
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return u.handle
}

func (u *ceremonyUser) WebAuthnName() string {
	return ""
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return ""
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
