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
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// BeginRegistration starts a registration ceremony for an authenticated
// user enrolling a new authenticator under the requested nickname.
//
// Returns the creation options for the browser and the signed state token
// the caller must hand back to FinishRegistration. The options exclude
// every credential the user already owns so an authenticator cannot be
// enrolled twice, and request the credProps extension so discoverability
// can be reported later.
func (s *Service) BeginRegistration(ctx context.Context, user User, name string) (*protocol.CredentialCreation, string, error) {
	if user == nil || name == "" {
		return nil, "", NewError("begin registration", ErrMalformedInput)
	}

	existing, err := s.creds.GetByUserHandle(ctx, user.WebAuthnID())
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	// Advisory pre-check; the store re-enforces at Create.
	for _, cred := range existing {
		if cred.Name == name {
			return nil, "", NewError("begin registration", ErrNameInUse)
		}
	}

	challenge, err := s.state.GenerateChallenge()
	if err != nil {
		return nil, "", err
	}

	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(DescriptorList(existing)),
		webauthn.WithAuthenticatorSelection(s.policy.AuthenticatorSelection(user)),
		webauthn.WithExtensions(protocol.AuthenticationExtensions{"credProps": true}),
	)
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	stampChallenge(challenge, &options.Response.Challenge, session)

	// The attestation must prove user verification regardless of what the
	// selection policy requested from the authenticator.
	session.UserVerification = protocol.VerificationRequired

	token, err := s.state.EncodeState(CeremonyState{
		Ceremony: CeremonyRegistration,
		Name:     name,
		Session:  *session,
	})
	if err != nil {
		return nil, "", err
	}

	return options, token, nil
}

// FinishRegistration completes a registration ceremony: it decodes the
// state token, verifies the attestation against the challenge, expected
// origin, and RP ID with user verification required, and returns the
// fully-populated credential descriptor.
//
// Persisting the descriptor through CredentialStore.Create is the caller's
// responsibility; the duplicate-ID check here is advisory and the store
// remains the authority at insert time. Either the insert fully commits
// one new descriptor or nothing is persisted.
func (s *Service) FinishRegistration(ctx context.Context, token string, response *protocol.ParsedCredentialCreationData) (*Credential, error) {
	const op = "finish registration"

	state, err := s.decodeCeremonyState(op, token, CeremonyRegistration, s.config.RegisterWithin)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, NewError(op, ErrMalformedInput)
	}

	user := &ceremonyUser{handle: state.Session.UserID}
	credential, err := s.webauthn.CreateCredential(user, state.Session, response)
	if err != nil {
		return nil, NewError(op, ErrVerificationFailed)
	}

	if _, err := s.creds.FindByCredentialID(ctx, credential.ID); err == nil {
		return nil, NewError(op, ErrDuplicateCredential)
	} else if !IsUnknownCredential(err) {
		return nil, WrapError(op, err)
	}

	var extensions []byte
	if len(response.ClientExtensionResults) > 0 {
		extensions, err = json.Marshal(response.ClientExtensionResults)
		if err != nil {
			return nil, NewError(op, ErrMalformedInput)
		}
	}

	return newCredential(state.Session.UserID, state.Name, credential, extensions), nil
}
