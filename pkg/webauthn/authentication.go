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
	"github.com/go-webauthn/webauthn/webauthn"
)

// BeginLogin starts an authentication ceremony.
//
// With an identity hint that resolves to a known active user, the options
// carry an allow-list of exactly that user's credentials. With an empty
// hint the allow-list is absent, supporting discoverable-credential
// (passwordless) flows where the authenticator picks the credential.
//
// The user-verification requirement defaults to "discouraged" so a prior
// factor plus this authenticator can jointly satisfy multi-factor policy;
// FinishLogin still records whether verification actually happened.
func (s *Service) BeginLogin(ctx context.Context, identity string) (*protocol.CredentialAssertion, string, error) {
	const op = "begin login"

	challenge, err := s.state.GenerateChallenge()
	if err != nil {
		return nil, "", err
	}

	requirement := userVerificationRequirement(s.config.SigninUserVerification)

	var options *protocol.CredentialAssertion
	var session *webauthn.SessionData

	if identity != "" {
		user, err := s.users.FindByIdentity(ctx, identity)
		if err != nil {
			return nil, "", WrapError(op, err)
		}
		if !user.Active() {
			return nil, "", NewError(op, ErrInactiveUser)
		}

		stored, err := s.creds.GetByUserHandle(ctx, user.WebAuthnID())
		if err != nil {
			return nil, "", WrapError(op, err)
		}
		if len(stored) == 0 {
			return nil, "", NewError(op, ErrNoCredentials)
		}

		// The store is authoritative for the allow-list, not whatever the
		// user object happens to carry.
		login := &ceremonyUser{handle: user.WebAuthnID()}
		for _, cred := range stored {
			login.credentials = append(login.credentials, cred.ToWebAuthn())
		}

		options, session, err = s.webauthn.BeginLogin(login,
			webauthn.WithAllowedCredentials(DescriptorList(stored)),
			webauthn.WithUserVerification(requirement),
		)
		if err != nil {
			return nil, "", WrapError(op, err)
		}
	} else {
		options, session, err = s.webauthn.BeginDiscoverableLogin(
			webauthn.WithUserVerification(requirement),
		)
		if err != nil {
			return nil, "", WrapError(op, err)
		}
	}

	stampChallenge(challenge, &options.Response.Challenge, session)

	token, err := s.state.EncodeState(CeremonyState{
		Ceremony: CeremonyAuthentication,
		Session:  *session,
	})
	if err != nil {
		return nil, "", err
	}

	return options, token, nil
}

// FinishLogin completes an authentication ceremony.
//
// The asserted credential is looked up by its raw ID and its owner
// resolved through the store. Verification runs twice at most: first with
// user verification required, then once more relaxed; the ceremony fails
// only when both attempts fail. The result's UserVerified flag records
// which pass succeeded - the deliberate fallback preserves that signal for
// multi-factor decisions upstream rather than masking it.
//
// The caller persists NewSignCount and last-use through
// CredentialStore.Update. A counter regression with both counters nonzero
// returns the result alongside ErrClonedAuthenticator so callers can treat
// the sign-in as suspicious without losing the evidence.
func (s *Service) FinishLogin(ctx context.Context, token string, response *protocol.ParsedCredentialAssertionData) (*CeremonyResult, error) {
	const op = "finish login"

	state, err := s.decodeCeremonyState(op, token, CeremonyAuthentication, s.config.SigninWithin)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, NewError(op, ErrMalformedInput)
	}

	stored, err := s.creds.FindByCredentialID(ctx, response.RawID)
	if err != nil {
		return nil, WrapError(op, err)
	}

	owner, err := s.creds.FindOwner(ctx, stored)
	if err != nil {
		return nil, WrapError(op, err)
	}

	verified, userVerified, err := s.validateAssertion(owner.WebAuthnID(), stored, state.Session, response)
	if err != nil {
		return nil, NewError(op, ErrVerificationFailed)
	}

	result := &CeremonyResult{
		Verified:     true,
		UserVerified: userVerified,
		NewSignCount: verified.Authenticator.SignCount,
		CloneWarning: verified.Authenticator.CloneWarning,
		Credential:   stored,
		User:         owner,
	}

	if result.CloneWarning {
		return result, NewError(op, ErrClonedAuthenticator)
	}
	return result, nil
}

// validateAssertion runs the strict pass and, if that fails, one relaxed
// pass. The boolean reports whether the strict pass succeeded.
func (s *Service) validateAssertion(ownerHandle []byte, stored *Credential, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, bool, error) {
	attempt := func(requirement protocol.UserVerificationRequirement) (*webauthn.Credential, error) {
		// Verification runs against the stored public key and sign count,
		// scoped to the single asserted credential.
		user := &ceremonyUser{
			handle:      ownerHandle,
			credentials: []webauthn.Credential{stored.ToWebAuthn()},
		}

		session.UserVerification = requirement
		if len(session.UserID) == 0 {
			return s.webauthn.ValidateDiscoverableLogin(
				func(rawID, userHandle []byte) (webauthn.User, error) {
					return user, nil
				},
				session, response,
			)
		}
		return s.webauthn.ValidateLogin(user, session, response)
	}

	if verified, err := attempt(protocol.VerificationRequired); err == nil {
		return verified, true, nil
	}

	verified, err := attempt(protocol.VerificationDiscouraged)
	if err != nil {
		return nil, false, err
	}
	return verified, false, nil
}
