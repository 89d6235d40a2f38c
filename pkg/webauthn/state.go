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
	"crypto/rand"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/golang-jwt/jwt/v5"
)

// Ceremony identifies which exchange a state token belongs to. A token
// minted for one ceremony type is invalid for the other.
type Ceremony string

const (
	// CeremonyRegistration enrolls a new authenticator.
	CeremonyRegistration Ceremony = "registration"

	// CeremonyAuthentication signs in with an enrolled authenticator.
	CeremonyAuthentication Ceremony = "authentication"
)

// CeremonyState is everything a finish call needs, carried in the signed
// token instead of a server-side session so begin and finish may land on
// different instances.
type CeremonyState struct {
	// Ceremony is the exchange this state belongs to.
	Ceremony Ceremony

	// Name is the requested credential nickname (registration only).
	Name string

	// Session is the protocol session data: challenge, user handle,
	// allowed credentials, verification requirement.
	Session webauthn.SessionData

	// IssuedAt is when the token was minted. Zero means "now" at encode
	// time. Expiry is a pure wall-clock comparison against this value; no
	// server-side timer or sweep exists.
	IssuedAt time.Time
}

// StateStatus is the three-way outcome of decoding a state token.
type StateStatus int

const (
	// StateInvalid covers signature failure and malformed structure. The
	// two are deliberately indistinguishable to the caller.
	StateInvalid StateStatus = iota

	// StateExpired means the token is well-formed and correctly signed but
	// older than the ceremony window. Retryable with a fresh begin.
	StateExpired

	// StateValid means the state decoded and is within its window.
	StateValid
)

// String returns the status name.
func (s StateStatus) String() string {
	switch s {
	case StateExpired:
		return "expired"
	case StateValid:
		return "valid"
	default:
		return "invalid"
	}
}

// StateManager mints ceremony challenges and signs ceremony state into
// opaque, self-contained tokens.
type StateManager struct {
	key             []byte
	challengeLength int
}

// NewStateManager creates a state manager. The key must be at least 32
// bytes; challengeLength below the security floor is clamped up.
func NewStateManager(key []byte, challengeLength int) *StateManager {
	return &StateManager{
		key:             key,
		challengeLength: challengeLength,
	}
}

// stateClaims is the token wire format: registered iat plus ceremony
// binding and the serialized session.
type stateClaims struct {
	jwt.RegisteredClaims
	Ceremony Ceremony             `json:"ceremony"`
	Name     string               `json:"name,omitempty"`
	Session  webauthn.SessionData `json:"session"`
}

// GenerateChallenge returns cryptographically random challenge bytes of
// the configured length. Lengths below the floor are clamped, never
// honored.
func (m *StateManager) GenerateChallenge() (protocol.URLEncodedBase64, error) {
	length := m.challengeLength
	if length < minChallengeLength {
		length = minChallengeLength
	}

	challenge := make([]byte, length)
	if _, err := rand.Read(challenge); err != nil {
		return nil, WrapError("generate challenge", err)
	}
	return challenge, nil
}

// EncodeState signs the ceremony state into an opaque token embedding its
// issuance time. Any tampering is detectable at decode time.
func (m *StateManager) EncodeState(state CeremonyState) (string, error) {
	issued := state.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}

	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issued),
		},
		Ceremony: state.Ceremony,
		Name:     state.Name,
		Session:  state.Session,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", WrapError("encode state", err)
	}
	return token, nil
}

// DecodeState verifies and decodes a state token. Exactly one of three
// outcomes: StateValid with the decoded state, StateExpired for a
// correctly signed token older than maxAge, StateInvalid for everything
// else without revealing what went wrong.
func (m *StateManager) DecodeState(token string, maxAge time.Duration) (*CeremonyState, StateStatus) {
	claims := &stateClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, StateInvalid
	}
	if claims.IssuedAt == nil || claims.Ceremony == "" {
		return nil, StateInvalid
	}

	if time.Since(claims.IssuedAt.Time) > maxAge {
		return nil, StateExpired
	}

	return &CeremonyState{
		Ceremony: claims.Ceremony,
		Name:     claims.Name,
		Session:  claims.Session,
		IssuedAt: claims.IssuedAt.Time,
	}, StateValid
}
