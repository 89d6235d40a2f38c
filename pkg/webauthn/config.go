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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	// minChallengeLength is the security floor for ceremony challenges in
	// bytes. Shorter configured lengths are clamped up, never honored.
	minChallengeLength = 16

	// minStateKeyLength is the minimum HMAC key length for state tokens.
	minStateKeyLength = 32
)

// Config configures the WebAuthn ceremony service.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Example: "example.com"
	RPID string `yaml:"id" json:"id" mapstructure:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	// Example: "Example Corp"
	RPDisplayName string `yaml:"display_name" json:"display_name" mapstructure:"display_name"`

	// RPOrigins are the allowed origins for WebAuthn operations.
	// Example: []string{"https://example.com", "https://www.example.com"}
	RPOrigins []string `yaml:"origins" json:"origins" mapstructure:"origins"`

	// StateSigningKey signs ceremony state tokens. Must be at least 32
	// random bytes and shared by every instance serving the same RP.
	StateSigningKey []byte `yaml:"state_signing_key" json:"state_signing_key" mapstructure:"state_signing_key"`

	// ChallengeLength is the ceremony challenge length in bytes.
	// Default: 64. Values below the security floor are clamped up.
	ChallengeLength int `yaml:"challenge_length" json:"challenge_length" mapstructure:"challenge_length"`

	// Timeout is the ceremony timeout hint sent to the browser.
	// Default: 60000 (60 seconds)
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// RegisterWithin is how long a registration state token stays valid.
	// Default: 30 minutes
	RegisterWithin time.Duration `yaml:"register_within" json:"register_within" mapstructure:"register_within"`

	// SigninWithin is how long an authentication state token stays valid.
	// Default: 1 minute
	SigninWithin time.Duration `yaml:"signin_within" json:"signin_within" mapstructure:"signin_within"`

	// UserVerification is the verification requirement requested from the
	// authenticator during registration.
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	UserVerification string `yaml:"user_verification" json:"user_verification" mapstructure:"user_verification"`

	// SigninUserVerification is the verification requirement requested
	// during authentication. Discouraged by default so that a prior factor
	// plus this authenticator can jointly satisfy multi-factor policy
	// without forcing a PIN/biometric every time; the finish step still
	// records whether verification actually happened.
	// Options: "required", "preferred", "discouraged"
	// Default: "discouraged"
	SigninUserVerification string `yaml:"signin_user_verification" json:"signin_user_verification" mapstructure:"signin_user_verification"`

	// AttestationPreference specifies the attestation conveyance preference.
	// Options: "none", "indirect", "direct", "enterprise"
	// Default: "none"
	AttestationPreference string `yaml:"attestation" json:"attestation" mapstructure:"attestation"`

	// ResidentKeyRequirement specifies whether to require resident keys (passkeys).
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key" mapstructure:"resident_key"`

	// AuthenticatorAttachment limits the type of authenticators allowed.
	// Options: "platform", "cross-platform", "" (any)
	// Default: "" (any)
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment" mapstructure:"authenticator_attachment"`

	// Debug enables debug logging in the underlying protocol library.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	if len(c.StateSigningKey) < minStateKeyLength {
		return fmt.Errorf("state signing key must be at least %d bytes", minStateKeyLength)
	}
	if c.ChallengeLength < 0 {
		return fmt.Errorf("challenge length must not be negative")
	}

	for field, value := range map[string]string{
		"user verification":        c.UserVerification,
		"signin user verification": c.SigninUserVerification,
		"resident key requirement": c.ResidentKeyRequirement,
	} {
		switch value {
		case "", "required", "preferred", "discouraged":
			// Valid
		default:
			return fmt.Errorf("invalid %s: %s", field, value)
		}
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
		// Valid
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	switch c.AuthenticatorAttachment {
	case "", "platform", "cross-platform":
		// Valid
	default:
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}

	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.RegisterWithin == 0 {
		c.RegisterWithin = 30 * time.Minute
	}
	if c.SigninWithin == 0 {
		c.SigninWithin = time.Minute
	}
	if c.ChallengeLength == 0 {
		c.ChallengeLength = 64
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.SigninUserVerification == "" {
		c.SigninUserVerification = "discouraged"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's
// configuration. Ceremony expiry is governed by the state token's issuance
// timestamp, so library-side session expiry enforcement stays off.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:          c.RPID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     c.RPOrigins,
		Debug:         c.Debug,
	}

	if c.Timeout > 0 {
		cfg.Timeouts = webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    false,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    false,
				Timeout:    c.Timeout,
				TimeoutUVD: c.Timeout,
			},
		}
	}

	switch c.AttestationPreference {
	case "none":
		cfg.AttestationPreference = protocol.PreferNoAttestation
	case "indirect":
		cfg.AttestationPreference = protocol.PreferIndirectAttestation
	case "direct":
		cfg.AttestationPreference = protocol.PreferDirectAttestation
	case "enterprise":
		cfg.AttestationPreference = protocol.PreferEnterpriseAttestation
	}

	cfg.AuthenticatorSelection = c.authenticatorSelection()

	return cfg
}

// authenticatorSelection maps the configured registration policy to
// protocol values. Used both for the library config and as the default
// SelectionPolicy.
func (c *Config) authenticatorSelection() protocol.AuthenticatorSelection {
	selection := protocol.AuthenticatorSelection{
		UserVerification: userVerificationRequirement(c.UserVerification),
	}

	switch c.ResidentKeyRequirement {
	case "required":
		selection.ResidentKey = protocol.ResidentKeyRequirementRequired
	case "preferred":
		selection.ResidentKey = protocol.ResidentKeyRequirementPreferred
	case "discouraged":
		selection.ResidentKey = protocol.ResidentKeyRequirementDiscouraged
	}

	switch c.AuthenticatorAttachment {
	case "platform":
		selection.AuthenticatorAttachment = protocol.Platform
	case "cross-platform":
		selection.AuthenticatorAttachment = protocol.CrossPlatform
	}

	return selection
}

// userVerificationRequirement maps a config string to the protocol value.
func userVerificationRequirement(value string) protocol.UserVerificationRequirement {
	switch value {
	case "required":
		return protocol.VerificationRequired
	case "discouraged":
		return protocol.VerificationDiscouraged
	default:
		return protocol.VerificationPreferred
	}
}
