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

// Package webauthn implements stateless WebAuthn (FIDO2) registration and
// authentication ceremonies for a relying party.
//
// This package wraps the go-webauthn/webauthn library and provides:
//   - Signed, self-contained ceremony state tokens instead of server-side
//     sessions, so begin and finish may land on different instances
//   - Pluggable storage interfaces for users and credentials
//   - In-memory storage implementations for development/testing
//   - Composable HTTP handlers that can be mounted on any router
//
// # Ceremonies
//
// A ceremony is one complete challenge/response exchange. Begin issues
// browser options plus an opaque state token; the token carries the
// challenge, the ceremony type, and its own issuance time under an HMAC
// signature. Finish verifies the authenticator response against the
// decoded state. There is nothing to revoke or sweep server-side: a token
// simply ages out.
//
// Finish returns the verified credential descriptor (registration) or a
// ceremony result (authentication); persisting either through
// CredentialStore is the caller's responsibility, which keeps the
// uniqueness and sign-counter rules enforceable inside a single store
// transaction.
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:            "localhost",
//	        RPDisplayName:   "My App",
//	        RPOrigins:       []string{"https://localhost:3000"},
//	        StateSigningKey: key, // 32+ random bytes
//	    },
//	    UserStore:       webauthn.NewMemoryUserStore(),
//	    CredentialStore: webauthn.NewMemoryCredentialStore(),
//	})
//
// For production, implement the storage interfaces with your database.
//
// # WebAuthn Specification Compliance
//
// This implementation follows the W3C Web Authentication specification:
//   - https://www.w3.org/TR/webauthn-2/
//   - https://www.w3.org/TR/webauthn-3/
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package webauthn
