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

// Package http provides composable HTTP handlers for the WebAuthn ceremony
// service. Handlers are plain http.HandlerFunc values that can be mounted
// on any router; chi and stdlib mount helpers are included.
//
// The ceremony state token issued by a begin handler travels back to the
// matching finish handler in the X-Ceremony-State header. No server-side
// session is involved, so begin and finish may be served by different
// instances behind a load balancer.
//
// The handlers are also the reference caller: they persist the descriptor
// returned by FinishRegistration and the sign counter returned by
// FinishLogin through the credential store, which is where the uniqueness
// and monotonicity rules are actually enforced.
package http
