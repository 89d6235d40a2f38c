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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts WebAuthn routes on a chi router.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, users, creds)
//	r.Route("/api/v1/webauthn", func(r chi.Router) {
//	    webauthnhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/begin", h.BeginRegistration)
	r.Post("/registration/finish", h.FinishRegistration)
	r.Post("/login/begin", h.BeginLogin)
	r.Post("/login/finish", h.FinishLogin)
	r.Get("/credentials", h.Credentials)
	r.Delete("/credentials", h.DeleteCredential)
}

// MountStdlib mounts WebAuthn routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash.
//
// Note: Method checking is done in the handlers, so this works with muxes
// that do not support Go 1.22+ method patterns.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, users, creds)
//	webauthnhttp.MountStdlib(mux, "/api/v1/webauthn", handler)
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc(prefix+"/registration/begin", h.BeginRegistration)
	mux.HandleFunc(prefix+"/registration/finish", h.FinishRegistration)
	mux.HandleFunc(prefix+"/login/begin", h.BeginLogin)
	mux.HandleFunc(prefix+"/login/finish", h.FinishLogin)
	mux.HandleFunc(prefix+"/credentials", h.credentialsDispatch)
}

// credentialsDispatch routes the /credentials path by method for muxes that
// cannot express method patterns.
func (h *Handler) credentialsDispatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodDelete:
		h.DeleteCredential(w, r)
	default:
		h.Credentials(w, r)
	}
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting.
// Useful for frameworks not directly supported.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, users, creds)
//	for _, route := range handler.Routes() {
//	    router.Add(route.Method, "/webauthn"+route.Path, route.Handler)
//	}
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/registration/begin", Handler: h.BeginRegistration},
		{Method: "POST", Path: "/registration/finish", Handler: h.FinishRegistration},
		{Method: "POST", Path: "/login/begin", Handler: h.BeginLogin},
		{Method: "POST", Path: "/login/finish", Handler: h.FinishLogin},
		{Method: "GET", Path: "/credentials", Handler: h.Credentials},
		{Method: "DELETE", Path: "/credentials", Handler: h.DeleteCredential},
	}
}

// HandlerFunc returns a single http.HandlerFunc that routes based on path.
// This is useful when you want a single handler for a path prefix.
//
// Note: This requires the request path to have the prefix already stripped.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, users, creds)
//	mux.Handle("/api/v1/webauthn/", http.StripPrefix("/api/v1/webauthn", handler.HandlerFunc()))
func (h *Handler) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/registration/begin":
			h.BeginRegistration(w, r)
		case "/registration/finish":
			h.FinishRegistration(w, r)
		case "/login/begin":
			h.BeginLogin(w, r)
		case "/login/finish":
			h.FinishLogin(w, r)
		case "/credentials":
			h.credentialsDispatch(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}
