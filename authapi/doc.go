// Package authapi calls the shop backend's authentication endpoints.
//
// The Client talks to the transport executor directly, not through the
// dispatcher, so a refresh request never passes through the session
// middleware that triggered it.
package authapi
