// Package middleware wraps the API module with CORS, request logging and
// panic recovery.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in the order it was added: the first entry sees
// the request first.
type Chain []Middleware

// Then wraps h with every middleware in the chain.
func (c Chain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}
