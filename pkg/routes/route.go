package routes

import (
	"net/http"

	"github.com/JaimeStill/tally/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler. OpenAPI is optional;
// routes without it are documented with a generated summary.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}
