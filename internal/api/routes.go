package api

import (
	"net/http"

	"github.com/JaimeStill/tally/internal/operator"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/routes"
)

func routeGroups(domain *Domain, runtime *Runtime) []routes.Group {
	status := func() any { return domain.Coordinator.Status() }

	return []routes.Group{
		operator.NewHandler(domain.Console, status, runtime.Logger).Routes(),
		domain.Mailbox.Handler(runtime.MaxUpload).Routes(),
		domain.Journal.Handler().Routes(),
		domain.Documents.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	}
}

func registerRoutes(mux *http.ServeMux, groups []routes.Group, spec []byte) {
	routes.Register(mux, groups...)
	mux.HandleFunc("GET /openapi.json", openapi.Handler(spec))
}
