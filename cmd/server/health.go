package main

import (
	"context"
	"net/http"

	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/module"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// health serves liveness and readiness outside the API prefix. Ready means
// startup finished, shutdown has not begun, and the catalog answers a ping.
type health struct {
	lc      *lifecycle.Coordinator
	catalog pinger
}

func newHealth(lc *lifecycle.Coordinator, catalog pinger) health {
	return health{lc: lc, catalog: catalog}
}

func (h health) register(r *module.Router) {
	r.HandleNative("GET /healthz", h.live)
	r.HandleNative("GET /readyz", h.ready)
}

func (h health) live(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h health) ready(w http.ResponseWriter, r *http.Request) {
	if !h.lc.Ready() {
		handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	if err := h.catalog.Ping(r.Context()); err != nil {
		handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "catalog unavailable",
			"error":  err.Error(),
		})
		return
	}
	handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
