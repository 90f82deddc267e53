package operator

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/routes"
)

// StatusFunc reports the current workflow position.
type StatusFunc func() any

// Response is the body of a prompt answer.
type Response struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

// Handler provides HTTP endpoints for the operator console.
type Handler struct {
	console *Console
	status  StatusFunc
	logger  *slog.Logger
}

// NewHandler creates a Handler over console. status backs GET /status.
func NewHandler(console *Console, status StatusFunc, logger *slog.Logger) *Handler {
	return &Handler{
		console: console,
		status:  status,
		logger:  logger.With("handler", "operator"),
	}
}

// Routes returns the route group definition for operator endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/operator",
		Tags:   []string{"Operator"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/status", Handler: h.Status, OpenAPI: statusOp},
			{Method: "GET", Pattern: "/prompts", Handler: h.ListPrompts},
			{Method: "GET", Pattern: "/prompts/{id}", Handler: h.FindPrompt},
			{Method: "POST", Pattern: "/prompts/{id}", Handler: h.Respond, OpenAPI: respondOp},
			{Method: "POST", Pattern: "/commands/{action}", Handler: h.Command, OpenAPI: commandOp},
			{Method: "GET", Pattern: "/notifications", Handler: h.Notifications},
		},
	}
}

var (
	statusOp = &openapi.Operation{
		Summary: "Current workflow status",
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Workflow status", "Status"),
			503: openapi.ResponseRef("Unavailable"),
		},
	}
	respondOp = &openapi.Operation{
		Summary:     "Answer a prompt",
		Description: "Queues the answer for the coordinator. 202 does not mean the workflow changed.",
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Prompt ID")},
		RequestBody: openapi.RequestBodyJSON("Response", true),
		Responses: map[int]*openapi.Response{
			202: {Description: "Accepted"},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	}
	commandOp = &openapi.Operation{
		Summary: "Issue cancel or retry outside a prompt",
		Parameters: []*openapi.Parameter{openapi.EnumPathParam("action", "cancel", "retry")},
		Responses: map[int]*openapi.Response{
			202: {Description: "Accepted"},
			400: openapi.ResponseRef("BadRequest"),
			503: openapi.ResponseRef("Unavailable"),
		},
	}
)

// Status returns the workflow status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, ErrUnavailable)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, h.status())
}

// ListPrompts returns the active prompts.
func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.console.Prompts())
}

// FindPrompt returns one active prompt.
func (h *Handler) FindPrompt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.console.Find(r.PathValue("id"))
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrPromptNotFound)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}

// Respond answers an active prompt. The answer is queued; 202 means it was
// accepted for processing, not that it changed the workflow.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	body, err := handlers.DecodeJSON[Response](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	action, err := events.ParseAction(body.Action)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidAction, err))
		return
	}

	if err := h.console.Respond(r.PathValue("id"), action, body.Value); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Command issues cancel or retry without a prompt.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	action, err := events.ParseAction(r.PathValue("action"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.Join(ErrInvalidAction, err))
		return
	}

	if err := h.console.Command(action); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Notifications returns recent notices. Query parameters: after (sequence
// number) and limit.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	handlers.RespondJSON(w, http.StatusOK, h.console.Notices(after, limit))
}
