package prompts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/routes"
)

// Handler exposes classifier prompt overrides over HTTP.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Tags:   []string{"Prompts"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: writeOp("Create an inactive override", http.StatusCreated)},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages, OpenAPI: stagesOp},
			{Method: "GET", Pattern: "/stages/{stage}", Handler: h.Stage, OpenAPI: stageOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, OpenAPI: writeOp("Replace an override", http.StatusOK)},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate, OpenAPI: toggleOp("Use this override for its stage")},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate, OpenAPI: toggleOp("Return its stage to the built-in instructions")},
		},
	}
}

var (
	listOp = &openapi.Operation{
		Summary: "List overrides",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("stage", "string", "approval or invoice", false),
			openapi.QueryParam("name", "string", "Name substring", false),
			openapi.QueryParam("active", "boolean", "Only active or inactive overrides", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Page of overrides", "PromptPage"),
			400: openapi.ResponseRef("BadRequest"),
		},
	}
	stagesOp = &openapi.Operation{
		Summary: "Instructions in effect for every stage",
		Responses: map[int]*openapi.Response{
			200: {Description: "Resolved stages", Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("ResolvedStage")}},
			}},
		},
	}
	stageOp = &openapi.Operation{
		Summary:    "Instructions in effect for a stage",
		Parameters: []*openapi.Parameter{openapi.EnumPathParam("stage", "approval", "invoice")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Resolved stage", "ResolvedStage"),
			400: openapi.ResponseRef("BadRequest"),
		},
	}
)

func writeOp(summary string, status int) *openapi.Operation {
	return &openapi.Operation{
		Summary:     summary,
		RequestBody: openapi.RequestBodyJSON("PromptCommand", true),
		Responses: map[int]*openapi.Response{
			status: openapi.ResponseJSON("Override", "PromptOverride"),
			400:    openapi.ResponseRef("BadRequest"),
			404:    openapi.ResponseRef("NotFound"),
			409:    openapi.ResponseRef("Conflict"),
		},
	}
}

func toggleOp(summary string) *openapi.Operation {
	return &openapi.Operation{
		Summary:    summary,
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Override ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Override", "PromptOverride"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	h.list(w, r, pagination.PageRequestFromQuery(r.URL.Query(), h.pagination), filters)
}

// Search is List with the criteria in a JSON body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[SearchRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	h.list(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Stages resolves every stage, so an operator sees which ones are overridden.
func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	out := make([]Resolved, 0, len(Stages()))
	for _, stage := range Stages() {
		res, err := h.sys.Resolve(r.Context(), stage)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		out = append(out, res)
	}
	handlers.RespondJSON(w, http.StatusOK, out)
}

// Stage returns what the classifier will use for one stage right now.
func (h *Handler) Stage(w http.ResponseWriter, r *http.Request) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	res, err := h.sys.Resolve(r.Context(), stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, http.StatusOK, h.sys.Find)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	cmd, err := handlers.DecodeJSON[Command](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	p, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cmd, err := handlers.DecodeJSON[Command](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	p, err := h.sys.Update(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, http.StatusOK, h.sys.Activate)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, http.StatusOK, h.sys.Deactivate)
}

// byID runs a single-override operation named by the {id} path value.
func (h *Handler) byID(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(ctx context.Context, id uuid.UUID) (*Prompt, error),
) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := op(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, status, p)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
