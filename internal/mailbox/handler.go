package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JaimeStill/tally/internal/events"
	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/routes"
)

// MaxUploadSize bounds an inbound multipart request when no limit is given.
const MaxUploadSize = 32 << 20

// Handler exposes the relay endpoints.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
	maxUpload  int64
}

// NewHandler creates a Handler. maxUpload bounds inbound requests.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = MaxUploadSize
	}
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "mailbox"),
		pagination: pagination,
		maxUpload:  maxUpload,
	}
}

// Routes returns the route group definition for mailbox endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/mailbox",
		Tags:   []string{"Mailbox"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/outbound", Handler: h.Outbox, OpenAPI: outboxOp},
			{Method: "GET", Pattern: "/outbound/{id}", Handler: h.FindOutbound},
			{Method: "GET", Pattern: "/outbound/{id}/attachments/{index}", Handler: h.Attachment},
			{Method: "POST", Pattern: "/outbound/{id}/sent", Handler: h.MarkSent},
			{Method: "GET", Pattern: "/inbound", Handler: h.Inbox},
			{Method: "POST", Pattern: "/inbound", Handler: h.Receive, OpenAPI: receiveOp},
		},
	}
}

var (
	outboxOp = &openapi.Operation{
		Summary:     "List outbound messages",
		Description: "Relays poll with status=queued and report delivery through /outbound/{id}/sent.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("status", "string", "queued or sent", false),
			openapi.QueryParam("thread_id", "string", "Conversation thread", false),
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
		},
		Responses: map[int]*openapi.Response{
			200: {Description: "Page of outbound messages"},
		},
	}
	receiveOp = &openapi.Operation{
		Summary: "Record a received message",
		RequestBody: openapi.RequestBodyForm(&openapi.Schema{
			Type:     "object",
			Required: []string{"message"},
			Properties: map[string]*openapi.Schema{
				"message":    {Type: "string", Description: "JSON-encoded message"},
				"attachment": {Type: "array", Items: &openapi.Schema{Type: "string", Format: "binary"}},
			},
		}),
		Responses: map[int]*openapi.Response{
			201: {Description: "Recorded"},
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
			413: openapi.ResponseRef("TooLarge"),
		},
	}
)

// Outbox lists outbound messages; relays poll it with ?status=queued.
func (h *Handler) Outbox(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.Outbox(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) FindOutbound(w http.ResponseWriter, r *http.Request) {
	m, err := h.sys.FindOutbound(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

// Attachment streams the content of one outbound attachment.
func (h *Handler) Attachment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid attachment index"))
		return
	}

	att, data, err := h.sys.Attachment(r.Context(), r.PathValue("id"), index)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// MarkSent acknowledges relay delivery of an outbound message.
func (h *Handler) MarkSent(w http.ResponseWriter, r *http.Request) {
	m, err := h.sys.MarkSent(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.Inbox(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Receive accepts a multipart message: a "message" field holding the JSON
// message and any number of "attachment" file parts.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge,
				fmt.Errorf("message exceeds %s", formatting.FormatBytes(h.maxUpload, 0)))
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw := r.FormValue("message")
	if raw == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("message field required"))
		return
	}

	msg, err := decodeMessage(raw)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	files, err := readFiles(r.MultipartForm.File["attachment"])
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	received, err := h.sys.Receive(r.Context(), msg, files)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, received)
}

func decodeMessage(raw string) (events.Message, error) {
	var msg events.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	if msg.From == "" {
		return msg, errors.New("message sender required")
	}
	msg.Attachments = nil
	return msg, nil
}

func readFiles(headers []*multipart.FileHeader) ([]File, error) {
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrInvalidFile, fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidFile, fh.Filename, err)
		}

		files = append(files, File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}
