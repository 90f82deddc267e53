package openapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/tally/pkg/openapi"
)

func TestNew(t *testing.T) {
	cfg := openapi.Config{Title: "Tally API", Description: "invoice workflow"}
	spec := openapi.New(cfg, "0.1.0", "/api")

	if spec.OpenAPI != openapi.Version {
		t.Errorf("openapi version: got %s, want %s", spec.OpenAPI, openapi.Version)
	}
	if spec.Info.Title != "Tally API" || spec.Info.Version != "0.1.0" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if spec.Info.Description != "invoice workflow" {
		t.Errorf("description: got %s", spec.Info.Description)
	}
	if len(spec.Servers) != 1 || spec.Servers[0].URL != "/api" {
		t.Errorf("servers: got %+v", spec.Servers)
	}
}

func TestPathItemSet(t *testing.T) {
	var item openapi.PathItem
	op := &openapi.Operation{Summary: "Answer a prompt"}

	if !item.Set(http.MethodPost, op) || item.Post != op {
		t.Errorf("post not stored: %+v", item)
	}
	if item.Set(http.MethodPatch, op) {
		t.Error("PATCH is not routed and should be rejected")
	}
}

func TestHelpers(t *testing.T) {
	if got := openapi.SchemaRef("Status").Ref; got != "#/components/schemas/Status" {
		t.Errorf("schema ref: got %s", got)
	}
	if got := openapi.ResponseRef("NotFound").Ref; got != "#/components/responses/NotFound" {
		t.Errorf("response ref: got %s", got)
	}

	rb := openapi.RequestBodyJSON("Response", true)
	if !rb.Required || rb.Content["application/json"].Schema.Ref != "#/components/schemas/Response" {
		t.Errorf("request body: got %+v", rb)
	}

	form := openapi.RequestBodyForm(&openapi.Schema{Type: "object"})
	if _, ok := form.Content["multipart/form-data"]; !ok {
		t.Errorf("form body: got %+v", form)
	}

	p := openapi.PathParam("id", "Transition ID")
	if p.In != "path" || !p.Required || p.Schema.Format != "uuid" {
		t.Errorf("path param: got %+v", p)
	}

	e := openapi.EnumPathParam("action", "cancel", "retry")
	if len(e.Schema.Enum) != 2 || e.Schema.Enum[1] != "retry" {
		t.Errorf("enum param: got %+v", e.Schema)
	}

	q := openapi.QueryParam("status", "string", "Delivery status", false)
	if q.In != "query" || q.Required || q.Schema.Type != "string" {
		t.Errorf("query param: got %+v", q)
	}
}

func TestComponentsShareErrorSchema(t *testing.T) {
	c := openapi.NewComponents()
	for _, name := range []string{"BadRequest", "NotFound", "Conflict", "TooLarge", "Unavailable"} {
		r, ok := c.Responses[name]
		if !ok {
			t.Errorf("missing error response: %s", name)
			continue
		}
		if ref := r.Content["application/json"].Schema.Ref; ref != "#/components/schemas/Error" {
			t.Errorf("%s schema: got %s", name, ref)
		}
	}

	c.AddSchemas(map[string]*openapi.Schema{"Status": {Type: "object"}})
	for _, name := range []string{"Status", "Error", "PageRequest"} {
		if _, ok := c.Schemas[name]; !ok {
			t.Errorf("schema %s missing", name)
		}
	}
}

func TestHandlerRevalidates(t *testing.T) {
	doc, err := openapi.New(openapi.Config{Title: "Test"}, "1.0.0").Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	serve := openapi.Handler(doc)

	rec := httptest.NewRecorder()
	serve(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}
	if parsed["openapi"] != openapi.Version {
		t.Errorf("openapi: got %v", parsed["openapi"])
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("etag not set")
	}

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	serve(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Errorf("revalidate: got %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 carried a body of %d bytes", rec.Body.Len())
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TALLY_OPENAPI_TITLE", "Staging")

	cfg := openapi.Config{}
	if err := cfg.Finalize(&openapi.Env{Title: "TALLY_OPENAPI_TITLE"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.Title != "Staging" {
		t.Errorf("title: got %s, want Staging", cfg.Title)
	}
	if cfg.Description == "" {
		t.Error("description default not applied")
	}

	cfg.Merge(&openapi.Config{Description: "overlay"})
	if cfg.Description != "overlay" || cfg.Title != "Staging" {
		t.Errorf("merge: got %+v", cfg)
	}
}
