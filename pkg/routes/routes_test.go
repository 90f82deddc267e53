package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/routes"
)

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/items",
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
		},
	})

	tests := []struct {
		name   string
		method string
		path   string
		wantOK bool
	}{
		{"list items", "GET", "/items", true},
		{"get item", "GET", "/items/123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if tt.wantOK && rec.Code != http.StatusOK {
				t.Errorf("status: got %d, want 200", rec.Code)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/v1",
				Routes: []routes.Route{
					{
						Method:  "GET",
						Pattern: "/items",
						Handler: func(w http.ResponseWriter, r *http.Request) {
							w.WriteHeader(http.StatusOK)
						},
					},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

func TestDocument(t *testing.T) {
	noop := func(w http.ResponseWriter, r *http.Request) {}
	spec := openapi.New(openapi.Config{Title: "Test"}, "1.0.0")

	routes.Document(spec, "/api",
		routes.Group{
			Prefix: "/mailbox",
			Tags:   []string{"Mailbox"},
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/outbound", Handler: noop},
				{
					Method:  "POST",
					Pattern: "/outbound/{id}/sent",
					Handler: noop,
					OpenAPI: &openapi.Operation{
						Summary:   "Mark sent",
						Responses: map[int]*openapi.Response{200: {Description: "Updated"}},
					},
				},
			},
		},
		routes.Group{
			Prefix: "/documents",
			Tags:   []string{"Documents"},
			Routes: []routes.Route{
				{Method: "GET", Pattern: "/{key...}", Handler: noop},
				{Method: "DELETE", Pattern: "/{key...}", Handler: noop},
			},
		},
	)

	list, ok := spec.Paths["/api/mailbox/outbound"]
	if !ok || list.Get == nil {
		t.Fatal("outbound list not documented")
	}
	if list.Get.Tags[0] != "Mailbox" {
		t.Errorf("tags: got %v, want [Mailbox]", list.Get.Tags)
	}

	sent := spec.Paths["/api/mailbox/outbound/{id}/sent"]
	if sent == nil || sent.Post == nil {
		t.Fatal("mark sent not documented")
	}
	if sent.Post.Summary != "Mark sent" {
		t.Errorf("summary: got %q", sent.Post.Summary)
	}
	if len(sent.Post.Parameters) != 1 || sent.Post.Parameters[0].Name != "id" {
		t.Errorf("parameters: got %+v", sent.Post.Parameters)
	}

	doc := spec.Paths["/api/documents/{key}"]
	if doc == nil || doc.Get == nil || doc.Delete == nil {
		t.Fatal("wildcard path not converted")
	}
}
