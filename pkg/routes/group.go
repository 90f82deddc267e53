package routes

import (
	"net/http"
	"strings"

	"github.com/JaimeStill/tally/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
type Group struct {
	Prefix   string
	Tags     []string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}

// Document adds every route of groups to spec.Paths. basePath is prepended
// to each path so the document matches the mounted module.
func Document(spec *openapi.Spec, basePath string, groups ...Group) {
	for _, group := range groups {
		documentGroup(spec, basePath, group, nil)
	}
}

func documentGroup(spec *openapi.Spec, prefix string, group Group, tags []string) {
	fullPrefix := prefix + group.Prefix
	if len(group.Tags) > 0 {
		tags = group.Tags
	}

	for _, route := range group.Routes {
		path := openAPIPath(fullPrefix + route.Pattern)

		op := route.OpenAPI
		if op == nil {
			op = &openapi.Operation{
				Summary:   route.Method + " " + path,
				Responses: map[int]*openapi.Response{http.StatusOK: {Description: "OK"}},
			}
		}
		if len(op.Tags) == 0 {
			op.Tags = tags
		}
		if op.Parameters == nil {
			op.Parameters = pathParams(path)
		}

		item, ok := spec.Paths[path]
		if !ok {
			item = &openapi.PathItem{}
			spec.Paths[path] = item
		}
		item.Set(route.Method, op)
	}

	for _, child := range group.Children {
		documentGroup(spec, fullPrefix, child, tags)
	}
}

// openAPIPath converts a ServeMux pattern to an OpenAPI path template.
func openAPIPath(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "...}", "}")
	pattern = strings.TrimSuffix(pattern, "{$}")
	if pattern == "" {
		return "/"
	}
	return pattern
}

func pathParams(path string) []*openapi.Parameter {
	var params []*openapi.Parameter
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			params = append(params, &openapi.Parameter{
				Name:     name,
				In:       "path",
				Required: true,
				Schema:   &openapi.Schema{Type: "string"},
			})
		}
	}
	return params
}
