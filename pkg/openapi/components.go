package openapi

import "maps"

// NewComponents returns the schemas and error responses every tally
// document shares. Handlers answer errors with {"error": "..."}, so each
// error response references the one Error schema.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type:       "object",
				Required:   []string{"error"},
				Properties: map[string]*Schema{"error": {Type: "string"}},
			},
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields, - prefix for descending", Example: "-CreatedAt"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":  errorResponse("Invalid request or unknown action"),
			"NotFound":    errorResponse("No such prompt, document, message or transition"),
			"Conflict":    errorResponse("Message or document already recorded"),
			"TooLarge":    errorResponse("Received message exceeds the upload limit"),
			"Unavailable": errorResponse("Coordinator not running"),
		},
	}
}

func errorResponse(description string) *Response {
	return ResponseJSON(description, "Error")
}

// AddSchemas merges schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

