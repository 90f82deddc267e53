package api

import (
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/routes"
)

var schemas = map[string]*openapi.Schema{
	"Status": {
		Type:        "object",
		Description: "Current workflow position",
		Properties: map[string]*openapi.Schema{
			"state":         {Type: "string", Enum: []any{"IDLE", "PENDING_INIT_APPROVAL", "WAITING_DOCS", "ALL_DOCS_READY", "COMPLETE"}},
			"cycle_id":      {Type: "string"},
			"source":        {Type: "string", Description: "Worklog file name"},
			"fields":        {Type: "object", Description: "Extracted worklog fields"},
			"requirements":  {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"outstanding":   {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"waiting_since": {Type: "string", Format: "date-time"},
			"prompt_ref":    {Type: "string"},
			"editing":       {Type: "boolean"},
			"merged":        {Type: "string"},
			"queued":        {Type: "integer"},
		},
	},
	"Prompt": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         {Type: "string", Format: "uuid"},
			"kind":       {Type: "string"},
			"text":       {Type: "string"},
			"options":    {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"created_at": {Type: "string", Format: "date-time"},
		},
	},
	"Response": {
		Type:     "object",
		Required: []string{"action"},
		Properties: map[string]*openapi.Schema{
			"action": {Type: "string", Enum: []any{"approve", "edit", "cancel", "retry", "yes", "no"}},
			"value":  {Type: "string", Description: "Edited hours for the edit action"},
		},
	},
	"Outbound": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":          {Type: "string"},
			"thread_id":   {Type: "string"},
			"to":          {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"cc":          {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"subject":     {Type: "string"},
			"body":        {Type: "string"},
			"attachments": {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"status":      {Type: "string", Enum: []any{"queued", "sent"}},
			"created_at":  {Type: "string", Format: "date-time"},
			"sent_at":     {Type: "string", Format: "date-time"},
		},
	},
	"PromptCommand": {
		Type:     "object",
		Required: []string{"name", "stage", "instructions"},
		Properties: map[string]*openapi.Schema{
			"name":         {Type: "string"},
			"stage":        {Type: "string", Enum: []any{"approval", "invoice"}},
			"instructions": {Type: "string"},
			"description":  {Type: "string"},
		},
	},
	"PromptOverride": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":           {Type: "string", Format: "uuid"},
			"name":         {Type: "string"},
			"stage":        {Type: "string", Enum: []any{"approval", "invoice"}},
			"instructions": {Type: "string"},
			"description":  {Type: "string"},
			"active":       {Type: "boolean"},
		},
	},
	"PromptPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef("PromptOverride")},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"ResolvedStage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"stage":        {Type: "string", Enum: []any{"approval", "invoice"}},
			"instructions": {Type: "string"},
			"format":       {Type: "string", Description: "Fixed reply format the classifier parses"},
			"override":     {Type: "string", Format: "uuid", Description: "Active override, absent for built-in instructions"},
		},
	},
	"Transition": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         {Type: "string", Format: "uuid"},
			"cycle_id":   {Type: "string"},
			"event":      {Type: "string"},
			"from_state": {Type: "string"},
			"to_state":   {Type: "string"},
			"detail":     {Type: "string"},
			"created_at": {Type: "string", Format: "date-time"},
		},
	},
}

// buildSpec documents groups as served under the API base path.
func buildSpec(cfg *config.Config, groups []routes.Group) ([]byte, error) {
	spec := openapi.New(cfg.API.OpenAPI, cfg.Version, cfg.API.BasePath)
	spec.Components.AddSchemas(schemas)

	routes.Document(spec, "", groups...)
	return spec.Marshal()
}
