package prompts

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

// columns is the select list every statement returns, in scanPrompt order.
const columns = "id, name, stage, instructions, description, active"

var projection = query.
	NewProjectionMap("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("stage", "Stage").
	Project("instructions", "Instructions").
	Project("description", "Description").
	Project("active", "Active")

// Overrides list by stage, then name.
var defaultSort = []query.SortField{{Field: "Stage"}, {Field: "Name"}}

// Filters narrows override queries. Name matches by substring.
type Filters struct {
	Stage  *Stage  `json:"stage,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (f Filters) apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery reads stage, name and active. An unknown stage is an
// error; an unparseable active flag is ignored.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if s := values.Get("stage"); s != "" {
		stage, err := ParseStage(s)
		if err != nil {
			return Filters{}, err
		}
		f.Stage = &stage
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if a, err := strconv.ParseBool(values.Get("active")); err == nil {
		f.Active = &a
	}

	return f, nil
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(&p.ID, &p.Name, &p.Stage, &p.Instructions, &p.Description, &p.Active)
	return p, err
}
