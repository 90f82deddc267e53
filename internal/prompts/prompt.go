// Package prompts manages the instructions given to the reply classifier.
// Each stage has built-in instructions; an operator may store named
// overrides and activate one per stage.
package prompts

import (
	"strings"

	"github.com/google/uuid"
)

// Prompt is a named instruction override for a classifier stage.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
}

// Command carries the fields of an override, for create and update alike.
type Command struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}

func (c Command) validate() error {
	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Instructions) == "" {
		return ErrEmpty
	}
	return nil
}

// Resolved is what the classifier uses for a stage right now. Override is
// the active override's id, nil when the built-in instructions apply.
type Resolved struct {
	Stage        Stage      `json:"stage"`
	Instructions string     `json:"instructions"`
	Format       string     `json:"format"`
	Override     *uuid.UUID `json:"override,omitempty"`
}
