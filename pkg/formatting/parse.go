package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when model output holds no JSON value of the
// requested shape.
var ErrParseFailed = errors.New("failed to parse response")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Parse decodes a classifier verdict from model output. Models answer with
// bare JSON, JSON in a code fence, or JSON wrapped in a sentence, so each of
// those is tried in turn.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range jsonCandidates(content) {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %q", ErrParseFailed, Truncate(content, 200))
}

func jsonCandidates(content string) []string {
	candidates := []string{content}

	if m := fencePattern.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}

	open, end := strings.IndexByte(content, '{'), strings.LastIndexByte(content, '}')
	if open >= 0 && end > open {
		candidates = append(candidates, content[open:end+1])
	}

	return candidates
}
