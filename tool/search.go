package tool

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/petal-labs/tooltailor/override"
)

// FilterTools keeps the tools matching query, best matches first. Tools with
// equal scores keep their input order. An empty query returns tools as is.
func FilterTools(tools []override.ResolvedTool, query string) []override.ResolvedTool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tools
	}

	type scored struct {
		tool  override.ResolvedTool
		score int
	}
	matches := make([]scored, 0, len(tools))
	for _, tool := range tools {
		if score := matchScore(tool, query); score > 0 {
			matches = append(matches, scored{tool: tool, score: score})
		}
	}
	slices.SortStableFunc(matches, func(a, b scored) int {
		return b.score - a.score
	})

	out := make([]override.ResolvedTool, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.tool)
	}
	return out
}

func matchScore(tool override.ResolvedTool, query string) int {
	display := strings.ToLower(tool.DisplayName)
	canonical := strings.ToLower(tool.CanonicalName())
	description := strings.ToLower(tool.Description)

	score := 0
	switch {
	case display == query || canonical == query:
		score += 200
	case strings.Contains(display, query) || strings.Contains(canonical, query):
		score += 100
	}
	if fuzzy.Match(query, display) || fuzzy.Match(query, canonical) {
		score += 50
	}
	if strings.Contains(description, query) {
		score += 30
	}
	return score
}
