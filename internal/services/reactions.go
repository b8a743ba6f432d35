package services

import (
	"context"
	"fmt"
	"strings"

	"emoji-to-do/internal/models"
)

// StaticReactionConfig resolves reaction patterns from a fixed in-memory
// table, injected at construction time. Lookups match on (team, reaction)
// only; the channel argument is accepted for channel-scoped overrides later
// but ignored. Duplicate entries resolve to the first match in insertion
// order.
type StaticReactionConfig struct {
	patterns []models.ReactionPattern
}

// NewStaticReactionConfig creates a resolver over the given patterns.
func NewStaticReactionConfig(patterns []models.ReactionPattern) *StaticReactionConfig {
	return &StaticReactionConfig{patterns: patterns}
}

// FindReactionPattern returns the first pattern matching the team and
// reaction name, or nil if the team is unknown or no pattern matches.
func (c *StaticReactionConfig) FindReactionPattern(
	_ context.Context, teamID, _ string, reaction string,
) (*models.ReactionPattern, error) {
	for i := range c.patterns {
		if c.patterns[i].TeamID == teamID && c.patterns[i].Name == reaction {
			pattern := c.patterns[i]
			return &pattern, nil
		}
	}
	return nil, nil
}

// ParseReactionPatterns parses the REACTION_PATTERNS environment value, a
// comma-separated list of "team:reaction=owner/repo" entries, for example:
//
//	T0XXXXX:eyes=acme/todos,T0XXXXX:memo=acme/docs
func ParseReactionPatterns(value string) ([]models.ReactionPattern, error) {
	var patterns []models.ReactionPattern

	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, repo, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid reaction pattern entry %q: missing '='", entry)
		}
		teamID, reaction, ok := strings.Cut(key, ":")
		if !ok {
			return nil, fmt.Errorf("invalid reaction pattern entry %q: missing ':'", entry)
		}

		teamID = strings.TrimSpace(teamID)
		reaction = strings.TrimSpace(reaction)
		repo = strings.TrimSpace(repo)
		if teamID == "" || reaction == "" || repo == "" {
			return nil, fmt.Errorf("invalid reaction pattern entry %q: empty field", entry)
		}

		patterns = append(patterns, models.ReactionPattern{
			TeamID: teamID,
			Name:   reaction,
			Repo:   repo,
		})
	}

	return patterns, nil
}
