// Package models defines the data structures used throughout the application.
package models

import "time"

// ReactionPattern maps a Slack team and reaction emoji to a target GitHub
// repository. At most one pattern should exist per (team, reaction); lookups
// return the first match if that is ever violated.
type ReactionPattern struct {
	TeamID    string    `firestore:"team_id" json:"team_id"`
	Name      string    `firestore:"name" json:"name"`
	Repo      string    `firestore:"repo" json:"repo"`
	Assignees []string  `firestore:"assignees,omitempty" json:"assignees,omitempty"`
	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
}

// SlackUser is the subset of a Slack user profile the pipeline needs.
type SlackUser struct {
	ID     string
	Name   string
	TeamID string
}

// SlackMessage is a single message from a channel's history.
// Timestamp is a string-encoded fixed-point number and is treated as an
// opaque identifier, never parsed numerically.
type SlackMessage struct {
	User      string
	Text      string
	Timestamp string
}

// Issue is a GitHub issue created by the pipeline. It is write-only: the
// pipeline never reads issues back.
type Issue struct {
	URL string
}
