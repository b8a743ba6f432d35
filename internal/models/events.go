package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Slack Events API envelope types.
const (
	RequestTypeURLVerification = "url_verification"
	RequestTypeEventCallback   = "event_callback"
)

// Inner event types.
const (
	EventTypeReactionAdded = "reaction_added"
	EventTypeAppMention    = "app_mention"
)

// ItemTypeMessage is the item type for reactions attached to messages.
const ItemTypeMessage = "message"

// ErrEmptyWebhookBody is returned when the webhook body contains no payload.
var ErrEmptyWebhookBody = errors.New("empty webhook body")

// SlackWebhook is a decoded Slack Events API delivery. Type discriminates
// between url_verification, event_callback and anything else; Event is only
// populated for event callbacks.
type SlackWebhook struct {
	Type      string
	Challenge string
	Event     SlackEvent
}

// SlackEvent is the inner event of an event callback. Exactly one of
// ReactionAdded and AppMention is non-nil for recognized event types; both
// are nil for event types this app does not handle, which callers must treat
// as a no-op rather than an error so new Slack event kinds pass through
// harmlessly.
type SlackEvent struct {
	Type          string
	ReactionAdded *ReactionAddedEvent
	AppMention    *AppMentionEvent
}

// ReactionAddedEvent is emitted when a user adds an emoji reaction.
// https://api.slack.com/events/reaction_added
type ReactionAddedEvent struct {
	User     string       `json:"user"`
	Reaction string       `json:"reaction"`
	Item     ReactionItem `json:"item"`
}

// ReactionItem identifies the thing that was reacted to. Only message items
// carry a channel and timestamp.
type ReactionItem struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// AppMentionEvent is emitted when the bot user is mentioned.
// https://api.slack.com/events/app_mention
type AppMentionEvent struct {
	User    string `json:"user"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// ParseSlackWebhook decodes a Slack Events API request body into a typed
// SlackWebhook. Unrecognized inner event types decode into a SlackEvent with
// the raw type string and no payload. Malformed JSON is an error.
func ParseSlackWebhook(body []byte) (*SlackWebhook, error) {
	if len(body) == 0 {
		return nil, ErrEmptyWebhookBody
	}

	var envelope struct {
		Type      string          `json:"type"`
		Challenge string          `json:"challenge"`
		Event     json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}

	webhook := &SlackWebhook{
		Type:      envelope.Type,
		Challenge: envelope.Challenge,
	}

	if envelope.Type != RequestTypeEventCallback {
		return webhook, nil
	}

	if len(envelope.Event) == 0 {
		return nil, fmt.Errorf("event_callback without event payload: %w", ErrEmptyWebhookBody)
	}

	var inner struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(envelope.Event, &inner); err != nil {
		return nil, fmt.Errorf("failed to decode inner event: %w", err)
	}
	webhook.Event.Type = inner.Type

	switch inner.Type {
	case EventTypeReactionAdded:
		var ev ReactionAddedEvent
		if err := json.Unmarshal(envelope.Event, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode reaction_added event: %w", err)
		}
		webhook.Event.ReactionAdded = &ev
	case EventTypeAppMention:
		var ev AppMentionEvent
		if err := json.Unmarshal(envelope.Event, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode app_mention event: %w", err)
		}
		webhook.Event.AppMention = &ev
	}

	return webhook, nil
}
