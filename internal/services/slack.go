// Package services provides thin clients over the Slack, GitHub and
// Firestore APIs.
package services

import (
	"context"
	"fmt"

	"emoji-to-do/internal/log"
	"emoji-to-do/internal/models"

	"github.com/slack-go/slack"
)

// SlackService wraps the Slack Web API calls the pipeline needs. It performs
// no retries: a failed call is a terminal failure for that call, and the
// caller decides what that means for the delivery being processed.
type SlackService struct {
	client *slack.Client
}

// NewSlackService creates a new SlackService with the provided client.
func NewSlackService(client *slack.Client) *SlackService {
	return &SlackService{client: client}
}

// GetUserInfo fetches a single user's profile via users.info.
func (s *SlackService) GetUserInfo(ctx context.Context, userID string) (*models.SlackUser, error) {
	user, err := s.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.Error(ctx, "Failed to fetch Slack user",
			"error", err,
			"user_id", userID,
			"operation", "get_user_info",
		)
		return nil, fmt.Errorf("failed to fetch slack user %s: %w", userID, err)
	}

	return &models.SlackUser{
		ID:     user.ID,
		Name:   user.Name,
		TeamID: user.TeamID,
	}, nil
}

// GetMessages fetches up to limit messages from a channel's history, ending
// at and including the message at latest. Messages are returned in the order
// Slack returns them: most recent first.
func (s *SlackService) GetMessages(
	ctx context.Context, channelID, latest string, limit int,
) ([]models.SlackMessage, error) {
	resp, err := s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Latest:    latest,
		Limit:     limit,
		Inclusive: true,
	})
	if err != nil {
		log.Error(ctx, "Failed to fetch Slack messages",
			"error", err,
			"channel", channelID,
			"latest", latest,
			"operation", "get_messages",
		)
		return nil, fmt.Errorf("failed to fetch messages from channel %s: %w", channelID, err)
	}

	messages := make([]models.SlackMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, models.SlackMessage{
			User:      m.User,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}

	return messages, nil
}

// GetPermalink fetches a stable URL pointing at a specific message.
func (s *SlackService) GetPermalink(ctx context.Context, channelID, ts string) (string, error) {
	permalink, err := s.client.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: channelID,
		Ts:      ts,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch permalink for message %s in channel %s: %w", ts, channelID, err)
	}
	return permalink, nil
}

// PostMessage posts a plain text message to a channel.
func (s *SlackService) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Error(ctx, "Failed to post message to Slack",
			"error", err,
			"channel", channelID,
			"operation", "post_message",
		)
		return fmt.Errorf("failed to post message to channel %s: %w", channelID, err)
	}
	return nil
}
