// Package handlers contains the HTTP handlers: the Slack events webhook that
// drives the reaction-to-issue pipeline, and the admin API for reaction
// pattern configuration.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"emoji-to-do/internal/config"
	"emoji-to-do/internal/log"
	"emoji-to-do/internal/models"
	"emoji-to-do/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
)

// Slack resends a delivery with this retry reason after the first attempt
// timed out client-side. Processing it again would file a duplicate issue.
const retryReasonHTTPTimeout = "http_timeout"

// SlackGateway is the subset of the Slack Web API the pipeline consumes.
type SlackGateway interface {
	GetUserInfo(ctx context.Context, userID string) (*models.SlackUser, error)
	GetMessages(ctx context.Context, channelID, latest string, limit int) ([]models.SlackMessage, error)
	GetPermalink(ctx context.Context, channelID, ts string) (string, error)
	PostMessage(ctx context.Context, channelID, text string) error
}

// IssueFiler creates GitHub issues.
type IssueFiler interface {
	CreateIssue(ctx context.Context, repoFullName, title, body string, assignees []string) (*models.Issue, error)
}

// ReactionPatternFinder resolves (team, reaction) pairs to target
// repositories. A nil pattern with nil error means "not configured", which
// the pipeline treats as a successful no-op.
type ReactionPatternFinder interface {
	FindReactionPattern(ctx context.Context, teamID, channelID, reaction string) (*models.ReactionPattern, error)
}

// SlackHandler handles Slack Events API deliveries.
type SlackHandler struct {
	slackService        SlackGateway
	githubService       IssueFiler
	patterns            ReactionPatternFinder
	signingSecret       string
	contextMessageCount int
}

// NewSlackHandler creates a new SlackHandler with the provided collaborators.
func NewSlackHandler(
	slackService SlackGateway,
	githubService IssueFiler,
	patterns ReactionPatternFinder,
	cfg *config.Config,
) *SlackHandler {
	return &SlackHandler{
		slackService:        slackService,
		githubService:       githubService,
		patterns:            patterns,
		signingSecret:       cfg.SlackSigningSecret,
		contextMessageCount: cfg.ContextMessageCount,
	}
}

// HandleEvent processes one webhook delivery from Slack.
//
// Deliveries Slack retried because of a client-side timeout are acknowledged
// without processing: the first attempt likely completed after Slack gave up
// on it. This only suppresses timeout-triggered retries; error-triggered
// retries run the pipeline again and may file duplicate issues.
func (sh *SlackHandler) HandleEvent(c *gin.Context) {
	if c.GetHeader("X-Slack-Retry-Reason") == retryReasonHTTPTimeout {
		log.Info(c.Request.Context(), "Ignoring retried delivery after client timeout",
			"retry_num", c.GetHeader("X-Slack-Retry-Num"),
		)
		c.String(http.StatusOK, "")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	if err := sh.verifySignature(c.Request.Header, body); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	webhook, err := models.ParseSlackWebhook(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	}

	switch webhook.Type {
	case models.RequestTypeURLVerification:
		c.String(http.StatusOK, webhook.Challenge)
	case models.RequestTypeEventCallback:
		sh.handleEventCallback(c, webhook.Event)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported request type"})
	}
}

func (sh *SlackHandler) handleEventCallback(c *gin.Context, event models.SlackEvent) {
	switch {
	case event.ReactionAdded != nil:
		sh.handleReactionAdded(c, event.ReactionAdded)
	case event.AppMention != nil:
		sh.handleAppMention(c, event.AppMention)
	default:
		// Unrecognized event kinds are acknowledged so Slack does not
		// retry them.
		log.Debug(c.Request.Context(), "Ignoring unhandled event type", "event_type", event.Type)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleReactionAdded runs the reaction-to-issue pipeline: resolve the
// reacting user and the team's pattern, fetch the surrounding conversation,
// render it, file the issue and confirm back to the channel.
func (sh *SlackHandler) handleReactionAdded(c *gin.Context, event *models.ReactionAddedEvent) {
	ctx := log.WithFields(c.Request.Context(), log.LogFields{
		"reaction": event.Reaction,
		"channel":  event.Item.Channel,
	})

	reactor, err := sh.slackService.GetUserInfo(ctx, event.User)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reacting user"})
		return
	}

	pattern, err := sh.patterns.FindReactionPattern(ctx, reactor.TeamID, event.Item.Channel, event.Reaction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve reaction pattern"})
		return
	}
	if pattern == nil {
		log.Debug(ctx, "No reaction pattern configured", "team_id", reactor.TeamID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if event.Item.Type != models.ItemTypeMessage {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	messages, err := sh.slackService.GetMessages(ctx, event.Item.Channel, event.Item.Timestamp, sh.contextMessageCount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch slack messages"})
		return
	}

	// Best effort: an issue without a permalink is still useful.
	permalink, err := sh.slackService.GetPermalink(ctx, event.Item.Channel, event.Item.Timestamp)
	if err != nil {
		log.Warn(ctx, "Failed to fetch permalink", "error", err)
		permalink = ""
	}

	authors, err := sh.resolveAuthors(ctx, messages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve message authors"})
		return
	}

	title, body := renderIssue(messages, authors, permalink)

	issue, err := sh.githubService.CreateIssue(ctx, pattern.Repo, title, body, pattern.Assignees)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create issue"})
		return
	}

	// The issue already exists at this point; a notification failure is
	// surfaced to Slack anyway, so its retry may file a duplicate. There
	// is no compensating delete.
	confirmation := fmt.Sprintf("<@%s> %s", reactor.Name, issue.URL)
	if err := sh.slackService.PostMessage(ctx, event.Item.Channel, confirmation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post confirmation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleAppMention implements the lightweight command path: "ping" answers
// "pong", anything else is echoed back fenced in a code block.
func (sh *SlackHandler) handleAppMention(c *gin.Context, event *models.AppMentionEvent) {
	ctx := c.Request.Context()

	text := utils.StripLeadingMention(event.Text)

	var reply string
	if text == "ping" {
		reply = "pong"
	} else {
		reply = fmt.Sprintf("```%s```", text)
	}

	if err := sh.slackService.PostMessage(ctx, event.Channel, reply); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// resolveAuthors resolves every distinct author id in messages to a display
// name, one concurrent lookup per id. All lookups must succeed: partial
// results would silently misattribute messages, so the first failure fails
// the whole step.
func (sh *SlackHandler) resolveAuthors(
	ctx context.Context, messages []models.SlackMessage,
) (map[string]string, error) {
	ids := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if m.User == "" {
			continue
		}
		if _, ok := seen[m.User]; ok {
			continue
		}
		seen[m.User] = struct{}{}
		ids = append(ids, m.User)
	}

	names := make(map[string]string, len(ids))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			user, err := sh.slackService.GetUserInfo(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			names[user.ID] = user.Name
		}(id)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return names, nil
}

// renderIssue builds the issue title and body from the fetched conversation.
// The title is the humanized text of the first message Slack returned (the
// reacted-to message, since history is fetched most-recent-first ending at
// its timestamp). The body is the conversation as "author: text" lines in
// Slack's order, fenced, with the permalink underneath.
func renderIssue(messages []models.SlackMessage, authors map[string]string, permalink string) (string, string) {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", authors[m.User], utils.Humanize(m.Text, authors)))
	}

	var title string
	if len(messages) > 0 {
		title = utils.Humanize(messages[0].Text, authors)
	}

	body := fmt.Sprintf("```\n%s\n```\n%s", strings.Join(lines, "\n"), permalink)
	return title, body
}

func (sh *SlackHandler) verifySignature(header http.Header, body []byte) error {
	if sh.signingSecret == "" {
		return nil
	}

	sv, err := slack.NewSecretsVerifier(header, sh.signingSecret)
	if err != nil {
		return fmt.Errorf("failed to create secrets verifier: %w", err)
	}

	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("failed to write body to verifier: %w", err)
	}

	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	return nil
}
