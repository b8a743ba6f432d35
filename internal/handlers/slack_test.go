package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"emoji-to-do/internal/config"
	"emoji-to-do/internal/models"
	"emoji-to-do/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSlackGateway records calls and returns canned responses. GetUserInfo
// must be safe for concurrent use because the pipeline resolves authors in
// parallel.
type fakeSlackGateway struct {
	mu sync.Mutex

	users        map[string]*models.SlackUser
	messages     []models.SlackMessage
	messagesErr  error
	permalink    string
	permalinkErr error
	postErr      error

	userInfoCalls    []string
	getMessagesCalls int
	posted           []postedMessage
}

type postedMessage struct {
	channel string
	text    string
}

func (f *fakeSlackGateway) GetUserInfo(_ context.Context, userID string) (*models.SlackUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userInfoCalls = append(f.userInfoCalls, userID)

	user, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return user, nil
}

func (f *fakeSlackGateway) GetMessages(_ context.Context, _, _ string, _ int) ([]models.SlackMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getMessagesCalls++
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages, nil
}

func (f *fakeSlackGateway) GetPermalink(_ context.Context, _, _ string) (string, error) {
	if f.permalinkErr != nil {
		return "", f.permalinkErr
	}
	return f.permalink, nil
}

func (f *fakeSlackGateway) PostMessage(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, postedMessage{channel: channel, text: text})
	return f.postErr
}

func (f *fakeSlackGateway) userInfoCallCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range f.userInfoCalls {
		if id == userID {
			count++
		}
	}
	return count
}

type issueCall struct {
	repo      string
	title     string
	body      string
	assignees []string
}

type fakeIssueFiler struct {
	mu    sync.Mutex
	issue *models.Issue
	err   error
	calls []issueCall
}

func (f *fakeIssueFiler) CreateIssue(
	_ context.Context, repo, title, body string, assignees []string,
) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, issueCall{repo: repo, title: title, body: body, assignees: assignees})
	if f.err != nil {
		return nil, f.err
	}
	return f.issue, nil
}

type erroringFinder struct{}

func (erroringFinder) FindReactionPattern(context.Context, string, string, string) (*models.ReactionPattern, error) {
	return nil, assert.AnError
}

func defaultGateway() *fakeSlackGateway {
	return &fakeSlackGateway{
		users: map[string]*models.SlackUser{
			"U1": {ID: "U1", Name: "uiur", TeamID: "T1"},
			"U2": {ID: "U2", Name: "alice", TeamID: "T1"},
			"U3": {ID: "U3", Name: "bob", TeamID: "T1"},
		},
		messages: []models.SlackMessage{
			{User: "U2", Text: "fix this\nplease", Timestamp: "100.000100"},
			{User: "U3", Text: "look at <@U2>", Timestamp: "90.000100"},
		},
		permalink: "https://example.slack.com/archives/C1/p100000100",
	}
}

func defaultFiler() *fakeIssueFiler {
	return &fakeIssueFiler{issue: &models.Issue{URL: "https://github.com/acme/todos/issues/1"}}
}

func defaultFinder() ReactionPatternFinder {
	return services.NewStaticReactionConfig([]models.ReactionPattern{
		{TeamID: "T1", Name: "eyes", Repo: "acme/todos", Assignees: []string{"uiur"}},
	})
}

func newTestRouter(gateway SlackGateway, filer IssueFiler, finder ReactionPatternFinder) *gin.Engine {
	cfg := &config.Config{ContextMessageCount: 3}
	handler := NewSlackHandler(gateway, filer, finder, cfg)

	router := gin.New()
	router.POST("/webhook/slack/events", handler.HandleEvent)
	return router
}

func postEvent(router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const reactionAddedBody = `{
	"type": "event_callback",
	"event": {
		"type": "reaction_added",
		"user": "U1",
		"reaction": "eyes",
		"item": {"type": "message", "channel": "C1", "ts": "100.000100"}
	}
}`

func TestHandleEvent_URLVerification(t *testing.T) {
	router := newTestRouter(defaultGateway(), defaultFiler(), defaultFinder())

	w := postEvent(router, `{"type":"url_verification","challenge":"challenge-token"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "challenge-token", w.Body.String())
}

func TestHandleEvent_MalformedBody(t *testing.T) {
	router := newTestRouter(defaultGateway(), defaultFiler(), defaultFinder())

	w := postEvent(router, `{"type":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_UnknownRequestType(t *testing.T) {
	router := newTestRouter(defaultGateway(), defaultFiler(), defaultFinder())

	w := postEvent(router, `{"type":"app_rate_limited"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_UnrecognizedInnerEvent(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, `{"type":"event_callback","event":{"type":"channel_created"}}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, filer.calls)
	assert.Empty(t, gateway.posted)
}

func TestHandleEvent_RetriedDeliveryIsIgnored(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	// First delivery runs the pipeline.
	w := postEvent(router, reactionAddedBody, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, filer.calls, 1)

	// The timeout-triggered retry is acknowledged without any processing.
	w = postEvent(router, reactionAddedBody, map[string]string{
		"X-Slack-Retry-Reason": "http_timeout",
		"X-Slack-Retry-Num":    "1",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, filer.calls, 1)
	assert.Equal(t, 1, gateway.getMessagesCalls)
}

func TestHandleEvent_RetryWithOtherReasonIsProcessed(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, map[string]string{
		"X-Slack-Retry-Reason": "http_error",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, filer.calls, 1)
}

func TestReactionAdded_CreatesIssueAndConfirms(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, filer.calls, 1)
	call := filer.calls[0]
	assert.Equal(t, "acme/todos", call.repo)
	assert.Equal(t, "fix this please", call.title)
	expectedBody := "```\n" +
		"alice: fix this please\n" +
		"bob: look at @alice\n" +
		"```\n" +
		"https://example.slack.com/archives/C1/p100000100"
	assert.Equal(t, expectedBody, call.body)
	assert.Equal(t, []string{"uiur"}, call.assignees)

	require.Len(t, gateway.posted, 1)
	assert.Equal(t, "C1", gateway.posted[0].channel)
	assert.Equal(t, "<@uiur> https://github.com/acme/todos/issues/1", gateway.posted[0].text)
}

func TestReactionAdded_ResolvesEachAuthorOnce(t *testing.T) {
	gateway := defaultGateway()
	gateway.messages = []models.SlackMessage{
		{User: "U2", Text: "one", Timestamp: "100.000100"},
		{User: "U2", Text: "two", Timestamp: "90.000100"},
		{User: "U3", Text: "three", Timestamp: "80.000100"},
	}
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gateway.userInfoCallCount("U2"))
	assert.Equal(t, 1, gateway.userInfoCallCount("U3"))
}

func TestReactionAdded_NotConfigured(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	finder := services.NewStaticReactionConfig(nil)
	router := newTestRouter(gateway, filer, finder)

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, filer.calls)
	assert.Zero(t, gateway.getMessagesCalls)
	assert.Empty(t, gateway.posted)
}

func TestReactionAdded_PatternLookupFails(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, erroringFinder{})

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, filer.calls)
}

func TestReactionAdded_NonMessageItem(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	body := `{
		"type": "event_callback",
		"event": {
			"type": "reaction_added",
			"user": "U1",
			"reaction": "eyes",
			"item": {"type": "file", "channel": "C1"}
		}
	}`
	w := postEvent(router, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, gateway.getMessagesCalls)
	assert.Empty(t, filer.calls)
}

func TestReactionAdded_MessageFetchFails(t *testing.T) {
	gateway := defaultGateway()
	gateway.messagesErr = assert.AnError
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, filer.calls)
	assert.Empty(t, gateway.posted)
}

func TestReactionAdded_AuthorLookupFails(t *testing.T) {
	gateway := defaultGateway()
	delete(gateway.users, "U3")
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, filer.calls)
}

func TestReactionAdded_PermalinkFailureTolerated(t *testing.T) {
	gateway := defaultGateway()
	gateway.permalinkErr = assert.AnError
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, filer.calls, 1)
	assert.True(t, strings.HasSuffix(filer.calls[0].body, "```\n"),
		"body should end with an empty permalink line")
}

func TestReactionAdded_IssueCreationFails(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	filer.err = assert.AnError
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, gateway.posted)
}

func TestReactionAdded_ConfirmationFailureAfterIssueCreated(t *testing.T) {
	gateway := defaultGateway()
	gateway.postErr = assert.AnError
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	w := postEvent(router, reactionAddedBody, nil)

	// The error is surfaced even though the issue exists; exactly one
	// issue was created and nothing rolls it back.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, filer.calls, 1)
}

func TestAppMention_Ping(t *testing.T) {
	gateway := defaultGateway()
	filer := defaultFiler()
	router := newTestRouter(gateway, filer, defaultFinder())

	body := `{
		"type": "event_callback",
		"event": {"type": "app_mention", "user": "U1", "text": "<@UBOT> ping", "channel": "C1"}
	}`
	w := postEvent(router, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gateway.posted, 1)
	assert.Equal(t, "C1", gateway.posted[0].channel)
	assert.Equal(t, "pong", gateway.posted[0].text)
	assert.Empty(t, filer.calls)
}

func TestAppMention_EchoesUnknownCommand(t *testing.T) {
	gateway := defaultGateway()
	router := newTestRouter(gateway, defaultFiler(), defaultFinder())

	body := `{
		"type": "event_callback",
		"event": {"type": "app_mention", "user": "U1", "text": "<@UBOT> deploy it", "channel": "C1"}
	}`
	w := postEvent(router, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gateway.posted, 1)
	assert.Equal(t, "```deploy it```", gateway.posted[0].text)
}

func TestAppMention_PostFailure(t *testing.T) {
	gateway := defaultGateway()
	gateway.postErr = assert.AnError
	router := newTestRouter(gateway, defaultFiler(), defaultFinder())

	body := `{
		"type": "event_callback",
		"event": {"type": "app_mention", "user": "U1", "text": "<@UBOT> ping", "channel": "C1"}
	}`
	w := postEvent(router, body, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
