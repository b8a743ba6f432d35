package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"emoji-to-do/internal/config"
	"emoji-to-do/internal/log"
	"emoji-to-do/internal/models"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
)

var (
	// ErrInvalidRepoFormat is returned when repository name format is invalid.
	ErrInvalidRepoFormat = errors.New("invalid repository name format")
)

const expectedRepoParts = 2

// GitHubService files issues via the GitHub REST API.
type GitHubService struct {
	client *github.Client
}

// NewGitHubService creates a GitHubService authenticated either as a GitHub
// App installation (when app credentials are configured) or with a static
// token.
func NewGitHubService(cfg *config.Config) (*GitHubService, error) {
	if cfg.GitHubAppID != 0 {
		key, err := base64.StdEncoding.DecodeString(cfg.GitHubPrivateKeyBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode GitHub App private key: %w", err)
		}
		transport, err := ghinstallation.New(http.DefaultTransport, cfg.GitHubAppID, cfg.GitHubInstallationID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
		}
		return &GitHubService{client: github.NewClient(&http.Client{Transport: transport})}, nil
	}

	transport := &github.BasicAuthTransport{
		Username: "x-access-token",
		Password: cfg.GitHubToken,
	}
	return &GitHubService{client: github.NewClient(transport.Client())}, nil
}

// NewGitHubServiceWithClient creates a GitHubService with an injected HTTP
// client, used by tests to intercept API traffic.
func NewGitHubServiceWithClient(httpClient *http.Client) *GitHubService {
	return &GitHubService{client: github.NewClient(httpClient)}
}

// CreateIssue creates an issue in the given "owner/name" repository. Single
// attempt, no retry; the error carries GitHub's response details on failure.
func (s *GitHubService) CreateIssue(
	ctx context.Context, repoFullName, title, body string, assignees []string,
) (*models.Issue, error) {
	parts := strings.Split(repoFullName, "/")
	if len(parts) != expectedRepoParts {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepoFormat, repoFullName)
	}
	owner, repo := parts[0], parts[1]

	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}
	if len(assignees) > 0 {
		req.Assignees = &assignees
	}

	issue, resp, err := s.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		log.Error(ctx, "Failed to create GitHub issue",
			"error", err,
			"repo", repoFullName,
			"status", statusCode,
			"operation", "create_issue",
		)
		return nil, fmt.Errorf("failed to create issue in %s: %w", repoFullName, err)
	}

	log.Info(ctx, "Created GitHub issue",
		"repo", repoFullName,
		"issue_url", issue.GetHTMLURL(),
	)

	return &models.Issue{URL: issue.GetHTMLURL()}, nil
}
