// Package github implements the issue-comment sink: task output posted as a
// comment on an issue or pull request via the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Strob0t/AgentRelay/internal/port/notifier"
)

const sinkName = "github-comment"

// defaultAPIURL is the GitHub REST endpoint root.
const defaultAPIURL = "https://api.github.com"

// maxCommentBytes keeps comments under GitHub's 65536-character body limit.
// Truncation is silent and deterministic.
const maxCommentBytes = 65000

// Notifier posts task output as an issue/PR comment.
type Notifier struct {
	apiURL     string
	repo       string // "owner/name"
	number     int
	token      string
	httpClient *http.Client
}

// NewNotifier creates an issue-comment notifier for the given target.
func NewNotifier(apiURL, repo string, number int, token string) *Notifier {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Notifier{
		apiURL:     apiURL,
		repo:       repo,
		number:     number,
		token:      token,
		httpClient: http.DefaultClient,
	}
}

// Register registers the issue-comment sink factory. Repo, number and token
// arrive per-task from the reply descriptor.
func Register() {
	notifier.Register(sinkName, func(config map[string]string) (notifier.Notifier, error) {
		number, err := strconv.Atoi(config["number"])
		if err != nil {
			return nil, fmt.Errorf("github notifier: bad issue number %q", config["number"])
		}
		return NewNotifier(config["api_url"], config["repo"], number, config["token"]), nil
	})
}

func (n *Notifier) Name() string { return sinkName }

// commentRequest is the body for the comment-creation endpoint.
type commentRequest struct {
	Body string `json:"body"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.repo == "" || n.number <= 0 || n.token == "" {
		return notifier.ErrNotConfigured
	}

	comment := commentRequest{Body: string(truncate(notification.Body, maxCommentBytes))}

	body, err := json.Marshal(comment)
	if err != nil {
		return fmt.Errorf("github marshal: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments", n.apiURL, n.repo, n.number)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}
