package vcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// Collaborator is the slice of the version-control host the task lifecycle
// consumes. repo is the full "owner/name" form.
type Collaborator interface {
	AddLabel(ctx context.Context, repo string, issueNumber int, label string) error
	RemoveLabel(ctx context.Context, repo string, issueNumber int, label string) error
	CreateComment(ctx context.Context, repo string, issueNumber int, body string) (int64, error)
	UpdateComment(ctx context.Context, repo string, commentID int64, body string) error
	DeleteComment(ctx context.Context, repo string, commentID int64) error
}

// GitHub implements Collaborator against the GitHub issues API.
type GitHub struct {
	client *github.Client
	logger log.Logger
}

// NewGitHub authenticates with a personal access or installation token.
func NewGitHub(token string, logger log.Logger) *GitHub {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	return &GitHub{
		client: github.NewClient(oauth2.NewClient(context.Background(), source)),
		logger: logger,
	}
}

func (g *GitHub) AddLabel(ctx context.Context, repo string, issueNumber int, label string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, _, err = g.client.Issues.AddLabelsToIssue(ctx, owner, name, issueNumber, []string{label})

	return wrapError(err)
}

// RemoveLabel treats an already-absent label as removed.
func (g *GitHub) RemoveLabel(ctx context.Context, repo string, issueNumber int, label string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	resp, err := g.client.Issues.RemoveLabelForIssue(ctx, owner, name, issueNumber, label)
	if err != nil && resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	return wrapError(err)
}

func (g *GitHub) CreateComment(ctx context.Context, repo string, issueNumber int, body string) (int64, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return 0, err
	}

	comment, _, err := g.client.Issues.CreateComment(ctx, owner, name, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return 0, wrapError(err)
	}

	return comment.GetID(), nil
}

func (g *GitHub) UpdateComment(ctx context.Context, repo string, commentID int64, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, _, err = g.client.Issues.EditComment(ctx, owner, name, commentID, &github.IssueComment{
		Body: github.String(body),
	})

	return wrapError(err)
}

// DeleteComment treats an already-deleted comment as deleted.
func (g *GitHub) DeleteComment(ctx context.Context, repo string, commentID int64) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	resp, err := g.client.Issues.DeleteComment(ctx, owner, name, commentID)
	if err != nil && resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	return wrapError(err)
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf("malformed repository %q, want owner/name", repo)
	}

	return owner, name, nil
}

// wrapError converts the host's rate-limit rejections into retry-aware
// errors carrying the server-provided wait.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &retry.RateLimitError{RetryAfter: time.Until(rateErr.Rate.Reset.Time), Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var after time.Duration
		if abuseErr.RetryAfter != nil {
			after = *abuseErr.RetryAfter
		}

		return &retry.RateLimitError{RetryAfter: after, Err: err}
	}

	return err
}
