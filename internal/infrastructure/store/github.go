package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

const (
	defaultTimeout = 30 * time.Second
	labelColor     = "0075ca"

	// proactiveRate keeps the scan comfortably under the authenticated
	// 5000/hour API budget.
	proactiveRate = 1.2
)

// GitHubStore implements the issue-tracker-shaped record store on top of the
// GitHub Issues API.
type GitHubStore struct {
	gh      *gh.Client
	limiter *rate.Limiter
	owner   string
	repo    string
	logger  *slog.Logger
}

var _ ports.RecordStore = (*GitHubStore)(nil)

// New builds a store client authenticated with a static token.
func New(ctx context.Context, token, owner, repo string, logger *slog.Logger) *GitHubStore {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = defaultTimeout

	return NewWithClient(gh.NewClient(tc), owner, repo, logger)
}

// NewWithClient wires a prebuilt go-github client; used by tests.
func NewWithClient(client *gh.Client, owner, repo string, logger *slog.Logger) *GitHubStore {
	return &GitHubStore{
		gh:      client,
		limiter: rate.NewLimiter(rate.Limit(proactiveRate), 1),
		owner:   owner,
		repo:    repo,
		logger:  logger,
	}
}

// EnsureLabel creates the label if it does not exist yet.
func (s *GitHubStore) EnsureLabel(ctx context.Context, name string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, _, err := s.gh.Issues.GetLabel(ctx, s.owner, s.repo, name)
	if err == nil {
		return nil
	}
	if wrapped := s.wrapError(err, "get label"); !IsNotFound(wrapped) {
		return wrapped
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, _, err = s.gh.Issues.CreateLabel(ctx, s.owner, s.repo, &gh.Label{
		Name:  gh.Ptr(name),
		Color: gh.Ptr(labelColor),
	})
	if err != nil {
		return s.wrapError(err, "create label")
	}

	if s.logger != nil {
		s.logger.Info("created store label", "label", name)
	}
	return nil
}

// ListByLabel pages through every issue carrying the label, open and closed.
func (s *GitHubStore) ListByLabel(ctx context.Context, label string) ([]ports.IssueRecord, error) {
	opts := &gh.IssueListByRepoOptions{
		Labels:      []string{label},
		State:       "all",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var records []ports.IssueRecord
	for {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		issues, resp, err := s.gh.Issues.ListByRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, s.wrapError(err, "list issues")
		}

		for _, issue := range issues {
			records = append(records, toRecord(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return records, nil
}

// FindByTitle searches for an issue with exactly the given title.
func (s *GitHubStore) FindByTitle(ctx context.Context, title string) (ports.IssueRecord, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return ports.IssueRecord{}, false, err
	}

	query := fmt.Sprintf("repo:%s/%s in:title %q", s.owner, s.repo, title)
	result, _, err := s.gh.Search.Issues(ctx, query, &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: 30},
	})
	if err != nil {
		return ports.IssueRecord{}, false, s.wrapError(err, "search issues")
	}

	for _, issue := range result.Issues {
		if issue.GetTitle() == title {
			return toRecord(issue), true, nil
		}
	}
	return ports.IssueRecord{}, false, nil
}

// Create opens a new labeled issue and returns its store-assigned record.
func (s *GitHubStore) Create(ctx context.Context, title, body, label string) (ports.IssueRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return ports.IssueRecord{}, err
	}

	issue, _, err := s.gh.Issues.Create(ctx, s.owner, s.repo, &gh.IssueRequest{
		Title:  gh.Ptr(title),
		Body:   gh.Ptr(body),
		Labels: &[]string{label},
	})
	if err != nil {
		return ports.IssueRecord{}, s.wrapError(err, "create issue")
	}

	if s.logger != nil {
		s.logger.Info("created archive issue", "number", issue.GetNumber(), "title", title)
	}
	return toRecord(issue), nil
}

// EditBody overwrites the body of an existing issue.
func (s *GitHubStore) EditBody(ctx context.Context, number int, body string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, _, err := s.gh.Issues.Edit(ctx, s.owner, s.repo, number, &gh.IssueRequest{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return s.wrapError(err, "edit issue")
	}
	return nil
}

func toRecord(issue *gh.Issue) ports.IssueRecord {
	return ports.IssueRecord{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
	}
}

// wrapError converts go-github errors into the store's error types.
func (s *GitHubStore) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{ResetAt: rateLimitErr.Rate.Reset.Time}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Now()
		if abuseErr.RetryAfter != nil {
			reset = reset.Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{ResetAt: reset}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
