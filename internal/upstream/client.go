// Package upstream retrieves release and repository-tree metadata from
// the hosting service API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase     = "https://api.github.com"
	DefaultMaxAttempts = 4
	DefaultRetryDelay  = 2 * time.Second
	requestTimeout     = 30 * time.Second
)

var (
	// ErrNotFound terminates retries immediately: the resource does
	// not exist and asking again will not change that.
	ErrNotFound = errors.New("upstream resource not found")
	// ErrUnavailable means retries were exhausted. Callers treat it as
	// "no data" and fall back to the previously persisted state.
	ErrUnavailable = errors.New("upstream unavailable")
)

// Client is a minimal hosting-service API client with bounded retries
// and client-side rate limiting.
type Client struct {
	httpClient  *http.Client
	apiBase     string
	token       string
	userAgent   string
	maxAttempts int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      *logrus.Entry
}

// Options configures the upstream client. Zero values fall back to the
// package defaults.
type Options struct {
	APIBase           string
	MaxAttempts       int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

func NewClient(opts Options) *Client {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "relmeta"
	}

	return &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		apiBase:     strings.TrimRight(opts.APIBase, "/"),
		token:       tokenFromEnv(),
		userAgent:   opts.UserAgent,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:      logrus.WithField("component", "upstream-client"),
	}
}

// LatestRelease returns the newest non-prerelease of the repository.
func (c *Client) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	var release Release
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, repo)
	if err := c.getJSON(ctx, url, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// LatestPrerelease scans the recent releases for the newest entry
// flagged as a prerelease. No prerelease among them maps to ErrNotFound.
func (c *Client) LatestPrerelease(ctx context.Context, repo string) (*Release, error) {
	var releases []Release
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=30", c.apiBase, repo)
	if err := c.getJSON(ctx, url, &releases); err != nil {
		return nil, err
	}

	for i := range releases {
		if releases[i].Prerelease {
			return &releases[i], nil
		}
	}
	return nil, fmt.Errorf("no prerelease in %s: %w", repo, ErrNotFound)
}

// Tree returns the flat file-path listing of one branch.
func (c *Client) Tree(ctx context.Context, repo, branch string) ([]string, error) {
	var tree treeResponse
	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", c.apiBase, repo, branch)
	if err := c.getJSON(ctx, url, &tree); err != nil {
		return nil, err
	}

	if tree.Truncated {
		c.logger.WithField("repo", repo).Warn("Tree listing truncated by the API")
	}

	paths := make([]string, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

// HeadVersion returns the normalized commit timestamp of the branch
// head, the comparison token persisted as the rule-tree version marker.
func (c *Client) HeadVersion(ctx context.Context, repo, branch string) (string, error) {
	var commit commitResponse
	url := fmt.Sprintf("%s/repos/%s/commits/%s", c.apiBase, repo, branch)
	if err := c.getJSON(ctx, url, &commit); err != nil {
		return "", err
	}

	ts, err := time.Parse(time.RFC3339, commit.Commit.Committer.Date)
	if err != nil {
		return "", fmt.Errorf("failed to parse commit date %q: %w", commit.Commit.Committer.Date, err)
	}
	return ts.UTC().Format("20060102150405"), nil
}

// getJSON performs one GET with the bounded retry policy: a fixed
// attempt budget, linearly increasing delay between attempts, immediate
// termination on the not-found class, retry on everything else.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * c.retryDelay
			c.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("Retrying upstream request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := c.getOnce(ctx, url, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	c.logger.WithField("url", url).Error("Upstream request attempts exhausted")
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) getOnce(ctx context.Context, url string, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return false, fmt.Errorf("%s: %w", url, ErrNotFound)
	default:
		return true, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return true, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

func tokenFromEnv() string {
	if tok := strings.TrimSpace(os.Getenv("RELMETA_GITHUB_TOKEN")); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
}
