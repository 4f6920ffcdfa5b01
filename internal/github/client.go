package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plugreg/plugreg/internal/log"
)

const (
	DefaultAPIURL = "https://api.github.com"
	UserAgent     = "plugreg/1.0"

	// RetryTimes is the number of retries after the first failed attempt.
	RetryTimes   = 2
	retryBackoff = 1 * time.Second

	perPage = 100
)

type release struct {
	Assets []asset `json:"assets"`
}

type asset struct {
	DownloadCount int64 `json:"download_count"`
}

// ParseRepoURL extracts the owner and repository from a GitHub URL of the
// form https://github.com/<owner>/<repo>[/...]. The boolean result is false
// for anything else; an unsupported URL is an expected outcome, not an
// error.
func ParseRepoURL(raw string) (owner, repo string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "https" || u.Host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	backoff    time.Duration
}

type Option func(*Client)

// WithAPIURL overrides the API base URL. Used by tests and air-gapped
// mirrors.
func WithAPIURL(apiURL string) Option {
	return func(c *Client) {
		c.apiURL = strings.TrimSuffix(apiURL, "/")
	}
}

// WithToken attaches a bearer credential to every request. An empty token
// leaves requests unauthenticated, subject to GitHub's stricter anonymous
// rate limits.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL: DefaultAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: retryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoDownloadCount sums download_count over every asset of every published
// release of the repository, following pagination.
func (c *Client) RepoDownloadCount(ctx context.Context, owner, repo string) (int64, error) {
	var total int64
	for page := 1; ; page++ {
		pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d&page=%d", c.apiURL, owner, repo, perPage, page)
		data, err := c.fetchWithRetries(ctx, pageURL)
		if err != nil {
			return 0, err
		}

		var releases []release
		if err := json.Unmarshal(data, &releases); err != nil {
			return 0, fmt.Errorf("parsing releases for %s/%s: %w", owner, repo, err)
		}
		for _, rel := range releases {
			for _, a := range rel.Assets {
				total += a.DownloadCount
			}
		}
		if len(releases) < perPage {
			return total, nil
		}
	}
}

// FetchAsset downloads an arbitrary URL with the same retry policy as the
// API calls. Used by the archive scanner.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	return c.fetchWithRetries(ctx, assetURL)
}

func (c *Client) fetchWithRetries(ctx context.Context, fetchURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= RetryTimes; attempt++ {
		if attempt > 0 {
			log.Debug("Retrying fetch", "url", fetchURL, "attempt", attempt+1)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := c.fetch(ctx, fetchURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", RetryTimes+1, lastErr)
}

func (c *Client) fetch(ctx context.Context, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, fetchURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}
