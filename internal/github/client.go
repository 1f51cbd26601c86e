package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jmaddaus/issueboard/internal/model"
)

const (
	DefaultBaseURL = "https://api.github.com"
	userAgent      = "issueboard/1.0"
	acceptHeader   = "application/vnd.github+json"

	// etagCacheSize bounds the number of response pages kept for
	// conditional requests.
	etagCacheSize = 256
)

// RateLimit holds the current rate limit status from GitHub API.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}

// Client defines the GitHub REST calls the board needs.
type Client interface {
	ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, error)
	GetStarCount(ctx context.Context, owner, repo string) (int, error)
	GetRateLimit() RateLimit
}

// cachedPage is a previously fetched response body, replayed on 304.
type cachedPage struct {
	etag string
	body []byte
	next string
}

// clientImpl is the concrete implementation of Client.
type clientImpl struct {
	token      string
	httpClient *http.Client
	baseURL    string
	pages      *lru.Cache[string, cachedPage]

	mu        sync.RWMutex
	rateLimit RateLimit
}

// NewClientWithBaseURL creates a GitHub API client against baseURL
// (api.github.com, GitHub Enterprise, or an httptest server). An empty
// token makes unauthenticated requests, which is enough for public
// repositories.
func NewClientWithBaseURL(token, baseURL string, httpClient *http.Client) Client {
	return newClientWithBaseURL(token, httpClient, baseURL)
}

func newClientWithBaseURL(token string, httpClient *http.Client, baseURL string) *clientImpl {
	pages, err := lru.New[string, cachedPage](etagCacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &clientImpl{
		token:      token,
		httpClient: httpClient,
		baseURL:    baseURL,
		pages:      pages,
	}
}

func (c *clientImpl) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (c *clientImpl) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.updateRateLimit(resp)
	return resp, nil
}

func (c *clientImpl) updateRateLimit(resp *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			c.rateLimit.Remaining = remaining
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.rateLimit.Reset = time.Unix(ts, 0)
		}
	}
}

// GetRateLimit returns the most recently observed rate limit status.
func (c *clientImpl) GetRateLimit() RateLimit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateLimit
}

// linkNextRe matches Link header entries with rel="next".
var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// parseLinkNext extracts the "next" URL from a Link header value.
func parseLinkNext(linkHeader string) string {
	matches := linkNextRe.FindStringSubmatch(linkHeader)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// get fetches url, sending If-None-Match when a cached copy exists. A 304
// replays the cached body. It returns the body and the next page URL.
func (c *clientImpl) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, "", err
	}
	cached, haveCached := c.pages.Get(url)
	if haveCached && cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && haveCached {
		return cached.body, cached.next, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	next := parseLinkNext(resp.Header.Get("Link"))
	if etag := resp.Header.Get("ETag"); etag != "" {
		c.pages.Add(url, cachedPage{etag: etag, body: body, next: next})
	}
	return body, next, nil
}

// ListIssues fetches every issue of a repository, open and closed,
// following pagination.
func (c *clientImpl) ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues?per_page=100&state=all", c.baseURL, owner, repo)

	var all []model.Issue
	// Offset pagination can repeat an issue when issues change mid-listing.
	seen := make(map[int64]struct{})
	for url != "" {
		body, next, err := c.get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}

		var page []*GitHubIssue
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list issues: decode response: %w", err)
		}
		for _, gi := range page {
			if _, dup := seen[gi.ID]; dup {
				continue
			}
			seen[gi.ID] = struct{}{}
			all = append(all, gi.ToModel())
		}
		url = next
	}
	if all == nil {
		all = []model.Issue{}
	}
	return all, nil
}

// GetStarCount returns the repository's stargazer count.
func (c *clientImpl) GetStarCount(ctx context.Context, owner, repo string) (int, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)

	body, _, err := c.get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("get repository: %w", err)
	}
	var r GitHubRepo
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, fmt.Errorf("get repository: decode response: %w", err)
	}
	return r.StargazersCount, nil
}
