// Package github implements contract.SourceClient against the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
)

// Request defaults.
const (
	apiVersion       = "2022-11-28"
	userAgent        = "reposcout"
	jsonAccept       = "application/vnd.github+json"
	rawAccept        = "application/vnd.github.raw+json"
	maxBodySize      = 32 << 20
	reposPerPage     = 100
	maxRepoPages     = 10
	defaultRetryWait = 500 * time.Millisecond
	maxRetryWait     = 8 * time.Second
)

// lastPagePattern extracts the last page number from a Link header.
var lastPagePattern = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// Client is a GitHub REST client with per-request timeouts and bounded retries.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	fetchTimeout time.Duration
	maxRetries   int
	retryWait    time.Duration
	logger       *zap.Logger
}

var _ contract.SourceClient = &Client{} // Compile-time check

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryWait sets the initial backoff interval.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// NewClient builds a client from the validated configuration.
func NewClient(cfg *contract.Config, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		token:        cfg.GitHubToken,
		http:         &http.Client{},
		fetchTimeout: cfg.FetchTimeout,
		maxRetries:   cfg.MaxRetries,
		retryWait:    defaultRetryWait,
		logger:       log.Named("github"),
	}
	if c.baseURL == "" {
		c.baseURL = contract.DefaultAPIURL
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = contract.DefaultFetchTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is a successful HTTP exchange.
type response struct {
	body   []byte
	header http.Header
}

// get performs a GET with retries. 5xx responses and timeouts are retried;
// 404/409 map to ErrNotFound and 403/429 to ErrRateLimited without retrying.
func (c *Client) get(ctx context.Context, path string, query url.Values, accept string) (*response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxInterval = maxRetryWait
	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(max(c.maxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying GitHub request", zap.String("url", u), zap.Duration("wait", wait), zap.Error(err))
	}

	resp, err := backoff.RetryNotifyWithData(func() (*response, error) {
		return c.attempt(ctx, u, accept)
	}, b, notify)
	if err != nil {
		return nil, contract.NormalizeFetchError(err)
	}
	return resp, nil
}

// attempt performs one request bounded by the fetch timeout.
func (c *Client) attempt(ctx context.Context, u, accept string) (*response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Caller cancellation is final; our own per-attempt deadline is retryable
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}
		return nil, contract.NormalizeFetchError(fmt.Errorf("GET %s: %w", u, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}
		return nil, contract.NormalizeFetchError(fmt.Errorf("failed to read response from %s: %w", u, err))
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return &response{body: body, header: resp.Header}, nil
	case code == http.StatusNotFound, code == http.StatusConflict:
		return nil, backoff.Permanent(fmt.Errorf("%w: GET %s (status %d)", contract.ErrNotFound, u, code))
	case code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return nil, backoff.Permanent(fmt.Errorf("%w: GET %s (status %d%s)", contract.ErrRateLimited, u, code, rateLimitReset(resp.Header)))
	case code >= 500:
		return nil, fmt.Errorf("server error: GET %s (status %d)", u, code)
	default:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d from GET %s: %s", code, u, contract.TruncateText(string(body), 200)))
	}
}

// rateLimitReset renders the reset hint GitHub sends with throttled responses.
func rateLimitReset(h http.Header) string {
	if secs := h.Get("Retry-After"); secs != "" {
		return ", retry after " + secs + "s"
	}
	if epoch, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		return ", resets at " + time.Unix(epoch, 0).UTC().Format(time.RFC3339)
	}
	return ""
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	resp, err := c.get(ctx, path, query, jsonAccept)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return resp.header, nil
}

// repoPath builds /repos/{owner}/{repo}{suffix} with escaped segments.
func repoPath(owner, repo, suffix string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + suffix
}

// escapePath escapes each segment of a file path.
func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// repoResponse is the subset of the repository object we read.
type repoResponse struct {
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	Topics        []string  `json:"topics"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	OpenIssues    int       `json:"open_issues_count"`
	Size          int64     `json:"size"`
	Archived      bool      `json:"archived"`
	Fork          bool      `json:"fork"`
	PushedAt      time.Time `json:"pushed_at"`
}

// toMetadata converts the API object to the domain type.
func (r repoResponse) toMetadata() schema.RepositoryMetadata {
	return schema.RepositoryMetadata{
		Name:          r.Name,
		FullName:      r.FullName,
		Description:   r.Description,
		HTMLURL:       r.HTMLURL,
		DefaultBranch: r.DefaultBranch,
		Language:      r.Language,
		Topics:        r.Topics,
		Stars:         r.Stars,
		Forks:         r.Forks,
		OpenIssues:    r.OpenIssues,
		SizeKB:        r.Size,
		Archived:      r.Archived,
		IsFork:        r.Fork,
		PushedAt:      r.PushedAt.UTC(),
	}
}

// GetRepositoryMetadata returns stars, forks, flags and push time for one repository.
func (c *Client) GetRepositoryMetadata(ctx context.Context, owner, repo string) (*schema.RepositoryMetadata, error) {
	var r repoResponse
	if _, err := c.getJSON(ctx, repoPath(owner, repo, ""), nil, &r); err != nil {
		return nil, err
	}
	meta := r.toMetadata()
	return &meta, nil
}

// ListUserRepositories returns the metadata of every repository owned by owner.
func (c *Client) ListUserRepositories(ctx context.Context, owner string) ([]schema.RepositoryMetadata, error) {
	var repos []schema.RepositoryMetadata
	for page := 1; page <= maxRepoPages; page++ {
		query := url.Values{
			"type":     {"owner"},
			"sort":     {"pushed"},
			"per_page": {strconv.Itoa(reposPerPage)},
			"page":     {strconv.Itoa(page)},
		}
		var batch []repoResponse
		if _, err := c.getJSON(ctx, "/users/"+url.PathEscape(owner)+"/repos", query, &batch); err != nil {
			return nil, err
		}
		for _, r := range batch {
			repos = append(repos, r.toMetadata())
		}
		if len(batch) < reposPerPage {
			return repos, nil
		}
	}
	c.logger.Warn("Repository listing truncated", zap.String("owner", owner), zap.Int("repos", len(repos)))
	return repos, nil
}

// treeResponse is the recursive git tree listing.
type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size int64  `json:"size"`
		SHA  string `json:"sha"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// GetTree returns the recursive file tree at the default branch.
func (c *Client) GetTree(ctx context.Context, owner, repo string) ([]schema.TreeEntry, error) {
	var t treeResponse
	if _, err := c.getJSON(ctx, repoPath(owner, repo, "/git/trees/HEAD"), url.Values{"recursive": {"1"}}, &t); err != nil {
		return nil, err
	}
	if t.Truncated {
		c.logger.Warn("Tree listing truncated by GitHub", zap.String("owner", owner), zap.String("repo", repo), zap.Int("entries", len(t.Tree)))
	}
	entries := make([]schema.TreeEntry, 0, len(t.Tree))
	for _, e := range t.Tree {
		entries = append(entries, schema.TreeEntry{Path: e.Path, Type: e.Type, Size: e.Size, SHA: e.SHA})
	}
	return entries, nil
}

// GetFileContent returns the raw bytes of a file.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error) {
	resp, err := c.get(ctx, repoPath(owner, repo, "/contents/"+escapePath(path)), nil, rawAccept)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// GetReadme returns the raw bytes of the preferred readme.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) ([]byte, error) {
	resp, err := c.get(ctx, repoPath(owner, repo, "/readme"), nil, rawAccept)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// GetLanguageBytes returns bytes of code per language.
func (c *Client) GetLanguageBytes(ctx context.Context, owner, repo string) (map[string]int64, error) {
	langs := map[string]int64{}
	if _, err := c.getJSON(ctx, repoPath(owner, repo, "/languages"), nil, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// count asks for one item per page and reads the total from the Link header.
func (c *Client) count(ctx context.Context, path string, query url.Values) (int, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", "1")
	var items []json.RawMessage
	header, err := c.getJSON(ctx, path, query, &items)
	if err != nil {
		return 0, err
	}
	if m := lastPagePattern.FindStringSubmatch(header.Get("Link")); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, nil
		}
	}
	return len(items), nil
}

// CountReleases returns the number of published releases.
func (c *Client) CountReleases(ctx context.Context, owner, repo string) (int, error) {
	return c.count(ctx, repoPath(owner, repo, "/releases"), nil)
}

// CountOpenPulls returns the number of open pull requests.
func (c *Client) CountOpenPulls(ctx context.Context, owner, repo string) (int, error) {
	return c.count(ctx, repoPath(owner, repo, "/pulls"), url.Values{"state": {"open"}})
}

// commitResponse is one item of the commit listing.
type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// ListRecentCommits returns up to limit commits on the default branch, newest first.
// An empty repository yields no commits rather than an error.
func (c *Client) ListRecentCommits(ctx context.Context, owner, repo string, limit int) ([]schema.CommitInfo, error) {
	if limit <= 0 {
		limit = contract.DefaultCommitLimit
	}
	var items []commitResponse
	_, err := c.getJSON(ctx, repoPath(owner, repo, "/commits"), url.Values{"per_page": {strconv.Itoa(min(limit, 100))}}, &items)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return []schema.CommitInfo{}, nil
		}
		return nil, err
	}
	commits := make([]schema.CommitInfo, 0, len(items))
	for _, it := range items {
		msg, _, _ := strings.Cut(it.Commit.Message, "\n")
		commits = append(commits, schema.CommitInfo{
			SHA:     it.SHA,
			Message: msg,
			Author:  it.Commit.Author.Name,
			Date:    it.Commit.Author.Date.UTC(),
		})
	}
	return commits, nil
}
