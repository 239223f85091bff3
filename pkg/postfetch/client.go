package postfetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campaignhub-botgateway/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("postfetch",
	fx.Provide(NewClient),
)

var ErrEmptyResult = errors.New("postfetch: empty result")

type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Retweets int64 `json:"retweets"`
	Replies  int64 `json:"replies"`
	Quotes   int64 `json:"quotes"`
}

// Post is the scraped metadata of one external post.
type Post struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Content        string    `json:"content"`
	AuthorUsername string    `json:"author_username"`
	PostedAt       time.Time `json:"posted_at"`
	Metrics        Metrics   `json:"metrics"`
}

type Fetcher interface {
	FetchPost(ctx context.Context, url string) (*Post, error)
}

type FetcherFunc func(ctx context.Context, url string) (*Post, error)

func (f FetcherFunc) FetchPost(ctx context.Context, url string) (*Post, error) {
	return f(ctx, url)
}

type client struct {
	rc *resty.Client
}

func NewClient(cfg *config.Config) Fetcher {
	return NewHTTPClient(cfg.PostFetch.BaseURL, cfg.PostFetch.APIKey, cfg.PostFetch.Timeout)
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) Fetcher {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		rc.SetHeader("X-Api-Key", apiKey)
	}
	return &client{rc: rc}
}

type fetchResponse struct {
	Data  *Post  `json:"data"`
	Error string `json:"error,omitempty"`
}

// FetchPost makes a single attempt. Callers surface the failure to the user
// instead of retrying.
func (c *client) FetchPost(ctx context.Context, url string) (*Post, error) {
	var out fetchResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("url", url).
		SetResult(&out).
		SetError(&out).
		Get("/v1/posts")
	if err != nil {
		return nil, fmt.Errorf("fetch post: %w", err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return nil, fmt.Errorf("fetch post: status %d: %s", resp.StatusCode(), out.Error)
		}
		return nil, fmt.Errorf("fetch post: status %d", resp.StatusCode())
	}
	if out.Data == nil || out.Data.ID == "" {
		return nil, ErrEmptyResult
	}
	if out.Data.URL == "" {
		out.Data.URL = url
	}
	return out.Data, nil
}

var postIDPattern = regexp.MustCompile(`status/(\d+)`)

// ExtractPostID returns the numeric content id following "status/" in a post
// URL.
func ExtractPostID(url string) (string, bool) {
	m := postIDPattern.FindStringSubmatch(url)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}
