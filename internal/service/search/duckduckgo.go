// Package search runs web searches against the DuckDuckGo HTML endpoint.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
)

// NoResults is returned when the result page holds no snippets.
const NoResults = "No good DuckDuckGo Search Result was found"

const (
	maxResults = 5
	userAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Result is one organic search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Client queries DuckDuckGo and caches rendered answers per query.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
	log     *logrus.Entry
}

// NewClient returns a client for baseURL. ttl <= 0 disables caching.
func NewClient(baseURL string, ttl time.Duration, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("search base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	c := &Client{baseURL: baseURL, http: httpClient, log: logging.For("search")}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c, nil
}

// Run returns the top snippets for query joined by a space, or NoResults.
func (c *Client) Run(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if c.cache != nil {
		if cached, ok := c.cache.Get(query); ok {
			return cached.(string), nil
		}
	}

	results, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}

	answer := NoResults
	if snippets := collectSnippets(results); len(snippets) > 0 {
		answer = strings.Join(snippets, " ")
	}
	if c.cache != nil {
		c.cache.SetDefault(query, answer)
	}
	return answer, nil
}

// Search fetches and parses the result page for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search base url: %w", err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status=%d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []Result
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") || len(results) >= maxResults {
			return
		}
		link := s.Find(".result__a").First()
		result := Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     resolveLink(link.AttrOr("href", "")),
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
		}
		if result.Title == "" && result.Snippet == "" {
			return
		}
		results = append(results, result)
	})

	c.log.WithFields(logrus.Fields{"query": query, "results": len(results)}).Debug("search completed")
	return results, nil
}

func collectSnippets(results []Result) []string {
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Snippet != "" {
			snippets = append(snippets, r.Snippet)
		}
	}
	return snippets
}

// resolveLink unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveLink(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
