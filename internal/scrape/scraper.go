package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	userAgent   = "MemoBot/1.0 (personal notes assistant)"
	maxBodySize = 10 * 1024 * 1024
)

// Scraper fetches a link's main content so URL-only notes can carry a
// readable preview instead of a bare bookmark. robots.txt is honored and
// cached per domain.
type Scraper struct {
	httpClient *http.Client
	robots     *cache.Cache
}

// New creates a scraper.
func New() *Scraper {
	return &Scraper{
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		robots: cache.New(24*time.Hour, time.Hour),
	}
}

// Extract is the scraped summary of a page.
type Extract struct {
	Title   string
	Author  string
	Content string
}

// allowed checks robots.txt for the URL. Missing or malformed robots.txt
// allows by default.
func (s *Scraper) allowed(ctx context.Context, parsed *url.URL) bool {
	domain := parsed.Scheme + "://" + parsed.Host

	var data *robotstxt.RobotsData
	if cached, found := s.robots.Get(domain); found {
		data = cached.(*robotstxt.RobotsData)
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, domain+"/robots.txt", nil)
		if err != nil {
			return true
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return true
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return true
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
		if err != nil {
			return true
		}
		data, err = robotstxt.FromBytes(body)
		if err != nil {
			return true
		}
		s.robots.Set(domain, data, cache.DefaultExpiration)
	}

	return data.FindGroup(userAgent).Test(parsed.Path)
}

// Fetch downloads the page and extracts its main content. maxLength caps
// the returned content, 0 means unlimited.
func (s *Scraper) Fetch(ctx context.Context, rawURL string, maxLength int) (*Extract, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	if !s.allowed(ctx, parsed) {
		return nil, fmt.Errorf("robots.txt disallows fetching %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d fetching %s", resp.StatusCode, rawURL)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xml") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}
	if result == nil || result.ContentText == "" {
		return nil, fmt.Errorf("no content extracted from %s", rawURL)
	}

	content := result.ContentText
	if maxLength > 0 && len(content) > maxLength {
		content = content[:maxLength] + "…"
	}

	return &Extract{
		Title:   result.Metadata.Title,
		Author:  result.Metadata.Author,
		Content: content,
	}, nil
}
