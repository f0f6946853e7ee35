// Package source fetches the page behind a finding and extracts its
// readable text.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 5 << 20
	userAgent      = "dossier-console/1.0 (source preview)"
)

// Article is the readable part of a source page
type Article struct {
	URL      string
	Title    string
	Byline   string
	SiteName string
	Text     string
}

// Excerpt returns at most n runes of the text.
func (a Article) Excerpt(n int) string {
	r := []rune(a.Text)
	if len(r) <= n {
		return a.Text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

// Fetcher retrieves source pages over HTTP
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. A zero timeout means 15s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads rawURL and extracts the article in it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Article, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Article{}, errs.Validation("source_url", fmt.Sprintf("not a web address: %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Article{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Article{}, errs.Network("fetch source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Article{}, errs.Backend("fetch source", resp.StatusCode, "")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Article{}, errs.Network("read source", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return Article{}, fmt.Errorf("failed to extract article from %s: %w", parsed.Host, err)
	}

	return Article{
		URL:      parsed.String(),
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
		Text:     strings.TrimSpace(article.TextContent),
	}, nil
}
