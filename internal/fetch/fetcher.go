// Package fetch implements the document-fetch collaborator: HTTP retrieval
// plus main-content extraction, with an optional shared cache in front.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// Cache is the optional lookaside for fetched documents. A nil Cache
// disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, val string)
}

type Fetcher struct {
	log       *logger.Logger
	client    *http.Client
	cache     Cache
	maxBytes  int64
	userAgent string
}

func New(log *logger.Logger, cache Cache) *Fetcher {
	return &Fetcher{
		log:       log.With("component", "DocumentFetcher"),
		client:    &http.Client{Timeout: envutil.Dur("FETCH_HTTP_TIMEOUT", 20*time.Second)},
		cache:     cache,
		maxBytes:  int64(envutil.Int("FETCH_MAX_BYTES", 5<<20)),
		userAgent: envutil.Str("FETCH_USER_AGENT",
			"studypath-bot/1.0 (+https://github.com/yungbote/studypath-backend)"),
	}
}

type cachedDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Load fetches the URL and extracts its title and main text content.
func (f *Fetcher) Load(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", "", fmt.Errorf("invalid url %q", rawURL)
	}

	cacheKey := "doc:" + rawURL
	if f.cache != nil {
		if raw, ok := f.cache.Get(ctx, cacheKey); ok {
			var doc cachedDoc
			if json.Unmarshal([]byte(raw), &doc) == nil && doc.Text != "" {
				f.log.Debug("cache hit", "url", rawURL)
				return doc.Title, doc.Text, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !supportedContentType(contentType) {
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}

	if strings.HasPrefix(contentType, "text/plain") {
		return titleFromURL(parsed), string(body), nil
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsed,
	})
	if err != nil {
		return "", "", fmt.Errorf("extract content: %w", err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return "", "", fmt.Errorf("no content extracted from %s", rawURL)
	}

	title := strings.TrimSpace(result.Metadata.Title)
	if title == "" {
		title = titleFromURL(parsed)
	}
	text := result.ContentText

	if f.cache != nil {
		if raw, err := json.Marshal(cachedDoc{Title: title, Text: text}); err == nil {
			f.cache.Set(ctx, cacheKey, string(raw))
		}
	}
	return title, text, nil
}

func supportedContentType(ct string) bool {
	ct = strings.ToLower(ct)
	for _, ok := range []string{"text/html", "application/xhtml+xml", "text/plain", "application/xml", "text/xml"} {
		if strings.HasPrefix(ct, ok) {
			return true
		}
	}
	return false
}

func titleFromURL(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return u.Host
	}
	return last
}
