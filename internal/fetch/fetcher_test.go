package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

type mapCache struct {
	mu   sync.Mutex
	m    map[string]string
	sets int
}

func newMapCache() *mapCache { return &mapCache{m: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, val string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = val
	c.sets++
}

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Understanding Goroutines</title></head>
<body>
<article>
<h1>Understanding Goroutines</h1>
<p>Goroutines are functions that run concurrently with other functions.
They are multiplexed onto a small number of OS threads by the Go runtime,
which makes them far cheaper than operating system threads.</p>
<p>Channels provide a way for goroutines to communicate with each other
and synchronize their execution without explicit locks.</p>
</article>
</body>
</html>`

func TestFetcherExtractsArticle(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	cache := newMapCache()
	f := New(logger.NewNop(), cache)

	title, text, err := f.Load(context.Background(), srv.URL+"/goroutines")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if title != "Understanding Goroutines" {
		t.Fatalf("title wrong: %q", title)
	}
	if !strings.Contains(text, "multiplexed onto a small number of OS threads") {
		t.Fatalf("article body not extracted: %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Fatalf("markup leaked into extraction: %q", text)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	// Second load must be served from cache.
	if _, _, err := f.Load(context.Background(), srv.URL+"/goroutines"); err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one origin hit, got %d", hits)
	}
}

func TestFetcherPlainTextPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("raw notes about channels"))
	}))
	defer srv.Close()

	f := New(logger.NewNop(), nil)
	title, text, err := f.Load(context.Background(), srv.URL+"/notes.txt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if text != "raw notes about channels" {
		t.Fatalf("plain text must pass through, got %q", text)
	}
	if title != "notes.txt" {
		t.Fatalf("expected title from url path, got %q", title)
	}
}

func TestFetcherRejectsBadInputs(t *testing.T) {
	f := New(logger.NewNop(), nil)
	if _, _, err := f.Load(context.Background(), "ftp://example.com/x"); err == nil {
		t.Fatal("non-http scheme must be rejected")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x1f, 0x8b})
		}
	}))
	defer srv.Close()

	if _, _, err := f.Load(context.Background(), srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
	if _, _, err := f.Load(context.Background(), srv.URL+"/binary"); err == nil || !strings.Contains(err.Error(), "unsupported content type") {
		t.Fatalf("expected content-type rejection, got %v", err)
	}
}

func TestTitleFromURL(t *testing.T) {
	f := New(logger.NewNop(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	title, _, err := f.Load(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(title, "127.0.0.1") {
		t.Fatalf("expected host fallback title, got %q", title)
	}
}

func TestSupportedContentType(t *testing.T) {
	for ct, want := range map[string]bool{
		"text/html; charset=utf-8": true,
		"application/xhtml+xml":    true,
		"text/plain":               true,
		"application/pdf":          false,
		"image/png":                false,
		"":                         false,
	} {
		if got := supportedContentType(ct); got != want {
			t.Fatalf("supportedContentType(%q): want=%v got=%v", ct, want, got)
		}
	}
}
