package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Why Go is pleasant</title></head>
<body>
<article>
<h1>Why Go is pleasant</h1>
<p>Go compiles fast, deploys as a single binary and its concurrency model
maps well onto network services. This paragraph exists to give the content
extractor enough real prose to work with, because extraction heuristics
reject pages that look like boilerplate.</p>
<p>A second paragraph with more detail about tooling, testing and the
standard library keeps the extraction comfortably above the minimum
content threshold.</p>
</article>
</body>
</html>`

func TestFetchExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	extract, err := New().Fetch(context.Background(), srv.URL+"/post", 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if extract.Title != "Why Go is pleasant" {
		t.Errorf("title = %q", extract.Title)
	}
	if !strings.Contains(extract.Content, "single binary") {
		t.Errorf("content missing article text: %q", extract.Content)
	}
}

func TestFetchTruncatesContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	extract, err := New().Fetch(context.Background(), srv.URL+"/post", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(extract.Content) > 54 {
		t.Fatalf("content not truncated: %d bytes", len(extract.Content))
	}
	if !strings.HasSuffix(extract.Content, "…") {
		t.Fatalf("truncated content should end with an ellipsis: %q", extract.Content)
	}
}

func TestFetchHonorsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	s := New()
	ctx := context.Background()

	if _, err := s.Fetch(ctx, srv.URL+"/private/page", 0); err == nil {
		t.Fatal("expected a robots.txt rejection")
	}
	if _, err := s.Fetch(ctx, srv.URL+"/public", 0); err != nil {
		t.Fatalf("allowed path rejected: %v", err)
	}
}

func TestFetchRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte{0x50, 0x4b})
	}))
	defer srv.Close()

	if _, err := New().Fetch(context.Background(), srv.URL+"/file.zip", 0); err == nil {
		t.Fatal("expected an error for non-HTML content")
	}
}

func TestFetchRejectsBadURLs(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, raw := range []string{"ftp://example.com/x", "not a url", "file:///etc/passwd"} {
		if _, err := s.Fetch(ctx, raw, 0); err == nil {
			t.Errorf("expected an error for %q", raw)
		}
	}
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	if _, err := PDFText([]byte("definitely not a pdf")); err == nil {
		t.Fatal("expected an error")
	}
}
