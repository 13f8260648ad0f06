package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/aischolar/scholar/internal/instance"
)

// Web fetch bounds.
const (
	fetchTimeout = 30 * time.Second
	maxFetchSize = 8 * 1024 * 1024
	userAgent    = "scholar-ingest/1.0"
)

// IngestURL fetches a web page, extracts the readable article content
// and ingests it into the named instance.
func (s *Service) IngestURL(ctx context.Context, instanceName, pageURL string) (Result, error) {
	start := time.Now()
	if err := instance.ValidateName(instanceName); err != nil {
		return Result{}, err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{}, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	body, contentType, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	doc, err := extractWebDocument(parsed, body, contentType)
	if err != nil {
		return Result{}, err
	}

	metadata := map[string]string{
		"title":       doc.Title,
		"source_type": "url",
		"source":      pageURL,
		"ingested_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	added, err := s.storeChunks(ctx, instanceName, DocID(pageURL), doc.Text, metadata)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		DocumentsAdded: 1,
		ChunksAdded:    added,
		TotalBytes:     int64(len(body)),
		Duration:       time.Since(start),
	}
	s.logger.Info("url ingested",
		"instance", instanceName, "url", pageURL, "chunks", added)
	return result, nil
}

// fetch downloads the page with timeout and size bounds.
func (s *Service) fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}
	if len(body) > maxFetchSize {
		return nil, "", fmt.Errorf("page exceeds %d byte limit", maxFetchSize)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// extractWebDocument runs readability extraction on HTML responses and
// falls back to plain text handling otherwise.
func extractWebDocument(pageURL *url.URL, body []byte, contentType string) (Document, error) {
	if strings.Contains(contentType, "text/plain") {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Document{}, fmt.Errorf("empty page body")
		}
		return Document{
			Title:    pageURL.Host + pageURL.Path,
			Text:     text,
			Metadata: map[string]string{"format": "text"},
		}, nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err != nil {
		return Document{}, fmt.Errorf("extracting article from %s: %w", pageURL, err)
	}

	text := normalizeWhitespace(article.TextContent)
	if text == "" {
		// Pages without article structure (index pages, plain fragments)
		// defeat readability; fall back to stripping tags.
		text = normalizeWhitespace(htmlToText(body))
	}
	if text == "" {
		return Document{}, fmt.Errorf("no readable content at %s", pageURL)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageURL.Host + pageURL.Path
	}

	metadata := map[string]string{"format": "html"}
	if article.Byline != "" {
		metadata["author"] = article.Byline
	}
	if article.SiteName != "" {
		metadata["site_name"] = article.SiteName
	}
	return Document{Title: title, Text: text, Metadata: metadata}, nil
}

// htmlToText extracts visible text from an HTML document, skipping
// script and style elements.
func htmlToText(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}
