package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultFetchTimeout  = 15 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrPaywalled is returned when the article sits behind a subscription wall.
var ErrPaywalled = errors.New("article is paywalled")

var paywallStatuses = map[int]bool{
	http.StatusUnauthorized:               true,
	http.StatusPaymentRequired:            true,
	http.StatusForbidden:                  true,
	http.StatusUnavailableForLegalReasons: true,
}

var paywallMarkers = []string{
	"subscribe",
	"subscription",
	"sign in to continue",
	"already a subscriber",
	"metered",
	"paywall",
	"register to continue",
}

// FetchOptions controls HTTP behavior for full-text extraction.
type FetchOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
	// MaxChars clips the extracted text. Zero keeps everything.
	MaxChars int
}

// Paywalled reports whether a response looks like a subscription wall.
func Paywalled(status int, html string) bool {
	if paywallStatuses[status] {
		return true
	}
	lowered := strings.ToLower(html)
	for _, marker := range paywallMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// FetchText retrieves an article page and extracts its readable text.
// Paywalled pages return ErrPaywalled. An empty string with a nil error
// means the page had no extractable paragraphs.
func FetchText(ctx context.Context, pageURL string, title string, opts FetchOptions) (string, error) {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return "", fmt.Errorf("page URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if paywallStatuses[resp.StatusCode] {
		return "", ErrPaywalled
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if Paywalled(resp.StatusCode, string(body)) {
		return "", ErrPaywalled
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return clip(CleanText(string(body)), opts.MaxChars), nil
	}

	parsedURL, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	text := readableText(body, parsedURL)
	if text == "" {
		text, err = paragraphText(body)
		if err != nil {
			return "", err
		}
	}
	return clip(text, opts.MaxChars), nil
}

// readableText runs readability and falls back to the excerpt. Parse failures
// yield "" so the paragraph extractor gets a chance.
func readableText(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return ""
	}
	if text := CleanText(rendered.String()); text != "" {
		return text
	}
	return CleanText(article.Excerpt())
}

// paragraphText joins the <p> text of the first article, main or body
// element with scripts and styles removed.
func paragraphText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var container *goquery.Selection
	for _, selector := range []string{"article", "main", "body"} {
		if found := doc.Find(selector).First(); found.Length() > 0 {
			container = found
			break
		}
	}
	if container == nil {
		return "", nil
	}

	paragraphs := make([]string, 0, 16)
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.Join(strings.Fields(p.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n"), nil
}

// HTMLToText strips markup from a feed description or content snippet.
func HTMLToText(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsAny(trimmed, "<&") {
		return strings.Join(strings.Fields(trimmed), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return strings.Join(strings.Fields(trimmed), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func clip(text string, maxChars int) string {
	clipped, _ := TruncateText(text, maxChars)
	return clipped
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}
	return strings.Join(paragraphs, "\n\n")
}

// TruncateText clips text to maxChars runes and appends a single ellipsis rune when truncated.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}
	return clipped + "…", true
}
