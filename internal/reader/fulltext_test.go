package reader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCleanTextCollapsesWhitespaceAndPreservesParagraphs(t *testing.T) {
	t.Parallel()

	input := "  First   paragraph \n\n Second\tparagraph \r\n\r\nThird line "
	got := CleanText(input)
	want := "First paragraph\n\nSecond paragraph\n\nThird line"
	if got != want {
		t.Fatalf("CleanText mismatch\nwant: %q\ngot:  %q", want, got)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	got, truncated := TruncateText("abcdefghijklmnopqrstuvwxyz", 10)
	if !truncated {
		t.Fatalf("expected truncated=true")
	}
	if got != "abcdefghi…" {
		t.Fatalf("unexpected truncated text: %q", got)
	}

	full, wasTruncated := TruncateText("short", 10)
	if wasTruncated || full != "short" {
		t.Fatalf("unexpected short text: %q truncated=%v", full, wasTruncated)
	}
}

func TestPaywalled(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		html   string
		want   bool
	}{
		{name: "forbidden", status: http.StatusForbidden, want: true},
		{name: "legal", status: http.StatusUnavailableForLegalReasons, want: true},
		{name: "marker", status: http.StatusOK, html: "<div>Already a Subscriber? Log in</div>", want: true},
		{name: "open", status: http.StatusOK, html: "<p>Rain expected on Tuesday.</p>", want: false},
		{name: "server error", status: http.StatusBadGateway, want: false},
	}
	for _, tc := range cases {
		if got := Paywalled(tc.status, tc.html); got != tc.want {
			t.Fatalf("%s: Paywalled=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFetchTextDetectsPaywall(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/locked":
			w.WriteHeader(http.StatusPaymentRequired)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><p>Sign in to continue reading.</p></body></html>"))
		}
	}))
	defer server.Close()

	for _, path := range []string{"/locked", "/marker"} {
		_, err := FetchText(context.Background(), server.URL+path, "", FetchOptions{HTTPClient: server.Client()})
		if !errors.Is(err, ErrPaywalled) {
			t.Fatalf("%s: expected ErrPaywalled, got %v", path, err)
		}
	}
}

func TestFetchTextPlainTextIsClipped(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Flood   waters receded\nacross the valley overnight."))
	}))
	defer server.Close()

	got, err := FetchText(context.Background(), server.URL, "", FetchOptions{HTTPClient: server.Client(), MaxChars: 20})
	if err != nil {
		t.Fatalf("FetchText returned error: %v", err)
	}
	if got != "Flood waters recede…" {
		t.Fatalf("unexpected clipped text %q", got)
	}
}

func TestParagraphTextPrefersArticle(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<nav><p>Menu</p></nav>
<article><p>First  paragraph.</p><script>var x;</script><p>Second paragraph.</p></article>
</body></html>`
	got, err := paragraphText([]byte(html))
	if err != nil {
		t.Fatalf("paragraphText returned error: %v", err)
	}
	if got != "First paragraph.\n\nSecond paragraph." {
		t.Fatalf("unexpected paragraph text %q", got)
	}
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	got := HTMLToText(`<p>Markets <b>rally</b> &amp; bonds slip</p><style>p{}</style>`)
	if got != "Markets rally & bonds slip" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := HTMLToText("  plain   text "); got != "plain text" {
		t.Fatalf("unexpected plain text %q", got)
	}
}
