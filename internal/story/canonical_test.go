package story

import "testing"

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "scheme host tracking slash fragment",
			in:   "http://Example.com/news/story/?utm_source=rss&id=7#top",
			want: "https://example.com/news/story?id=7",
		},
		{
			name: "default https port and deny list",
			in:   "https://example.com:443/a?fbclid=1&gclid=2&mc_cid=3&mc_eid=4&spm=5",
			want: "https://example.com/a",
		},
		{
			name: "empty path",
			in:   "https://example.com",
			want: "https://example.com/",
		},
		{
			name: "root path keeps slash",
			in:   "http://example.com:80/",
			want: "https://example.com/",
		},
		{
			name: "non default port kept",
			in:   "http://example.com:8080/a/",
			want: "https://example.com:8080/a",
		},
		{
			name: "remaining query order preserved",
			in:   "https://x.com/a?b=2&a=1&utm_medium=x",
			want: "https://x.com/a?b=2&a=1",
		},
		{
			name: "tracking keys are case insensitive",
			in:   "https://x.com/a?Source=feed&REF=home&page=2",
			want: "https://x.com/a?page=2",
		},
		{
			name: "missing scheme",
			in:   "example.com/path?ref=x",
			want: "https://example.com/path",
		},
		{
			name: "blank",
			in:   "   ",
			want: "",
		},
		{
			name: "malformed input is returned trimmed",
			in:   " http://[::1 ",
			want: "http://[::1",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Canonicalize(tc.in); got != tc.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalizeEquivalentURLs(t *testing.T) {
	t.Parallel()

	base := "https://news.example.org/world/summit-ends"
	variants := []string{
		"http://news.example.org/world/summit-ends",
		"https://news.example.org/world/summit-ends/",
		"https://news.example.org/world/summit-ends#comments",
		"https://news.example.org/world/summit-ends?utm_source=twitter&utm_campaign=share",
		"http://NEWS.example.org/world/summit-ends/?gclid=abc&fbclid=def#top",
	}

	want := Canonicalize(base)
	for _, variant := range variants {
		if got := Canonicalize(variant); got != want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", variant, got, want)
		}
	}
}

func TestHostname(t *testing.T) {
	t.Parallel()

	if got := Hostname("http://WWW.Example.com:8080/a"); got != "www.example.com" {
		t.Fatalf("unexpected hostname: %q", got)
	}
	if got := Hostname(""); got != "" {
		t.Fatalf("expected empty hostname, got %q", got)
	}
	if got := Hostname("/relative/only"); got != "" {
		t.Fatalf("expected empty hostname for relative link, got %q", got)
	}
}
