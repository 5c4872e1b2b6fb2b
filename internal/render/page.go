package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/isaiahnixon/newspaper/internal/pipeline"
)

const (
	FeedFile      = "feed.atom"
	ArchiveIndex  = "index.html"
	footerTimeFmt = "2006-01-02 15:04:05 MST"
	metaDateFmt   = "2006-01-02"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type pageView struct {
	Title             string
	GeneratedAt       string
	SourcesChecked    int
	PaywalledExcluded int
	ArchiveHref       string
	FeedHref          string
	Sections          []sectionView
}

type sectionView struct {
	Name    string
	Slug    string
	Summary string
	Items   []itemView
}

type itemView struct {
	Title   string
	Summary string
	Meta    string
	Link    string
}

// Links are the page-relative hrefs the edition page points at.
type Links struct {
	Archive string
	Feed    string
}

// WriteEdition renders the edition page.
func WriteEdition(w io.Writer, edition pipeline.Edition, links Links) error {
	view := pageView{
		Title:             edition.Title,
		GeneratedAt:       edition.GeneratedAt.UTC().Format(footerTimeFmt),
		SourcesChecked:    edition.SourcesChecked,
		PaywalledExcluded: edition.PaywalledExcluded,
		ArchiveHref:       links.Archive,
		FeedHref:          links.Feed,
		Sections:          make([]sectionView, 0, len(edition.Topics)),
	}
	if view.Title == "" {
		view.Title = "Daily Paper"
	}

	for _, section := range edition.Topics {
		sv := sectionView{
			Name:    section.Name,
			Slug:    Slugify(section.Name),
			Summary: section.Summary,
			Items:   make([]itemView, 0, len(section.Items)),
		}
		for _, item := range section.Items {
			sv.Items = append(sv.Items, itemView{
				Title:   item.Record.Title,
				Summary: item.Summary,
				Meta:    itemMeta(item.Record.SourceLabel, item.Record.Published),
				Link:    item.Record.Link,
			})
		}
		view.Sections = append(view.Sections, sv)
	}

	if err := templates.ExecuteTemplate(w, "edition.html.tmpl", view); err != nil {
		return fmt.Errorf("render edition page: %w", err)
	}
	return nil
}

func itemMeta(source string, published *time.Time) string {
	parts := make([]string, 0, 2)
	if source = strings.TrimSpace(source); source != "" {
		parts = append(parts, source)
	}
	if published != nil && !published.IsZero() {
		parts = append(parts, published.UTC().Format(metaDateFmt))
	}
	return strings.Join(parts, " · ")
}

// Slugify turns a topic name into an anchor id.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte('-')
	}
	return strings.Trim(b.String(), "-")
}
