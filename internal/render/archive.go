package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ArchiveTimestampFormat names archived pages, e.g. 2024-01-01_080000.html.
const ArchiveTimestampFormat = "2006-01-02_150405"

const archiveLabelFmt = "2006-01-02 15:04:05"

// Layout locates the published files.
type Layout struct {
	OutputDir  string
	OutputFile string
	ArchiveDir string
}

func (l Layout) OutputPath() string {
	return filepath.Join(l.OutputDir, l.OutputFile)
}

func (l Layout) FeedPath() string {
	return filepath.Join(l.OutputDir, FeedFile)
}

func (l Layout) ArchiveIndexPath() string {
	return filepath.Join(l.ArchiveDir, ArchiveIndex)
}

// PageLinks are the hrefs used by the latest edition page.
func (l Layout) PageLinks() Links {
	return Links{
		Archive: l.relHref(l.OutputDir, l.ArchiveIndexPath()),
		Feed:    FeedFile,
	}
}

// archivedLinks are the same links as seen from inside the archive.
func (l Layout) archivedLinks() Links {
	return Links{
		Archive: ArchiveIndex,
		Feed:    l.relHref(l.ArchiveDir, l.FeedPath()),
	}
}

func (l Layout) relHref(fromDir, target string) string {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

// ArchiveEntry is one archived edition page.
type ArchiveEntry struct {
	Name      string
	Label     string
	Timestamp time.Time
	Dated     bool
}

// ArchiveExisting moves the current edition page into the archive, named by
// now, and repoints its archive and feed links. It returns "" when there is
// no page to archive.
func ArchiveExisting(layout Layout, now time.Time) (string, error) {
	current := layout.OutputPath()
	html, err := os.ReadFile(current)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read current edition: %w", err)
	}

	if err := os.MkdirAll(layout.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	destination := uniquePath(filepath.Join(layout.ArchiveDir, now.Format(ArchiveTimestampFormat)))

	rewritten := rewriteLinks(html, layout.PageLinks(), layout.archivedLinks())
	if err := writeFileAtomic(destination, rewritten); err != nil {
		return "", fmt.Errorf("write archived edition: %w", err)
	}
	if err := os.Remove(current); err != nil {
		return "", fmt.Errorf("remove archived edition: %w", err)
	}
	return destination, nil
}

func uniquePath(stem string) string {
	candidate := stem + ".html"
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d.html", stem, i)
	}
}

func rewriteLinks(html []byte, from, to Links) []byte {
	out := bytes.ReplaceAll(html, []byte(`href="`+from.Archive+`"`), []byte(`href="`+to.Archive+`"`))
	out = bytes.ReplaceAll(out, []byte(`href="archive/"`), []byte(`href="`+to.Archive+`"`))
	out = bytes.ReplaceAll(out, []byte(`href="`+from.Feed+`"`), []byte(`href="`+to.Feed+`"`))
	return out
}

// ListArchive returns archived pages, most recent first. Pages whose names
// are not timestamps sort last by name.
func ListArchive(archiveDir string) ([]ArchiveEntry, error) {
	dirEntries, err := os.ReadDir(archiveDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive dir: %w", err)
	}

	entries := make([]ArchiveEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || name == ArchiveIndex || !strings.HasSuffix(name, ".html") {
			continue
		}
		stem := strings.TrimSuffix(name, ".html")
		entry := ArchiveEntry{Name: name, Label: strings.ReplaceAll(stem, "_", " ")}
		if ts, err := time.Parse(ArchiveTimestampFormat, stem); err == nil {
			entry.Timestamp = ts
			entry.Dated = true
			entry.Label = ts.Format(archiveLabelFmt)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Dated != b.Dated {
			return a.Dated
		}
		if a.Dated && !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Name > b.Name
	})
	return entries, nil
}

type archiveView struct {
	Title      string
	Entries    []ArchiveEntry
	LatestHref string
}

// WriteArchiveIndex regenerates the archive index page.
func WriteArchiveIndex(layout Layout, title string) (string, error) {
	entries, err := ListArchive(layout.ArchiveDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(layout.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	var buf bytes.Buffer
	view := archiveView{
		Title:      title,
		Entries:    entries,
		LatestHref: layout.relHref(layout.ArchiveDir, layout.OutputPath()),
	}
	if err := templates.ExecuteTemplate(&buf, "archive.html.tmpl", view); err != nil {
		return "", fmt.Errorf("render archive index: %w", err)
	}

	path := layout.ArchiveIndexPath()
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write archive index: %w", err)
	}
	return path, nil
}

// writeFileAtomic writes through a temp file in the same directory so a
// reader never sees a partial page.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
