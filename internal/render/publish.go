package render

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/pipeline"
)

// Published lists the files written by Publish.
type Published struct {
	Page         string `json:"page"`
	Feed         string `json:"feed"`
	ArchiveIndex string `json:"archive_index"`
	// Archived is the previous edition's new path, empty on a first run.
	Archived string `json:"archived,omitempty"`
}

// Publish archives the previous page under the new edition's timestamp,
// then writes the new page, its Atom feed and a fresh archive index.
func Publish(layout Layout, edition pipeline.Edition, siteURL string, logger zerolog.Logger) (Published, error) {
	var out Published

	archived, err := ArchiveExisting(layout, edition.GeneratedAt.UTC())
	if err != nil {
		return out, err
	}
	out.Archived = archived
	if archived != "" {
		logger.Info().Str("path", archived).Msg("archived previous edition")
	}

	var page bytes.Buffer
	if err := WriteEdition(&page, edition, layout.PageLinks()); err != nil {
		return out, err
	}
	if err := writeFileAtomic(layout.OutputPath(), page.Bytes()); err != nil {
		return out, fmt.Errorf("write edition page: %w", err)
	}
	out.Page = layout.OutputPath()

	atom, err := Atom(edition, siteURL)
	if err != nil {
		return out, err
	}
	if err := writeFileAtomic(layout.FeedPath(), []byte(atom)); err != nil {
		return out, fmt.Errorf("write atom feed: %w", err)
	}
	out.Feed = layout.FeedPath()

	index, err := WriteArchiveIndex(layout, edition.Title)
	if err != nil {
		return out, err
	}
	out.ArchiveIndex = index

	logger.Info().
		Str("page", out.Page).
		Str("feed", out.Feed).
		Str("archive_index", out.ArchiveIndex).
		Time("generated_at", edition.GeneratedAt).
		Msg("edition published")
	return out, nil
}
