package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isaiahnixon/newspaper/internal/pipeline"
)

var ErrEditionNotFound = errors.New("edition not found")

const (
	DefaultEditionPageSize = 20
	MaxEditionPageSize     = 100
)

// EditionSummary is one row of the edition listing.
type EditionSummary struct {
	EditionUUID       string    `json:"edition_uuid"`
	Title             string    `json:"title"`
	GeneratedAt       time.Time `json:"generated_at"`
	SourcesChecked    int       `json:"sources_checked"`
	PaywalledExcluded int       `json:"paywalled_excluded"`
	ItemCount         int       `json:"item_count"`
	TopicCount        int       `json:"topic_count"`
}

type EditionDetail struct {
	EditionSummary
	Topics []EditionTopicDetail `json:"topics"`
}

type EditionTopicDetail struct {
	Name             string              `json:"name"`
	Summary          string              `json:"summary"`
	SummaryGenerated bool                `json:"summary_generated"`
	Items            []EditionItemDetail `json:"items"`
}

type EditionItemDetail struct {
	Title            string     `json:"title"`
	CanonicalURL     string     `json:"canonical_url"`
	SourceLabel      string     `json:"source_label"`
	SourceGroup      string     `json:"source_group,omitempty"`
	Language         string     `json:"language,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	Summary          string     `json:"summary"`
	SummaryGenerated bool       `json:"summary_generated"`
}

// SaveEdition stores a generated edition with its sections and items in one
// transaction. Saving the same edition UUID twice fails on the unique key.
func (p *Pool) SaveEdition(ctx context.Context, edition pipeline.Edition) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	if _, err := uuid.Parse(edition.UUID); err != nil {
		return 0, fmt.Errorf("invalid edition uuid %q: %w", edition.UUID, err)
	}

	stats, err := json.Marshal(edition.Stats)
	if err != nil {
		return 0, fmt.Errorf("encode run stats: %w", err)
	}

	row := Edition{
		EditionUUID:       edition.UUID,
		Title:             edition.Title,
		GeneratedAt:       edition.GeneratedAt.UTC(),
		SourcesChecked:    edition.SourcesChecked,
		PaywalledExcluded: edition.PaywalledExcluded,
		ItemCount:         edition.ItemCount(),
		RunStats:          stats,
	}

	err = p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert edition: %w", err)
		}

		topics := make([]EditionTopic, 0, len(edition.Topics))
		items := make([]EditionItem, 0, edition.ItemCount())
		for ti, section := range edition.Topics {
			topics = append(topics, EditionTopic{
				EditionID:        row.EditionID,
				Position:         ti,
				Name:             section.Name,
				Summary:          section.Summary,
				SummaryGenerated: section.SummaryGenerated,
			})
			for ii, item := range section.Items {
				rec := item.Record
				var published *time.Time
				if at, ok := rec.PublishedAt(); ok {
					published = &at
				}
				items = append(items, EditionItem{
					EditionID:        row.EditionID,
					TopicPosition:    ti,
					ItemPosition:     ii,
					Topic:            section.Name,
					Title:            rec.Title,
					CanonicalURL:     rec.Link,
					SourceLabel:      rec.SourceLabel,
					SourceGroup:      rec.SourceGroup,
					Language:         rec.Language,
					PublishedAt:      published,
					Summary:          item.Summary,
					SummaryGenerated: item.Generated,
				})
			}
		}

		if len(topics) > 0 {
			if err := tx.Create(&topics).Error; err != nil {
				return fmt.Errorf("insert edition topics: %w", err)
			}
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(&items, 200).Error; err != nil {
				return fmt.Errorf("insert edition items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return row.EditionID, nil
}

// ListEditions returns editions newest first.
func (p *Pool) ListEditions(ctx context.Context, limit, offset int) ([]EditionSummary, error) {
	limit = normalizePageSize(limit)
	if offset < 0 {
		offset = 0
	}

	const listQuery = `
SELECT
	e.edition_uuid::text,
	e.title,
	e.generated_at,
	e.sources_checked,
	e.paywalled_excluded,
	e.item_count,
	(SELECT COUNT(*) FROM newspaper.edition_topics t WHERE t.edition_id = e.edition_id)::INT AS topic_count
FROM newspaper.editions e
ORDER BY e.generated_at DESC, e.edition_id DESC
LIMIT $1 OFFSET $2
`

	rows, err := p.Query(ctx, listQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query editions: %w", err)
	}
	defer rows.Close()

	out := make([]EditionSummary, 0, limit)
	for rows.Next() {
		var row EditionSummary
		if err := rows.Scan(
			&row.EditionUUID,
			&row.Title,
			&row.GeneratedAt,
			&row.SourcesChecked,
			&row.PaywalledExcluded,
			&row.ItemCount,
			&row.TopicCount,
		); err != nil {
			return nil, fmt.Errorf("scan edition row: %w", err)
		}
		row.GeneratedAt = row.GeneratedAt.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edition rows: %w", err)
	}
	return out, nil
}

// CountEditions returns how many editions are stored.
func (p *Pool) CountEditions(ctx context.Context) (int, error) {
	var total int
	if err := p.QueryRow(ctx, `SELECT COUNT(*)::INT FROM newspaper.editions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count editions: %w", err)
	}
	return total, nil
}

// GetEdition loads one edition with its sections in render order.
func (p *Pool) GetEdition(ctx context.Context, editionUUID string) (*EditionDetail, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	parsed, err := uuid.Parse(strings.TrimSpace(editionUUID))
	if err != nil {
		return nil, ErrEditionNotFound
	}

	var edition Edition
	err = p.gdb.WithContext(ctx).Where("edition_uuid = ?", parsed.String()).First(&edition).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEditionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load edition: %w", err)
	}

	var topics []EditionTopic
	if err := p.gdb.WithContext(ctx).
		Where("edition_id = ?", edition.EditionID).
		Order("position ASC").
		Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("load edition topics: %w", err)
	}

	var items []EditionItem
	if err := p.gdb.WithContext(ctx).
		Where("edition_id = ?", edition.EditionID).
		Order("topic_position ASC, item_position ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load edition items: %w", err)
	}

	return buildEditionDetail(edition, topics, items), nil
}

func buildEditionDetail(edition Edition, topics []EditionTopic, items []EditionItem) *EditionDetail {
	detail := &EditionDetail{
		EditionSummary: EditionSummary{
			EditionUUID:       edition.EditionUUID,
			Title:             edition.Title,
			GeneratedAt:       edition.GeneratedAt.UTC(),
			SourcesChecked:    edition.SourcesChecked,
			PaywalledExcluded: edition.PaywalledExcluded,
			ItemCount:         edition.ItemCount,
			TopicCount:        len(topics),
		},
		Topics: make([]EditionTopicDetail, 0, len(topics)),
	}

	byPosition := make(map[int]int, len(topics))
	for _, topic := range topics {
		byPosition[topic.Position] = len(detail.Topics)
		detail.Topics = append(detail.Topics, EditionTopicDetail{
			Name:             topic.Name,
			Summary:          topic.Summary,
			SummaryGenerated: topic.SummaryGenerated,
			Items:            make([]EditionItemDetail, 0),
		})
	}
	for _, item := range items {
		idx, ok := byPosition[item.TopicPosition]
		if !ok {
			continue
		}
		var published *time.Time
		if item.PublishedAt != nil {
			at := item.PublishedAt.UTC()
			published = &at
		}
		detail.Topics[idx].Items = append(detail.Topics[idx].Items, EditionItemDetail{
			Title:            item.Title,
			CanonicalURL:     item.CanonicalURL,
			SourceLabel:      item.SourceLabel,
			SourceGroup:      item.SourceGroup,
			Language:         item.Language,
			PublishedAt:      published,
			Summary:          item.Summary,
			SummaryGenerated: item.SummaryGenerated,
		})
	}
	return detail
}

func normalizePageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultEditionPageSize
	case limit > MaxEditionPageSize:
		return MaxEditionPageSize
	default:
		return limit
	}
}
