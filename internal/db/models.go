package db

import (
	"encoding/json"
	"time"
)

// Edition maps newspaper.editions.
type Edition struct {
	EditionID         int64           `gorm:"column:edition_id;primaryKey;autoIncrement"`
	EditionUUID       string          `gorm:"column:edition_uuid;type:uuid;not null;unique"`
	Title             string          `gorm:"column:title;type:text;not null"`
	GeneratedAt       time.Time       `gorm:"column:generated_at;type:timestamptz;not null"`
	SourcesChecked    int             `gorm:"column:sources_checked;type:integer;not null;default:0"`
	PaywalledExcluded int             `gorm:"column:paywalled_excluded;type:integer;not null;default:0"`
	ItemCount         int             `gorm:"column:item_count;type:integer;not null;default:0"`
	RunStats          json.RawMessage `gorm:"column:run_stats;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Edition) TableName() string { return "newspaper.editions" }

// EditionTopic maps newspaper.edition_topics.
type EditionTopic struct {
	EditionTopicID   int64  `gorm:"column:edition_topic_id;primaryKey;autoIncrement"`
	EditionID        int64  `gorm:"column:edition_id;type:bigint;not null;uniqueIndex:edition_topics_position_key,priority:1"`
	Position         int    `gorm:"column:position;type:integer;not null;uniqueIndex:edition_topics_position_key,priority:2"`
	Name             string `gorm:"column:name;type:text;not null"`
	Summary          string `gorm:"column:summary;type:text;not null;default:''"`
	SummaryGenerated bool   `gorm:"column:summary_generated;type:boolean;not null;default:false"`
}

func (EditionTopic) TableName() string { return "newspaper.edition_topics" }

// EditionItem maps newspaper.edition_items.
type EditionItem struct {
	EditionItemID    int64      `gorm:"column:edition_item_id;primaryKey;autoIncrement"`
	EditionID        int64      `gorm:"column:edition_id;type:bigint;not null"`
	TopicPosition    int        `gorm:"column:topic_position;type:integer;not null"`
	ItemPosition     int        `gorm:"column:item_position;type:integer;not null"`
	Topic            string     `gorm:"column:topic;type:text;not null"`
	Title            string     `gorm:"column:title;type:text;not null"`
	CanonicalURL     string     `gorm:"column:canonical_url;type:text;not null"`
	SourceLabel      string     `gorm:"column:source_label;type:text;not null;default:''"`
	SourceGroup      string     `gorm:"column:source_group;type:text;not null;default:''"`
	Language         string     `gorm:"column:language;type:text;not null;default:''"`
	PublishedAt      *time.Time `gorm:"column:published_at;type:timestamptz"`
	Summary          string     `gorm:"column:summary;type:text;not null;default:''"`
	SummaryGenerated bool       `gorm:"column:summary_generated;type:boolean;not null;default:false"`
}

func (EditionItem) TableName() string { return "newspaper.edition_items" }

func autoMigrateModels() []any {
	return []any{
		&Edition{},
		&EditionTopic{},
		&EditionItem{},
	}
}
