// Package recordschema validates feed records supplied as JSON files, the
// offline input of the select command.
package recordschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/isaiahnixon/newspaper/internal/story"
)

//go:embed record.schema.json
var recordSchemaJSON string

type recordPayload struct {
	Topic       string  `json:"topic"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	SourceLabel string  `json:"source_label"`
	SourceGroup string  `json:"source_group"`
	Summary     string  `json:"summary"`
	FullText    string  `json:"full_text"`
	PublishedAt *string `json:"published_at"`
	Language    string  `json:"language"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateRecordPayload checks one JSON object against the record schema and
// returns it as a story.Record.
func ValidateRecordPayload(payload json.RawMessage) (story.Record, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return story.Record{}, fmt.Errorf("decode payload JSON: %w", err)
	}
	return validateValue(value)
}

// ValidateRecordFile accepts either a single record object or an array of
// records. The index of the first failing element is part of the error.
func ValidateRecordFile(payload []byte) ([]story.Record, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	list, ok := value.([]any)
	if !ok {
		rec, err := validateValue(value)
		if err != nil {
			return nil, err
		}
		return []story.Record{rec}, nil
	}

	out := make([]story.Record, 0, len(list))
	for i, element := range list {
		rec, err := validateValue(element)
		if err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func validateValue(value any) (story.Record, error) {
	schema, err := loadSchema()
	if err != nil {
		return story.Record{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return story.Record{}, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return story.Record{}, fmt.Errorf("normalize payload JSON: %w", err)
	}
	var payload recordPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return story.Record{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	return toRecord(payload)
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("record.schema.json", strings.NewReader(recordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("record.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func toRecord(payload recordPayload) (story.Record, error) {
	if strings.TrimSpace(payload.Topic) == "" {
		return story.Record{}, fmt.Errorf("topic must not be empty")
	}
	if strings.TrimSpace(payload.Title) == "" {
		return story.Record{}, fmt.Errorf("title must not be empty")
	}
	if err := validateLink(payload.Link); err != nil {
		return story.Record{}, err
	}

	rec := story.Record{
		Topic:       strings.TrimSpace(payload.Topic),
		Title:       strings.TrimSpace(payload.Title),
		Link:        strings.TrimSpace(payload.Link),
		SourceLabel: strings.TrimSpace(payload.SourceLabel),
		SourceGroup: strings.TrimSpace(payload.SourceGroup),
		Summary:     payload.Summary,
		FullText:    payload.FullText,
		Language:    payload.Language,
	}
	if payload.PublishedAt != nil {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(*payload.PublishedAt))
		if err != nil {
			return story.Record{}, fmt.Errorf("published_at must be RFC3339: %w", err)
		}
		at = at.UTC()
		rec.Published = &at
	}
	return rec, nil
}

func validateLink(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("link must not be empty")
	}
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return fmt.Errorf("link is not a valid URI: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("link must be an http(s) URL")
	}
	return nil
}
