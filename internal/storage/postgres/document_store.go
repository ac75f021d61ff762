package postgres

import (
	"context"
	"fmt"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// DocumentStore writes extracted documents into Postgres. The table carries a
// unique (source, content_hash) constraint; Save reports whether the row was
// actually inserted.
type DocumentStore struct {
	pool  querier
	table string
}

// NewDocumentStore constructs a store over an existing pool.
func NewDocumentStore(pool querier, table string) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "documents")
	if err != nil {
		return nil, err
	}
	return &DocumentStore{pool: pool, table: table}, nil
}

// Save inserts the document, relying on ON CONFLICT DO NOTHING to suppress
// duplicate (source, content_hash) pairs raced in by concurrent cycles.
func (s *DocumentStore) Save(ctx context.Context, doc pipeline.Document) (bool, error) {
	if doc.ID == "" {
		return false, fmt.Errorf("document id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source,
	url,
	title,
	subtitle,
	body_text,
	author,
	published_at,
	category,
	tags,
	audio_url,
	content_hash,
	extraction_method,
	partial,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (source, content_hash) DO NOTHING`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		doc.ID,
		doc.Source,
		doc.URL,
		doc.Title,
		doc.Subtitle,
		doc.Body,
		doc.Author,
		doc.PublishedAt,
		doc.Category,
		doc.Tags,
		doc.AudioURL,
		doc.ContentHash,
		doc.ExtractionMethod,
		doc.Partial,
		doc.FetchedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRecent returns up to limit documents for a source, newest first.
func (s *DocumentStore) ListRecent(ctx context.Context, source string, limit int) ([]pipeline.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT
	id, source, url, title, subtitle, body_text, author, published_at,
	category, tags, audio_url, content_hash, extraction_method, partial, fetched_at
FROM %s
WHERE source = $1
ORDER BY fetched_at DESC
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, source, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []pipeline.Document
	for rows.Next() {
		var doc pipeline.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.Source,
			&doc.URL,
			&doc.Title,
			&doc.Subtitle,
			&doc.Body,
			&doc.Author,
			&doc.PublishedAt,
			&doc.Category,
			&doc.Tags,
			&doc.AudioURL,
			&doc.ContentHash,
			&doc.ExtractionMethod,
			&doc.Partial,
			&doc.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
