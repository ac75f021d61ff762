package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

func testDocument() pipeline.Document {
	published := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	return pipeline.Document{
		ID:               "doc-1",
		Source:           "dailyledger",
		URL:              "https://dailyledger.example/articles/1",
		Title:            "Rates hold steady",
		Body:             "The central bank held rates.",
		Author:           "A. Reporter",
		PublishedAt:      &published,
		Category:         "economy",
		Tags:             []string{"rates", "policy"},
		ContentHash:      "abc123",
		ExtractionMethod: "structured",
		FetchedAt:        time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDocumentStoreSaveInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock, "documents")
	require.NoError(t, err)

	doc := testDocument()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID, doc.Source, doc.URL, doc.Title, doc.Subtitle, doc.Body,
			doc.Author, doc.PublishedAt, doc.Category, doc.Tags, doc.AudioURL,
			doc.ContentHash, doc.ExtractionMethod, doc.Partial, doc.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stored, err := store.Save(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreSaveReportsConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock, "documents")
	require.NoError(t, err)

	doc := testDocument()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID, doc.Source, doc.URL, doc.Title, doc.Subtitle, doc.Body,
			doc.Author, doc.PublishedAt, doc.Category, doc.Tags, doc.AudioURL,
			doc.ContentHash, doc.ExtractionMethod, doc.Partial, doc.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	stored, err := store.Save(context.Background(), doc)
	require.NoError(t, err)
	require.False(t, stored, "conflict must read as a suppressed duplicate")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStoreSaveRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock, "documents")
	require.NoError(t, err)

	doc := testDocument()
	doc.ID = ""
	_, err = store.Save(context.Background(), doc)
	require.Error(t, err)
}

func TestDocumentStoreListRecent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDocumentStore(mock, "documents")
	require.NoError(t, err)

	doc := testDocument()
	rows := pgxmock.NewRows([]string{
		"id", "source", "url", "title", "subtitle", "body_text", "author",
		"published_at", "category", "tags", "audio_url", "content_hash",
		"extraction_method", "partial", "fetched_at",
	}).AddRow(
		doc.ID, doc.Source, doc.URL, doc.Title, doc.Subtitle, doc.Body,
		doc.Author, doc.PublishedAt, doc.Category, doc.Tags, doc.AudioURL,
		doc.ContentHash, doc.ExtractionMethod, doc.Partial, doc.FetchedAt,
	)
	mock.ExpectQuery("SELECT(.|\n)*FROM documents").
		WithArgs("dailyledger", 10).
		WillReturnRows(rows)

	docs, err := store.ListRecent(context.Background(), "dailyledger", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, doc.Title, docs[0].Title)
	require.Equal(t, doc.Tags, docs[0].Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDocumentStoreRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewDocumentStore(mock, "documents; DROP TABLE jobs")
	require.Error(t, err)
}
