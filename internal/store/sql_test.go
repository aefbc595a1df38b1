package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"feedpipe/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "feedpipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addFeed(t *testing.T, s Store, url, title string) model.Feed {
	t.Helper()
	f := model.NewFeed(url, title)
	require.NoError(t, s.AddFeed(context.Background(), f))
	return f
}

func TestSQLStore_UpsertIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	f := addFeed(t, s, "https://example.com/rss", "Example")

	batch := []model.Article{
		testArticle("https://example.com/a", "A"),
		testArticle("https://example.com/b", "B"),
	}

	res, err := s.UpsertMany(ctx, f.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 2}, res)

	res, err = s.UpsertMany(ctx, f.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Duplicates: 2}, res)

	all, err := s.ListArticles(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLStore_FirstWriteWinsAcrossFeeds(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	f1 := addFeed(t, s, "https://one.example.com/rss", "One")
	f2 := addFeed(t, s, "https://two.example.com/rss", "Two")

	_, err := s.UpsertMany(ctx, f1.ID, []model.Article{testArticle("https://shared.example.com/x", "First")})
	require.NoError(t, err)
	res, err := s.UpsertMany(ctx, f2.ID, []model.Article{testArticle("https://shared.example.com/x", "Second")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)

	got, err := s.GetArticle(ctx, "https://shared.example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
	assert.Equal(t, f1.ID, got.FeedID)
	assert.Equal(t, "<p>body of First</p>", got.Description)
	assert.True(t, got.PublishedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestSQLStore_RowFailureDoesNotAbortBatch(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Unknown feed id violates the foreign key for every row.
	res, err := s.UpsertMany(ctx, "missing-feed", []model.Article{testArticle("https://example.com/a", "A")})
	require.Error(t, err)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Errs, 1)
	assert.Equal(t, 1, res.Failed)

	f := addFeed(t, s, "https://example.com/rss", "Example")
	res, err = s.UpsertMany(ctx, f.ID, []model.Article{testArticle("https://example.com/a", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestSQLStore_EmptyURLStoredOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	f := addFeed(t, s, "https://example.com/rss", "Example")

	res, err := s.UpsertMany(ctx, f.ID, []model.Article{testArticle("", "first"), testArticle("", "second")})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 1, Duplicates: 1}, res)
}

func TestSQLStore_SetCategoryOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	f := addFeed(t, s, "https://example.com/rss", "Example")
	_, err := s.UpsertMany(ctx, f.ID, []model.Article{
		testArticle("https://example.com/a", "A"),
		testArticle("https://example.com/b", "B"),
	})
	require.NoError(t, err)

	pending, err := s.ListUncategorized(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, s.SetCategory(ctx, "https://example.com/a", model.CategoryHealth))
	assert.ErrorIs(t, s.SetCategory(ctx, "https://example.com/a", model.CategoryBusiness), ErrAlreadyCategorized)
	assert.ErrorIs(t, s.SetCategory(ctx, "https://example.com/zzz", model.CategoryBusiness), ErrNotFound)

	got, err := s.GetArticle(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryHealth, got.Category)

	pending, err = s.ListUncategorized(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://example.com/b", pending[0].URL)
}

func TestSQLStore_FeedRegistry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	beta := addFeed(t, s, "https://b.example.com/rss", "Beta")
	alpha := addFeed(t, s, "https://a.example.com/rss", "Alpha")
	assert.ErrorIs(t, s.AddFeed(ctx, model.NewFeed("https://a.example.com/rss", "dup")), ErrFeedExists)

	feeds, err := s.ListActiveFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, alpha.ID, feeds[0].ID)
	assert.Equal(t, beta.ID, feeds[1].ID)

	require.NoError(t, s.UpdateFeed(ctx, beta.ID, model.FeedUpdate{Status: model.FeedStatusError, ErrorMessage: "fetch failed"}))
	feeds, err = s.ListActiveFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)

	got, err := s.GetFeed(ctx, beta.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedStatusError, got.Status)
	assert.Equal(t, "fetch failed", got.ErrorMessage)
	assert.Nil(t, got.LastFetched)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.UpdateFeed(ctx, beta.ID, model.FeedUpdate{Status: model.FeedStatusActive, LastFetched: &now}))
	got, err = s.GetFeed(ctx, beta.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FeedStatusActive, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, "Beta", got.Title)
	require.NotNil(t, got.LastFetched)
	assert.True(t, now.Equal(*got.LastFetched))

	assert.ErrorIs(t, s.UpdateFeed(ctx, "nope", model.FeedUpdate{Status: model.FeedStatusActive}), ErrNotFound)
	all, err := s.ListFeeds(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
