package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"feedpipe/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS feeds (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		last_fetched TIMESTAMP NULL,
		error_message TEXT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		feed_id TEXT NOT NULL REFERENCES feeds(id),
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		guid TEXT NOT NULL DEFAULT '',
		description TEXT NULL,
		published_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		category TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles (feed_id)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at)`,
}

var (
	feedColumns    = []string{"id", "url", "title", "status", "last_fetched", "error_message", "created_at"}
	articleColumns = []string{"url", "feed_id", "title", "guid", "description", "published_at", "created_at", "category"}
)

// SQLStore implements Store on Postgres or SQLite. Dedup relies on the
// UNIQUE constraint on articles.url together with ON CONFLICT DO NOTHING.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQL opens the database for driver and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		db  *sql.DB
		err error
		ph  sq.PlaceholderFormat
	)

	switch driver {
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		ph = sq.Dollar
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		db, err = sql.Open("sqlite", withSQLitePragmas(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		ph = sq.Question
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	s := &SQLStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(ph)}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// withSQLitePragmas applies pragmas on every new connection.
func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Migrate creates tables and indexes if they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// --- feed registry ---

func (s *SQLStore) ListActiveFeeds(ctx context.Context) ([]model.Feed, error) {
	return s.queryFeeds(ctx, s.sb.Select(feedColumns...).From("feeds").
		Where(sq.Eq{"status": string(model.FeedStatusActive)}).
		OrderBy("title", "created_at"))
}

func (s *SQLStore) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	return s.queryFeeds(ctx, s.sb.Select(feedColumns...).From("feeds").OrderBy("title", "created_at"))
}

func (s *SQLStore) GetFeed(ctx context.Context, id string) (*model.Feed, error) {
	feeds, err := s.queryFeeds(ctx, s.sb.Select(feedColumns...).From("feeds").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, ErrNotFound
	}
	return &feeds[0], nil
}

func (s *SQLStore) AddFeed(ctx context.Context, feed model.Feed) error {
	query, args, err := s.sb.Insert("feeds").
		Columns(feedColumns...).
		Values(feed.ID, feed.URL, feed.Title, string(feed.Status), nullTime(feed.LastFetched), nullString(feed.ErrorMessage), feed.CreatedAt.UTC()).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert feed: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFeedExists
	}
	return nil
}

func (s *SQLStore) UpdateFeed(ctx context.Context, id string, u model.FeedUpdate) error {
	set := map[string]any{
		"status":        string(u.Status),
		"error_message": nullString(u.ErrorMessage),
	}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.LastFetched != nil {
		set["last_fetched"] = u.LastFetched.UTC()
	}

	query, args, err := s.sb.Update("feeds").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update feed: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update feed %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) queryFeeds(ctx context.Context, b sq.SelectBuilder) ([]model.Feed, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feed query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []model.Feed
	for rows.Next() {
		var (
			f           model.Feed
			status      string
			lastFetched sql.NullTime
			errMsg      sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.URL, &f.Title, &status, &lastFetched, &errMsg, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		f.Status = model.FeedStatus(status)
		if lastFetched.Valid {
			t := lastFetched.Time.UTC()
			f.LastFetched = &t
		}
		f.ErrorMessage = errMsg.String
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return feeds, nil
}

// --- articles ---

// UpsertMany inserts each article on its own; a conflicting URL is counted as
// a duplicate and the stored row is left untouched.
func (s *SQLStore) UpsertMany(ctx context.Context, feedID string, articles []model.Article) (UpsertResult, error) {
	var (
		res  UpsertResult
		perr = &PersistenceError{FeedID: feedID}
	)

	for _, a := range articles {
		query, args, err := s.sb.Insert("articles").
			Columns("id", "feed_id", "title", "url", "guid", "description", "published_at", "created_at").
			Values(uuid.NewString(), feedID, a.Title, a.URL, a.GUID, nullString(a.Description), a.PublishedAt.UTC(), a.CreatedAt.UTC()).
			Suffix("ON CONFLICT (url) DO NOTHING").
			ToSql()
		if err != nil {
			res.Failed++
			perr.add(fmt.Errorf("build insert %q: %w", a.URL, err))
			continue
		}

		r, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			res.Failed++
			perr.add(fmt.Errorf("insert %q: %w", a.URL, err))
			continue
		}
		n, err := r.RowsAffected()
		if err != nil {
			res.Failed++
			perr.add(fmt.Errorf("rows affected %q: %w", a.URL, err))
			continue
		}
		if n == 0 {
			res.Duplicates++
		} else {
			res.Inserted++
		}
	}

	return res, perr.orNil()
}

func (s *SQLStore) GetArticle(ctx context.Context, url string) (*model.Article, error) {
	articles, err := s.queryArticles(ctx, s.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"url": url}))
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNotFound
	}
	return &articles[0], nil
}

func (s *SQLStore) ListArticles(ctx context.Context, limit int) ([]model.Article, error) {
	b := s.sb.Select(articleColumns...).From("articles").OrderBy("published_at DESC", "url")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, b)
}

func (s *SQLStore) ListUncategorized(ctx context.Context, limit int) ([]model.Article, error) {
	b := s.sb.Select(articleColumns...).From("articles").
		Where(sq.Eq{"category": nil}).
		OrderBy("created_at", "url")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, b)
}

// SetCategory applies a label only while the article has none.
func (s *SQLStore) SetCategory(ctx context.Context, url string, category model.Category) error {
	query, args, err := s.sb.Update("articles").
		Set("category", string(category)).
		Where(sq.Eq{"url": url, "category": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set category: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set category %q: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set category %q: %w", url, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetArticle(ctx, url); err != nil {
		return err
	}
	return ErrAlreadyCategorized
}

func (s *SQLStore) queryArticles(ctx context.Context, b sq.SelectBuilder) ([]model.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var (
			a           model.Article
			description sql.NullString
			category    sql.NullString
		)
		if err := rows.Scan(&a.URL, &a.FeedID, &a.Title, &a.GUID, &description, &a.PublishedAt, &a.CreatedAt, &category); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Description = description.String
		a.Category = model.Category(category.String)
		a.PublishedAt = a.PublishedAt.UTC()
		a.CreatedAt = a.CreatedAt.UTC()
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ Store = (*SQLStore)(nil)
