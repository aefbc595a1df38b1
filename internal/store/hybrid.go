package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"feedpipe/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

const (
	keyFeedsAll      = "feeds:all"
	keyRecent        = "list:recent"
	keyUncategorized = "articles:uncategorized"
	recentLimit      = 500
)

// HybridStore keeps metadata in Redis (registry, URL claims, recent list) and
// article bodies in Badger.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore initializes databases.
// Pass badgerPath="" to keep descriptions inline in Redis.
func NewHybridStore(ctx context.Context, redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Silence default logger
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

func (s *HybridStore) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func feedKey(id string) string     { return "feed:" + id }
func feedURLKey(url string) string { return "feed:url:" + url }

// articleKey hashes the URL so arbitrary URLs make safe keys.
func articleKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "article:" + hex.EncodeToString(sum[:])
}

func categoryKey(url string) string { return articleKey(url) + ":category" }

// --- feed registry ---

func (s *HybridStore) AddFeed(ctx context.Context, feed model.Feed) error {
	ok, err := s.rdb.SetNX(ctx, feedURLKey(feed.URL), feed.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("claim feed url: %w", err)
	}
	if !ok {
		return ErrFeedExists
	}

	data, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, feedKey(feed.ID), data, 0)
	pipe.RPush(ctx, keyFeedsAll, feed.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	return nil
}

func (s *HybridStore) GetFeed(ctx context.Context, id string) (*model.Feed, error) {
	val, err := s.rdb.Get(ctx, feedKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var f model.Feed
	if err := json.Unmarshal(val, &f); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", id, err)
	}
	return &f, nil
}

func (s *HybridStore) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	ids, err := s.rdb.LRange(ctx, keyFeedsAll, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	feeds := make([]model.Feed, 0, len(ids))
	for _, id := range ids {
		f, err := s.GetFeed(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	sort.SliceStable(feeds, func(i, j int) bool { return feeds[i].Title < feeds[j].Title })
	return feeds, nil
}

func (s *HybridStore) ListActiveFeeds(ctx context.Context) ([]model.Feed, error) {
	all, err := s.ListFeeds(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, f := range all {
		if f.Status == model.FeedStatusActive {
			active = append(active, f)
		}
	}
	return active, nil
}

// UpdateFeed rewrites the feed record under optimistic locking so concurrent
// status writes do not lose each other's fields.
func (s *HybridStore) UpdateFeed(ctx context.Context, id string, u model.FeedUpdate) error {
	key := feedKey(id)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var f model.Feed
		if err := json.Unmarshal(val, &f); err != nil {
			return fmt.Errorf("decode feed %s: %w", id, err)
		}
		u.Apply(&f)

		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
}

// --- articles ---

// UpsertMany claims each URL with SETNX; a lost claim is a duplicate and the
// existing record is not touched.
func (s *HybridStore) UpsertMany(ctx context.Context, feedID string, articles []model.Article) (UpsertResult, error) {
	var (
		res  UpsertResult
		perr = &PersistenceError{FeedID: feedID}
	)

	for _, a := range articles {
		a.FeedID = feedID
		a.Category = ""

		inserted, err := s.insertArticle(ctx, a)
		switch {
		case err != nil:
			res.Failed++
			perr.add(fmt.Errorf("insert %q: %w", a.URL, err))
		case inserted:
			res.Inserted++
		default:
			res.Duplicates++
		}
	}
	return res, perr.orNil()
}

// claimArticle sets the metadata key only if absent and, in the same step,
// indexes the URL in the recent list and the uncategorized set.
var claimArticle = redis.NewScript(`
local claimed = redis.call('SETNX', KEYS[1], ARGV[1])
if claimed == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[2])
	redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[3]) - 1)
	redis.call('SADD', KEYS[3], ARGV[2])
end
return claimed
`)

// claimCategory sets the label once and always drops the URL from the
// uncategorized set. Returns -1 for an unknown article.
var claimCategory = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local set = redis.call('SETNX', KEYS[2], ARGV[1])
redis.call('SREM', KEYS[3], ARGV[2])
return set
`)

// insertArticle claims the URL first; only the winner writes the Badger body.
func (s *HybridStore) insertArticle(ctx context.Context, a model.Article) (bool, error) {
	key := articleKey(a.URL)

	meta := a
	if s.db != nil {
		meta.Description = ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return false, err
	}

	claimed, err := claimArticle.Run(ctx, s.rdb,
		[]string{key, keyRecent, keyUncategorized},
		data, a.URL, recentLimit,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("claim article: %w", err)
	}
	if claimed == 0 {
		return false, nil
	}

	if s.db == nil {
		return true, nil
	}

	// Deleting on an empty description clears any body left behind by a
	// record that no longer exists in Redis.
	err = s.db.Update(func(txn *badger.Txn) error {
		if a.Description == "" {
			return txn.Delete([]byte(key))
		}
		return txn.Set([]byte(key), []byte(a.Description))
	})
	if err != nil {
		// Keep the body inline so the claimed record is still complete.
		inline, mErr := json.Marshal(a)
		if mErr != nil {
			return true, fmt.Errorf("save description: %w", err)
		}
		if rErr := s.rdb.SetXX(ctx, key, inline, 0).Err(); rErr != nil {
			return true, fmt.Errorf("save description: %w", errors.Join(err, rErr))
		}
	}
	return true, nil
}

// GetArticle combines metadata from Redis with the body from Badger.
func (s *HybridStore) GetArticle(ctx context.Context, url string) (*model.Article, error) {
	key := articleKey(url)
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var a model.Article
	if err := json.Unmarshal(val, &a); err != nil {
		return nil, fmt.Errorf("decode article: %w", err)
	}

	cat, err := s.rdb.Get(ctx, categoryKey(url)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	a.Category = model.Category(cat)

	if s.db != nil && a.Description == "" {
		err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				a.Description = string(val)
				return nil
			})
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return nil, err
		}
	}

	return &a, nil
}

// ListArticles returns the most recently inserted articles.
func (s *HybridStore) ListArticles(ctx context.Context, limit int) ([]model.Article, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	urls, err := s.rdb.LRange(ctx, keyRecent, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return s.loadArticles(ctx, urls)
}

func (s *HybridStore) ListUncategorized(ctx context.Context, limit int) ([]model.Article, error) {
	urls, err := s.rdb.SMembers(ctx, keyUncategorized).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(urls)
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	return s.loadArticles(ctx, urls)
}

func (s *HybridStore) loadArticles(ctx context.Context, urls []string) ([]model.Article, error) {
	articles := make([]model.Article, 0, len(urls))
	for _, u := range urls {
		a, err := s.GetArticle(ctx, u)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, nil
}

// SetCategory writes the label once. The URL leaves the uncategorized set
// whether or not this call applied the label.
func (s *HybridStore) SetCategory(ctx context.Context, url string, category model.Category) error {
	res, err := claimCategory.Run(ctx, s.rdb,
		[]string{articleKey(url), categoryKey(url), keyUncategorized},
		string(category), url,
	).Int64()
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case 0:
		return ErrAlreadyCategorized
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *HybridStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

var _ Store = (*HybridStore)(nil)
