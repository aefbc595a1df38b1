package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"feedpipe/internal/ingest"
	"feedpipe/internal/model"
	"feedpipe/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
	maxRequestBody      = 1 << 20
)

// handleFetchAll runs ingestion for every active feed. The run is detached
// from the request so a client disconnect cannot abort it, and the write
// deadline is lifted so the report is delivered however long the run takes.
func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	clearWriteDeadline(w)

	report, err := s.ingestor.Run(ctx)
	if err != nil {
		s.logger.Error("Ingestion run could not start", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": report,
	})
}

func (s *Server) handleFetchOne(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	clearWriteDeadline(w)

	result, err := s.ingestor.RunFeed(context.WithoutCancel(r.Context()), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	if err != nil {
		s.logger.Error("Single feed run failed", zap.String("feed_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": model.RunReport{result},
	})
}

type categorizeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// handleCategorize always answers with a category, even on error.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Categorize handler panicked", zap.Any("panic", rec))
			writeCategoryError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	var req categorizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeCategoryError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeCategoryError(w, http.StatusBadRequest, "title is required")
		return
	}

	category := s.labeler.Categorize(r.Context(), req.Title, req.Description)
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.store.ListFeeds(r.Context())
	if err != nil {
		s.logger.Error("Failed to list feeds", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if feeds == nil {
		feeds = []model.Feed{}
	}
	writeJSON(w, http.StatusOK, feeds)
}

type addFeedRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) handleAddFeed(w http.ResponseWriter, r *http.Request) {
	var req addFeedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ValidateFeedURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := model.NewFeed(strings.TrimSpace(req.URL), strings.TrimSpace(req.Title))
	err := s.store.AddFeed(r.Context(), f)
	if errors.Is(err, store.ErrFeedExists) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("Failed to add feed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.logger.Info("Feed registered", zap.String("feed_id", f.ID), zap.String("url", f.URL))
	writeJSON(w, http.StatusCreated, f)
}

// handleActivateFeed puts an errored feed back into the run selection.
func (s *Server) handleActivateFeed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	f, err := ActivateFeed(r.Context(), s.store, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to activate feed", zap.String("feed_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	limit := defaultArticleLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxArticleLimit)
	}

	articles, err := s.store.ListArticles(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list articles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ActivateFeed re-flags a feed as active and clears its error message.
func ActivateFeed(ctx context.Context, registry store.FeedRegistry, id string) (*model.Feed, error) {
	f, err := registry.GetFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := registry.UpdateFeed(ctx, id, model.FeedUpdate{Status: model.FeedStatusActive}); err != nil {
		return nil, err
	}
	f.Status = model.FeedStatusActive
	f.ErrorMessage = ""
	return f, nil
}

// ValidateFeedURL accepts absolute http(s) URLs only.
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

// clearWriteDeadline removes the server's WriteTimeout for this response.
func clearWriteDeadline(w http.ResponseWriter) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeCategoryError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error":    msg,
		"category": string(model.FallbackCategory),
	})
}

var _ Ingestor = (*ingest.Pipeline)(nil)
