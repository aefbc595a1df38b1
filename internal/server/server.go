package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"feedpipe/internal/model"
	"feedpipe/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Ingestor runs the feed pipeline. *ingest.Pipeline satisfies it.
type Ingestor interface {
	Run(ctx context.Context) (model.RunReport, error)
	RunFeed(ctx context.Context, feedID string) (model.FeedResult, error)
}

// Labeler categorizes a single article. *categorize.Categorizer satisfies it.
type Labeler interface {
	Categorize(ctx context.Context, title, description string) model.Category
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	store    store.Store
	ingestor Ingestor
	labeler  Labeler
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
}

func NewServer(st store.Store, ingestor Ingestor, labeler Labeler, logger *zap.Logger, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	s := &Server{
		store:    st,
		ingestor: ingestor,
		labeler:  labeler,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(metricsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/feeds/fetch", s.handleFetchAll).Methods(http.MethodPost)
	api.HandleFunc("/feeds", s.handleListFeeds).Methods(http.MethodGet)
	api.HandleFunc("/feeds", s.handleAddFeed).Methods(http.MethodPost)
	api.HandleFunc("/feeds/{id}/fetch", s.handleFetchOne).Methods(http.MethodPost)
	api.HandleFunc("/feeds/{id}/activate", s.handleActivateFeed).Methods(http.MethodPost)
	api.HandleFunc("/articles", s.handleListArticles).Methods(http.MethodGet)
	api.HandleFunc("/categorize", s.handleCategorize).Methods(http.MethodPost)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.logger.Info("Web server listening", zap.String("addr", ln.Addr().String()))
	return s.server.Serve(ln)
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
