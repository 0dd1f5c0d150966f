// Package server exposes the dataset service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/dataview/internal/config"
	"github.com/vegasq/dataview/internal/dataset"
)

// Server serves the dataset API.
type Server struct {
	cfg      config.Config
	datasets *dataset.Service
	sessions *dataset.Sessions
	logger   *zap.Logger
	handler  http.Handler
}

// New builds a Server and its handler chain.
func New(cfg config.Config, datasets *dataset.Service, sessions *dataset.Sessions, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		datasets: datasets,
		sessions: sessions,
		logger:   logger,
	}

	limiter, err := newRateLimiter(cfg.Limits.RateRequests, cfg.Limits.RateWindow, cfg.Limits.RateClients)
	if err != nil {
		return nil, err
	}

	var h http.Handler = s.routes()
	h = withTimeout(h, cfg.RequestTimeout)
	h = gzhttp.GzipHandler(h)
	h = limiter.middleware(h)
	h = accessLog(logger, h)
	h = handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowCredentials(),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Accept", "X-Requested-With"}),
	)(h)
	s.handler = h
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	dv := r.PathPrefix("/dataviewer").Subrouter()
	dv.HandleFunc("/load_dataset", s.handleLoadDataset).Methods(http.MethodPost)
	dv.HandleFunc("/page", s.handlePage).Methods(http.MethodPost)
	dv.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)

	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/page", s.handleSessionPage).Methods(http.MethodPost)
	r.HandleFunc("/query", s.handleSessionQuery).Methods(http.MethodPost)
	r.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/session/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
