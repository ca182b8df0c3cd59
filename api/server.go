package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"jobmap/pipeline"
	"jobmap/reduce"
)

// Server exposes the clustering pipeline over HTTP.
type Server struct {
	runner   *pipeline.Runner
	defaults pipeline.Options
	tsne     *reduce.TSNE
	logger   *zap.Logger
	port     int
}

// NewServer creates a new API server. tsne configures requests that ask
// for a t-SNE projection.
func NewServer(runner *pipeline.Runner, defaults pipeline.Options, tsne *reduce.TSNE, port int, logger *zap.Logger) *Server {
	return &Server{runner: runner, defaults: defaults, tsne: tsne, port: port, logger: logger}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/cluster", s.ClusterHandler)
	mux.HandleFunc("/api/counts", s.CountHandler)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Starting API server", zap.Int("port", s.port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
