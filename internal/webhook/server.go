package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fclairamb/docmap/internal/version"
)

const (
	// HTTP server timeouts.
	readHeaderTimeout = 10 * time.Second // Timeout for reading request headers
	shutdownTimeout   = 30 * time.Second // Timeout for graceful shutdown
)

// Server represents the webhook HTTP server.
type Server struct {
	httpServer     *http.Server
	config         *ServerConfig
	logger         *slog.Logger
	syncWorker     *SyncWorker
	syncWorkerDone chan struct{}
	cancelFunc     context.CancelFunc
}

// NewServer creates a new webhook server.
// If syncWorker is not nil, it will be started alongside the HTTP server.
func NewServer(cfg *ServerConfig, logger *slog.Logger, syncWorker *SyncWorker) *Server {
	var notifier Notifier
	if syncWorker != nil {
		notifier = syncWorker
	}
	handler := NewHandler(cfg.Secret, cfg.Ref, notifier, logger)

	return &Server{
		config:     cfg,
		logger:     logger,
		syncWorker: syncWorker,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg.Path, handler, logger),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// NewRouter wires the webhook, health and version endpoints.
func NewRouter(path string, handler *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logger))

	r.Get("/health", handler.HandleHealth)
	r.Get("/api/version", handler.HandleVersion)
	r.Post(path, handler.HandleWebhook)

	return r
}

// Start starts the HTTP server. This method blocks until the server is stopped.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting webhook server",
		"port", s.config.Port,
		"path", s.config.Path,
		"ref", s.config.Ref,
		"sync_delay", s.config.SyncDelay,
		"version", version.Version,
		"commit", version.Commit,
		"build_time", version.GitTime)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	if s.syncWorker != nil {
		s.syncWorkerDone = make(chan struct{})
		go func() {
			defer close(s.syncWorkerDone)
			s.syncWorker.Start(workerCtx)
		}()

		// Catch up with anything pushed while the server was down.
		s.syncWorker.Notify()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		cancel()
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting for a running pass.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.syncWorkerDone != nil {
		s.logger.InfoContext(ctx, "waiting for sync worker to finish")
		<-s.syncWorkerDone
		s.logger.InfoContext(ctx, "sync worker finished")
	}

	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs every request with its chi request id.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			next.ServeHTTP(wrapped, req)

			logger.InfoContext(req.Context(), "http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", wrapped.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", req.RemoteAddr,
				"request_id", middleware.GetReqID(req.Context()))
		})
	}
}
