// Package httpapi exposes the pipeline triggers over HTTP: the Intercom
// webhook, tenant-scoped import, sweep, process and backfill endpoints, and a
// health check.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/threadline/internal/core/ports/driving"
	"github.com/custodia-labs/threadline/internal/logger"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Services are the driving ports the handlers call.
type Services struct {
	Importer   driving.ConversationImporter
	Processor  driving.DocumentProcessor
	Sweeper    driving.Sweeper
	Backfiller driving.EmbeddingBackfiller
	Documents  driving.DocumentService
}

// Options configures authentication.
type Options struct {
	// JWTSecret verifies HS256 bearer tokens on /api routes. Required.
	JWTSecret string

	// WebhookSecret enables X-Hub-Signature verification when set.
	WebhookSecret string

	// WebhookUser is recorded as the importing user for webhook deliveries.
	WebhookUser string
}

// Server routes trigger requests to the pipeline services. Work started in
// the background outlives its request and is tracked until Wait returns.
type Server struct {
	services Services
	opts     Options
	validate *validator.Validate
	router   chi.Router

	// baseCtx is the parent of background work. cancel stops it.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server and registers its routes.
func NewServer(services Services, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		services: services,
		opts:     opts,
		validate: newValidator(),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/intercom/{appID}", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/import", s.handleImport)
		r.Get("/import/jobs/{jobID}", s.handleGetJob)
		r.Post("/import/jobs/{jobID}/continue", s.handleContinue)

		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{documentID}", s.handleGetDocument)
		r.Post("/documents/sweep", s.handleSweep)
		r.Post("/documents/{documentID}/process", s.handleProcess)

		r.Post("/embeddings/backfill", s.handleBackfill)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// shutdownTimeout and waits for background work.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http shutdown incomplete", "error", err)
	}
	s.cancel()
	s.Wait()
	return nil
}

// Wait blocks until every background task started by a request has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close cancels background work and waits for it.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// background runs fn detached from the request that started it.
func (s *Server) background(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.baseCtx); err != nil {
			logger.Errorw("background task failed", "task", name, "error", err)
		}
	}()
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
