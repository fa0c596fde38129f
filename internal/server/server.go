// Package server exposes the lineage builder over a local HTTP API so
// desktop frontends can submit query history and poll for results.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/querylens/querylens/internal/history"
	_ "github.com/querylens/querylens/internal/history/sources/jsonfile" // json history source for watch mode
	"github.com/querylens/querylens/internal/state"
	"github.com/querylens/querylens/internal/worker"
	"github.com/querylens/querylens/pkg/lineage"
)

// Server is the main API server.
type Server struct {
	store   *state.Store
	pool    *worker.Pool
	port    int
	watch   string
	options lineage.Options
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]*worker.Response // nil until the build completes
	latest   *worker.Response
}

// Config holds configuration for the API server.
type Config struct {
	Port    int
	Watch   string          // history file to watch; empty disables watching
	Options lineage.Options // build options for watch-triggered rebuilds
	Store   *state.Store    // optional snapshot persistence
	Workers int
	Logger  *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		store:    cfg.Store,
		pool:     worker.NewPool(cfg.Workers, logger),
		port:     cfg.Port,
		watch:    cfg.Watch,
		options:  cfg.Options,
		logger:   logger,
		inflight: make(map[string]*worker.Response),
	}
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Build workers and the response dispatcher
	eg.Go(func() error {
		return s.pool.Run(egctx)
	})
	eg.Go(func() error {
		s.dispatch()
		return nil
	})

	// Start file watcher if enabled
	if s.watch != "" {
		eg.Go(func() error {
			return s.watchHistory(egctx)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Handler returns the route tree without the middleware stack, for
// in-process use.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	s.routes(r)
	return r
}

// dispatch moves completed builds from the worker pool into the
// in-flight registry where the polling endpoint can find them. It
// returns when the pool shuts down.
func (s *Server) dispatch() {
	for resp := range s.pool.Responses() {
		s.mu.Lock()
		if _, ok := s.inflight[resp.RequestID]; ok {
			r := resp
			s.inflight[resp.RequestID] = &r
		}
		s.mu.Unlock()
	}
}

// watchHistory watches the configured history file and rebuilds the
// graph when it changes. The parent directory is watched so editors
// that replace the file on save are still seen.
func (s *Server) watchHistory(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(s.watch)); err != nil {
		s.logger.Error("failed to watch history directory", "error", err)
		// Don't fail - continue without watching
	}

	// Initial build so the latest endpoint has data before the first change
	s.rebuildFromFile(ctx)

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(s.watch) {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("history file changed, rebuilding", "file", event.Name)
				s.rebuildFromFile(ctx)
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// rebuildFromFile reads the watched history file and replaces the
// cached latest build. The file is opened fresh each time so a file
// that appears after startup is picked up.
func (s *Server) rebuildFromFile(ctx context.Context) {
	cfg := history.Config{Type: "json", Path: s.watch}

	src, err := history.NewSource(cfg, s.logger)
	if err != nil {
		s.logger.Error("failed to create history source", "error", err)
		return
	}
	if err := src.Open(ctx, cfg); err != nil {
		s.logger.Error("failed to open history file", "error", err)
		return
	}
	defer func() { _ = src.Close() }()

	entries, err := src.Entries(ctx)
	if err != nil {
		s.logger.Error("failed to read history file", "error", err)
		return
	}

	resp := s.pool.Handle(worker.Request{HistoryEntries: entries, Options: s.options})

	s.mu.Lock()
	s.latest = &resp
	s.mu.Unlock()

	s.logger.Info("rebuilt lineage graph", "entries", len(entries), "ok", resp.Ok)
}
