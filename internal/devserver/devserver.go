// Package devserver runs the development loop: serve the build output,
// watch source files, rebuild on change and push live-reload events to
// connected browsers over SSE.
package devserver

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/starfederation/datastar-go/datastar"
	"github.com/yuuichieguchi/constela/internal/build"
	"github.com/yuuichieguchi/constela/internal/notifier"
	"golang.org/x/sync/errgroup"
)

// watchedExts are the source extensions that trigger a rebuild.
var watchedExts = map[string]bool{
	".json": true, ".md": true, ".markdown": true,
	".yaml": true, ".yml": true,
	".css": true, ".js": true, ".ts": true,
}

const debounceInterval = 100 * time.Millisecond

// Config holds configuration for the dev server.
type Config struct {
	Builder   *build.Builder
	OutDir    string
	WatchDirs []string
	Port      int
	Logger    *slog.Logger
}

// Server serves a project in development mode.
type Server struct {
	builder   *build.Builder
	outDir    string
	watchDirs []string
	port      int
	logger    *slog.Logger
	notifier  *notifier.Notifier
}

// NewServer creates a dev server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		builder:   cfg.Builder,
		outDir:    cfg.OutDir,
		watchDirs: cfg.WatchDirs,
		port:      cfg.Port,
		logger:    logger,
		notifier:  notifier.New(),
	}
}

// Notifier returns the server's notifier; rebuild triggers outside the
// watcher can broadcast through it.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Serve builds once, then starts the HTTP server and file watcher and
// blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := s.builder.Build(ctx); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("dev server listening", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)
	r.Get("/_constela/reload", s.handleReload)
	r.Handle("/*", s.fileHandler())

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		return s.watchFiles(egctx)
	})

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dev server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// handleReload is the long-lived SSE endpoint browsers subscribe to.
// Each completed rebuild pushes a reload to every connected page.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-updates:
			s.logger.Debug("pushing reload", "build", id)
			if err := sse.ExecuteScript("window.location.reload()"); err != nil {
				return
			}
		}
	}
}

// fileHandler serves the build output directory.
func (s *Server) fileHandler() http.Handler {
	fileServer := http.FileServer(http.Dir(s.outDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pretty URLs: a path without an extension maps to its
		// directory index.
		if filepath.Ext(r.URL.Path) == "" && r.URL.Path != "/" {
			index := filepath.Join(s.outDir, filepath.FromSlash(r.URL.Path), "index.html")
			if _, err := os.Stat(index); err == nil {
				http.ServeFile(w, r, index)
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

// watchFiles watches the configured source directories and rebuilds on
// change, debounced so editor save bursts trigger one build.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range s.watchDirs {
		if err := watchDirRecursive(watcher, dir); err != nil {
			s.logger.Error("failed to watch directory", "dir", dir, "error", err)
			// Continue without watching this directory.
		}
	}

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedExts[filepath.Ext(event.Name)] {
				// A created directory needs watching too.
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						_ = watchDirRecursive(watcher, event.Name)
					}
				}
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceInterval, func() {
				s.rebuild(ctx, event.Name)
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) rebuild(ctx context.Context, trigger string) {
	s.logger.Debug("file changed, rebuilding", "file", trigger)
	result, err := s.builder.Build(ctx)
	if err != nil {
		s.logger.Error("rebuild failed", "error", err)
		return
	}
	s.notifier.Broadcast(result.ID)
}

// watchDirRecursive adds a directory and all subdirectories to the
// watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
