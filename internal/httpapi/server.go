// Package httpapi serves the tablestore entity graph over HTTP as JSON.
//
// Every route maps onto one types.Store operation. Store errors are
// translated into a JSON error body and a status code by writeError.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// Options configures a Server.
type Options struct {
	// Auth enables bearer-token authentication when its Secret is set.
	Auth AuthConfig

	// ShutdownTimeout bounds how long Serve waits for in-flight requests
	// after its context is cancelled.
	ShutdownTimeout time.Duration
}

// DefaultShutdownTimeout is used when Options.ShutdownTimeout is zero.
const DefaultShutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a Store.
type Server struct {
	store   types.Store
	logger  *zap.SugaredLogger
	auth    *authenticator
	timeout time.Duration
	handler http.Handler
}

// New creates a Server for store. A nil logger disables logging.
func New(store types.Store, logger *zap.SugaredLogger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		store:   store,
		logger:  logger,
		timeout: opts.ShutdownTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultShutdownTimeout
	}
	if opts.Auth.Enabled() {
		s.auth = newAuthenticator(opts.Auth)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /databases", s.handleCreateDatabase)
	api.HandleFunc("GET /databases", s.handleListDatabases)
	api.HandleFunc("GET /databases/{id}", s.handleGetDatabase)
	api.HandleFunc("PUT /databases/{id}", s.handleRenameDatabase)
	api.HandleFunc("DELETE /databases/{id}", s.handleDeleteDatabase)

	api.HandleFunc("POST /databases/{id}/tables", s.handleCreateTable)
	api.HandleFunc("GET /databases/{id}/tables", s.handleListTables)
	api.HandleFunc("GET /tables/{id}", s.handleGetTable)
	api.HandleFunc("PUT /tables/{id}", s.handleRenameTable)
	api.HandleFunc("DELETE /tables/{id}", s.handleDeleteTable)

	api.HandleFunc("POST /tables/{id}/columns", s.handleCreateColumn)
	api.HandleFunc("GET /tables/{id}/columns", s.handleListColumns)
	api.HandleFunc("GET /columns/{id}", s.handleGetColumn)
	api.HandleFunc("DELETE /columns/{id}", s.handleDeleteColumn)

	api.HandleFunc("POST /tables/{id}/rows", s.handleCreateRow)
	api.HandleFunc("GET /tables/{id}/rows", s.handleListRows)
	api.HandleFunc("GET /rows/{id}", s.handleGetRow)
	api.HandleFunc("PUT /rows/{id}", s.handleUpdateRow)
	api.HandleFunc("DELETE /rows/{id}", s.handleDeleteRow)

	var protected http.Handler = api
	if s.auth != nil {
		protected = s.auth.middleware(api, s.logger)
	}
	mux.Handle("/", protected)

	return s.recoverer(s.logRequests(mux))
}

// Serve listens on addr and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Infow("http server listening", "addr", ln.Addr().String(), "auth", s.auth != nil)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("shutting down http server", "timeout", s.timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
