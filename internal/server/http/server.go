// Package httpserver exposes the docshare HTTP API.
package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/service"
)

const defaultMaxUpload = 100 << 20

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	files     service.FileService
	log       *zap.Logger
	maxUpload int64
	mux       *http.ServeMux
	handler   http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes caps the request body size of uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// New constructs a Server with injected services and registers its routes.
func New(auth service.AuthService, files service.FileService, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{auth: auth, files: files, log: log, maxUpload: defaultMaxUpload, mux: http.NewServeMux()}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	s.handler = requestIDMiddleware(loggingMiddleware(s.log, recoverMiddleware(s.log, s.mux)))
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /token", s.handleToken)

	s.mux.Handle("GET /me", s.requireRole("", s.handleMe))
	s.mux.Handle("POST /ops/upload", s.requireRole(model.RoleOps, s.handleUpload))
	s.mux.Handle("GET /client/files", s.requireRole(model.RoleClient, s.handleListFiles))
	s.mux.Handle("GET /client/download/{file_id}", s.requireRole(model.RoleClient, s.handleCreateGrant))

	// Grant redemption carries no bearer token; the grant is the capability.
	s.mux.HandleFunc("GET "+service.DownloadPrefix+"{token}", s.handleRedeem)
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
