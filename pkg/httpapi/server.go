// Package httpapi serves a small JSON API over the skill index. It is
// a read-mostly surface for dashboards and scripts: browsing, search,
// details, tags, and an explicit rebuild trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jingkaihe/skillcortex/pkg/index"
	"github.com/jingkaihe/skillcortex/pkg/logger"
	"github.com/jingkaihe/skillcortex/pkg/query"
	"github.com/jingkaihe/skillcortex/pkg/tags"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

// Server is the HTTP API server.
type Server struct {
	router   *mux.Router
	store    *index.Store
	engine   *query.Engine
	registry *tags.Registry
	server   *http.Server
	addr     string
}

// NewServer creates the API server listening on addr.
func NewServer(addr string, store *index.Store, engine *query.Engine, registry *tags.Registry) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		store:    store,
		engine:   engine,
		registry: registry,
		addr:     addr,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tree", s.handleTree).Methods("GET")
	api.HandleFunc("/skills", s.handleSearch).Methods("GET")
	api.HandleFunc("/skills/{id:.+}", s.handleDetails).Methods("GET")
	api.HandleFunc("/tags", s.handleListTags).Methods("GET")
	api.HandleFunc("/rebuild", s.handleRebuild).Methods("POST")

	s.router.Use(s.loggingMiddleware)
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Tree(r.URL.Query().Get("path")))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filterTags []string
	for _, raw := range q["tag"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filterTags = append(filterTags, tag)
			}
		}
	}
	results := s.engine.Search(q.Get("q"), filterTags)
	s.writeJSON(w, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	entry, err := s.engine.Details(mux.Vars(r)["id"])
	if err != nil {
		if skilltypes.IsNotFound(err) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, entry)
}

func (s *Server) handleListTags(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{"tags": s.registry.List()})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Rebuild(r.Context())
	response := map[string]interface{}{
		"stats":    stats,
		"problems": s.store.Snapshot().Problems(),
	}
	if err != nil {
		response["error"] = err.Error()
	}
	s.writeJSON(w, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
