package server

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"sqlite-benchmark/internal/cache"
	"sqlite-benchmark/internal/specs"
)

// Server is the HTTP facade: two JSON GET endpoints plus the static page.
type Server struct {
	cache  *cache.Cache
	logger *log.Logger
	router *mux.Router
}

func New(c *cache.Cache, staticDir string, logger *log.Logger) *Server {
	s := &Server{cache: c, logger: logger, router: mux.NewRouter()}

	s.router.HandleFunc("/api/runTest", s.handleRunTest).Methods(http.MethodGet)
	s.router.HandleFunc("/api/getSpecs", s.handleGetSpecs).Methods(http.MethodGet)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	result, err := s.cache.GetOrRun(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetSpecs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, specs.Collect())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if s.logger != nil {
		s.logger.Printf("request failed: %v", err)
	}
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": err.Error(),
		"stack": string(debug.Stack()),
	})
}
