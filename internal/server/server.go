// Package server exposes the HTTP surface: health and readiness probes,
// Prometheus metrics, and read-only JSON views of links and search results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/search"
)

const shutdownTimeout = 5 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LinkResolver loads a link with its items.
type LinkResolver interface {
	Resolve(ctx context.Context, id string) (*model.LinkWithItems, error)
}

// Searcher runs paged searches.
type Searcher interface {
	Search(ctx context.Context, query string, page, pageSize int) (*search.Page, error)
}

// Options configures a Server.
type Options struct {
	Address        string
	PageSize       int
	MaxQueryLength int
	// LinkURL turns a link id into its shareable URL.
	LinkURL func(linkID string) string
	Logger  zerolog.Logger
}

// Server hosts the HTTP handlers.
type Server struct {
	store  Pinger
	links  LinkResolver
	search Searcher
	opt    Options
	log    zerolog.Logger
	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(store Pinger, links LinkResolver, searcher Searcher, opt Options) *Server {
	if opt.PageSize <= 0 {
		opt.PageSize = search.DefaultPageSize
	}
	if opt.MaxQueryLength <= 0 {
		opt.MaxQueryLength = 100
	}
	return &Server{
		store:  store,
		links:  links,
		search: searcher,
		opt:    opt,
		log:    opt.Logger.With().Str("component", "http").Logger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.opt.Address,
			Handler:           s.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("address", s.opt.Address).Msg("http listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes returns the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/links/{id}", s.handleLink)
	r.Get("/search", s.handleSearch)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("readiness check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type linkResponse struct {
	*model.LinkWithItems
	URL string `json:"url,omitempty"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	link, err := s.links.Resolve(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	resp := linkResponse{LinkWithItems: link}
	if s.opt.LinkURL != nil {
		resp.URL = s.opt.LinkURL(link.ID)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondJSON(w, http.StatusBadRequest, errorBody("missing query parameter q"))
		return
	}
	if utf8.RuneCountInString(query) > s.opt.MaxQueryLength {
		respondJSON(w, http.StatusBadRequest, errorBody("query too long"))
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody("invalid page"))
			return
		}
		page = n
	}
	result, err := s.search.Search(r.Context(), query, page, s.opt.PageSize)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound:
		respondJSON(w, http.StatusNotFound, errorBody("not found"))
	case apperr.CodeValidation:
		respondJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		s.log.Error().Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
