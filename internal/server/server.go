package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lazypower/affect/internal/boundary"
	"github.com/lazypower/affect/internal/metrics"
	"github.com/lazypower/affect/internal/store"
)

// Options configure a Server. DB may be nil when persistence is off.
type Options struct {
	DB      *store.DB
	Version string
	// InferenceTimeout bounds each evaluate call; zero means no bound.
	InferenceTimeout time.Duration
	Logger           zerolog.Logger
}

// Server is the affect HTTP API server.
type Server struct {
	adapter *boundary.Adapter
	db      *store.DB
	router  chi.Router
	version string
	timeout time.Duration
	started time.Time
	log     zerolog.Logger
}

// New creates a new Server over the given adapter.
func New(a *boundary.Adapter, opts Options) *Server {
	s := &Server{
		adapter: a,
		db:      opts.DB,
		version: opts.Version,
		timeout: opts.InferenceTimeout,
		started: time.Now(),
		log:     opts.Logger.With().Str("component", "server").Logger(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/initialize", s.handleInitialize)

		r.Get("/npcs", s.handleListNPCs)
		r.Post("/npcs", s.handleCreateNPC)
		r.Route("/npcs/{npcID}", func(r chi.Router) {
			r.Delete("/", s.handleRemoveNPC)
			r.Post("/evaluate", s.handleEvaluate)
			r.Get("/emotion", s.handleEmotion)
			r.Get("/memory", s.handleMemory)
			r.Delete("/memory", s.handleClearMemory)
			r.Post("/advance", s.handleAdvance)
		})
	})

	s.router = r
}

// instrument counts requests by route pattern and logs them at debug.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":      "ok",
		"version":     s.version,
		"uptime":      time.Since(s.started).Seconds(),
		"initialized": s.adapter.Initialized(),
		"handles":     s.adapter.Outstanding(),
		"database":    false,
	}
	if s.db != nil {
		body["database"] = s.db.Ping() == nil
		body["db_path"] = s.db.Path
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
