package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/learner"
	"github.com/MikeSquared-Agency/closer/internal/session"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

// Conversations is the session manager as seen by the API.
type Conversations interface {
	Create(ctx context.Context) (*session.Conversation, error)
	Send(ctx context.Context, id, text string) (session.Reply, error)
	Transcript(id string) ([]analyzer.Turn, error)
	Reset(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
	Count() int
}

// StrategySource exposes the strategy record, its history and the features
// archived per session.
type StrategySource interface {
	Snapshot() *strategy.Record
	Version(ctx context.Context, version int) (*strategy.Record, error)
	ArchivedFeatures(ctx context.Context, sessionID string) ([]analyzer.Features, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	convs    Conversations
	strategy StrategySource
	httpSrv  *http.Server
}

// NewServer wires the routes. metrics may be nil.
func NewServer(port int, apiToken string, convs Conversations, strat StrategySource, metrics http.Handler) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		convs:    convs,
		strategy: strat,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/closer/status", s.status)
	if metrics != nil {
		router.Method(http.MethodGet, "/metrics", metrics)
	}

	router.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Route("/api/v1/conversations", func(r chi.Router) {
			r.Post("/", s.createConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getConversation)
				r.Delete("/", s.deleteConversation)
				r.Post("/messages", s.sendMessage)
				r.Post("/reset", s.resetConversation)
			})
		})
		r.Route("/api/v1/strategy", func(r chi.Router) {
			r.Get("/", s.getStrategy)
			r.Get("/versions/{version}", s.getStrategyVersion)
			r.Get("/features/{sessionID}", s.getArchivedFeatures)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Agent                  string  `json:"agent"`
	Status                 string  `json:"status"`
	Sessions               int     `json:"sessions"`
	StrategyVersion        int     `json:"strategy_version"`
	ConversationsCompleted int     `json:"conversations_completed"`
	ConversionRate         float64 `json:"conversion_rate"`
	LinkTiming             int     `json:"link_timing"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Agent: "closer", Status: "active"}
	if s.convs != nil {
		resp.Sessions = s.convs.Count()
	}
	if s.strategy != nil {
		rec := s.strategy.Snapshot()
		resp.StrategyVersion = rec.Version
		resp.ConversationsCompleted = rec.Metrics.ConversationsCompleted
		resp.ConversionRate = rec.Metrics.ConversionRate
		resp.LinkTiming = rec.EffectiveLinkTiming()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getStrategy(w http.ResponseWriter, r *http.Request) {
	if s.strategy == nil {
		writeError(w, http.StatusNotFound, "strategy not available")
		return
	}
	writeJSON(w, http.StatusOK, s.strategy.Snapshot())
}

func (s *Server) getStrategyVersion(w http.ResponseWriter, r *http.Request) {
	if s.strategy == nil {
		writeError(w, http.StatusNotFound, "strategy not available")
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 0 {
		writeError(w, http.StatusBadRequest, "version must be a non-negative integer")
		return
	}
	rec, err := s.strategy.Version(r.Context(), version)
	switch {
	case errors.Is(err, strategy.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("strategy version %d not found", version))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) getArchivedFeatures(w http.ResponseWriter, r *http.Request) {
	if s.strategy == nil {
		writeError(w, http.StatusNotFound, "strategy not available")
		return
	}
	features, err := s.strategy.ArchivedFeatures(r.Context(), chi.URLParam(r, "sessionID"))
	switch {
	case errors.Is(err, learner.ErrNoArchive):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		if features == nil {
			features = []analyzer.Features{}
		}
		writeJSON(w, http.StatusOK, features)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
