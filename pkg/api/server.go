// Package api serves the local HTTP surface in daemon mode: the
// current interrupt and its response state, thread listings proxied
// from the platform, cached insights, and Prometheus metrics. It binds
// to loopback; remote access is a reverse proxy's problem.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/insights"
	"github.com/agentdeck/agentdeck/pkg/interrupt"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/platform"
	"github.com/agentdeck/agentdeck/pkg/telemetry"
)

// Server exposes the inbox over local HTTP.
type Server struct {
	store      *interrupt.Store
	dispatcher *interrupt.Dispatcher
	platform   *platform.Client
	insights   *insights.Store
	logger     *logging.Logger
	httpServer *http.Server
}

// Config wires a Server to its collaborators. Platform and Insights
// are optional; their routes 404 when absent.
type Config struct {
	Address    string
	Store      *interrupt.Store
	Dispatcher *interrupt.Dispatcher
	Platform   *platform.Client
	Insights   *insights.Store
	Logger     *logging.Logger
}

// NewServer creates the local API server.
func NewServer(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8765"
	}

	s := &Server{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		platform:   cfg.Platform,
		insights:   cfg.Insights,
		logger:     cfg.Logger,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/interrupt", func(r chi.Router) {
			r.Get("/", s.handleGetInterrupt)
			r.Post("/edit", s.handleEdit)
			r.Post("/response", s.handleResponse)
			r.Post("/reset", s.handleReset)
			r.Post("/submit", s.handleSubmit)
			r.Post("/ignore", s.handleIgnore)
			r.Post("/resolve", s.handleResolve)
		})

		if s.platform != nil {
			r.Get("/threads", s.handleListThreads)
			r.Get("/threads/{threadID}", s.handleGetThread)
			r.Get("/workflows", s.handleListWorkflows)
		}
		if s.insights != nil {
			r.Get("/insights", s.handleListInsights)
		}
	})

	return r
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info(logging.CategoryAPI, "listening", "", map[string]any{
		"address": s.httpServer.Addr,
	})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route tree, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// interruptView is the wire shape of the current review state.
type interruptView struct {
	Active     *interrupt.Interrupt      `json:"active"`
	Responses  []interrupt.HumanResponse `json:"responses"`
	SubmitType string                    `json:"submit_type,omitempty"`
	CanSubmit  bool                      `json:"can_submit"`
	Flags      interrupt.Flags           `json:"flags"`
}

func (s *Server) handleGetInterrupt(w http.ResponseWriter, r *http.Request) {
	view := interruptView{
		Active:    s.store.Active(),
		Responses: s.store.Responses(),
		Flags:     s.store.Flags(),
	}
	if t, ok := s.store.SelectedSubmitType(); ok {
		view.SubmitType = string(t)
		view.CanSubmit = true
	}
	respondJSON(w, view)
}

type editRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, ok := interrupt.FindByType(s.store.Responses(), interrupt.TypeEdit)
	if !ok {
		respondError(w, http.StatusNotFound, "no edit response available")
		return
	}
	if err := s.store.UpdateEdit(target, req.Key, req.Value); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.handleGetInterrupt(w, r)
}

type responseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.store.UpdateResponse(req.Text); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.handleGetInterrupt(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	target, ok := interrupt.FindByType(s.store.Responses(), interrupt.TypeEdit)
	if !ok {
		respondError(w, http.StatusNotFound, "no edit response available")
		return
	}
	if err := s.store.ResetEdits(target); err != nil {
		s.respondCoreError(w, err)
		return
	}
	s.handleGetInterrupt(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	selected, ok := s.store.SelectedSubmitType()
	if !ok {
		respondError(w, http.StatusConflict, "nothing to submit")
		return
	}
	outcome := s.dispatcher.Submit(r.Context(), s.store.Responses(), selected)
	respondOutcome(w, outcome)
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	outcome := s.dispatcher.Ignore(r.Context(), s.store.Responses())
	respondOutcome(w, outcome)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	outcome := s.dispatcher.Resolve(r.Context())
	respondOutcome(w, outcome)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	filter := platform.ThreadFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := platform.ParseThreadStatus(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
		filter.Status = status
	}

	threads, total, err := s.platform.ListThreads(r.Context(), filter)
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	if filter.Status == platform.StatusInterrupted || filter.Status == "" {
		pending := 0
		for _, t := range threads {
			if t.Status == platform.StatusInterrupted {
				pending++
			}
		}
		telemetry.SetPendingInterrupts(pending)
	}
	respondJSON(w, map[string]any{"threads": threads, "total": total})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.platform.GetThread(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, thread)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.platform.ListWorkflows(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, map[string]any{"workflows": workflows})
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	all, err := s.insights.List(r.Context())
	if err != nil {
		s.respondCoreError(w, err)
		return
	}
	respondJSON(w, map[string]any{"insights": all})
}

// respondCoreError maps structured error codes onto HTTP statuses.
func (s *Server) respondCoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeResponseNotFound, errors.ErrCodePlatformNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeArityMismatch, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeAuthToken, errors.ErrCodeAuthExpired:
		status = http.StatusUnauthorized
	case errors.ErrCodePlatformRateLimit:
		status = http.StatusTooManyRequests
	}

	s.logger.Error(logging.CategoryAPI, "request_error", err, map[string]any{
		"component": "api_server",
	})
	respondError(w, status, err.Error())
}

func respondOutcome(w http.ResponseWriter, outcome interrupt.Outcome) {
	body := map[string]any{"status": string(outcome.Status)}
	if outcome.Err != nil {
		body["error"] = outcome.Err.Error()
	}
	status := http.StatusOK
	switch outcome.Status {
	case interrupt.OutcomeRejected:
		status = http.StatusUnprocessableEntity
	case interrupt.OutcomeFailed:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message},
	})
}
