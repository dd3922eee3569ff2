// Package server exposes conversations over HTTP with JSON bodies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/pipeline"
	"github.com/ppiankov/patientsim/internal/store"
)

const maxBodyBytes = 64 << 10

// Conversations is the turn pipeline as seen by the HTTP layer
type Conversations interface {
	StartConversation(ctx context.Context, req pipeline.StartRequest) (*pipeline.TurnResult, error)
	HandleTurn(ctx context.Context, conversationID, text string) (*pipeline.TurnResult, error)
	Transcript(ctx context.Context, conversationID string) ([]model.TurnEntry, error)
	Patients() ([]patient.Summary, error)
}

// Server routes HTTP requests to the pipeline
type Server struct {
	conversations Conversations
	log           *zap.Logger
	router        chi.Router
}

// New creates a server
func New(conversations Conversations, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{conversations: conversations, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/patients", s.listPatients)
		r.Post("/conversations", s.createConversation)
		r.Post("/conversations/{id}/messages", s.postMessage)
		r.Get("/conversations/{id}/transcript", s.transcript)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, cfg model.ServerConfig) error {
	handler := s.Handler()
	if cfg.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", cfg.Addr), zap.Bool("h2c", cfg.H2C))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req pipeline.StartRequest
	if err := decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	res, err := s.conversations.StartConversation(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("text is empty"))
		return
	}

	res, err := s.conversations.HandleTurn(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) transcript(w http.ResponseWriter, r *http.Request) {
	turns, err := s.conversations.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if turns == nil {
		turns = []model.TurnEntry{}
	}
	s.writeJSON(w, http.StatusOK, turns)
}

func (s *Server) listPatients(w http.ResponseWriter, r *http.Request) {
	list, err := s.conversations.Patients()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []patient.Summary{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// fail maps pipeline errors to status codes
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, patient.ErrUnknownPatient):
		s.writeError(w, r, http.StatusNotFound, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", zap.Error(err))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// logRequests writes one log line per request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}
