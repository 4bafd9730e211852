// Package httpapi serves recommendations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/logging"
	"github.com/darshil0/DineAI/internal/port"
)

const maxBodyBytes = 1 << 20

// Counter reports how many records the vector store holds.
type Counter interface {
	Count() int
}

type Options struct {
	Addr string
	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables limiting.
	RateLimit       int
	ShutdownTimeout time.Duration
}

type Server struct {
	recommender port.Recommender
	store       Counter
	opts        Options
	logger      zerolog.Logger
	validate    *validator.Validate
}

func NewServer(recommender port.Recommender, store Counter, opts Options, logger zerolog.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		recommender: recommender,
		store:       store,
		opts:        opts,
		logger:      logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe(s.logger))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Group(func(r chi.Router) {
			if s.opts.RateLimit > 0 {
				r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
			}
			r.Post("/recommendations", s.recommend)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Records: s.store.Count()})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.Ctx(ctx, s.logger)

	var profile domain.UserTasteProfile
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(profile); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid profile: "+err.Error())
		return
	}

	list, err := s.recommender.Recommend(ctx, profile)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error().Err(err).Msg("recommendation failed")
		s.writeError(w, r, http.StatusInternalServerError, "recommendations unavailable")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: logging.RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
