package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"ragqa/config"
	"ragqa/internal/domain"
	"ragqa/internal/usecase"
)

// Server exposes the answerer over HTTP.
type Server struct {
	answerer *usecase.Lazy[*usecase.Answerer]
	cfg      config.ServerConfig
	logger   *log.Logger
}

func New(answerer *usecase.Lazy[*usecase.Answerer], cfg config.ServerConfig, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{answerer: answerer, cfg: cfg, logger: logger}
}

type answerRequest struct {
	Question *string `json:"question"`
	Image    *string `json:"image"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleAnswer)
	mux.HandleFunc("POST /api", s.handleAnswer)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.NewString()
	logger := s.logger.With("request_id", reqID)
	w.Header().Set("X-Request-ID", reqID)

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Question == nil {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	q := domain.Query{Question: *req.Question}
	if req.Image != nil {
		q.Image = *req.Image
	}

	// The runtime outlives this request, so its build must not inherit the
	// request deadline.
	answerer, err := s.answerer.Get(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("runtime unavailable", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	ans, err := answerer.Answer(ctx, q)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("request timed out", "elapsed", time.Since(start))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
		return
	}
	if err != nil {
		logger.Error("answer failed", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	logger.Info("answered",
		"image", q.HasImage(),
		"links", len(ans.Links),
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.answerer.Loaded()
	switch {
	case !loaded:
		writeJSON(w, http.StatusOK, healthResponse{Status: "pending"})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
	default:
		a, _ := s.answerer.Get(r.Context())
		rt := a.Runtime()
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Chunks: rt.Chunks.Len(),
			Model:  rt.Embedder.ModelName(),
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
