package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stillpoint/internal/config"
	"stillpoint/internal/domain"
	"stillpoint/internal/domain/model"
	"stillpoint/internal/domain/ports/repository"
	"stillpoint/internal/usecase"
)

// Server exposes the small client surface: create/poll jobs and register
// push devices. Everything else in this service is background work.
type Server struct {
	jobsUC  usecase.JobsUseCase
	devices repository.PushDeviceRepository
	cfg     config.APIConfig
	log     *zerolog.Logger
	server  *http.Server
}

func NewServer(jobsUC usecase.JobsUseCase, devices repository.PushDeviceRepository, cfg config.APIConfig, logger *zerolog.Logger) *Server {
	apiLog := logger.With().Str("component", "APIServer").Logger()
	return &Server{
		jobsUC:  jobsUC,
		devices: devices,
		cfg:     cfg,
		log:     &apiLog,
	}
}

// Router builds the full mux. Exposed so tests can drive it directly.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(15*time.Second), APIKey(s.cfg.APIKey, s.log))
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/devices", s.handleRegisterDevice)
	})
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("API server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type jobRequest struct {
	UserID      string   `json:"user_id"`
	EntryIDs    []string `json:"entry_ids"`
	DurationSec int      `json:"duration_sec"`
	Voice       string   `json:"voice"`
}

type jobResponse struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	AudioKey  *string  `json:"audio_key,omitempty"`
	LastError string   `json:"last_error,omitempty"`
	EntryIDs  []string `json:"entry_ids"`
	CreatedAt string   `json:"created_at"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	job, err := s.jobsUC.Enqueue(r.Context(), req.UserID, req.EntryIDs, req.DurationSec, req.Voice)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobsUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

type deviceRequest struct {
	UserID   string `json:"user_id"`
	Channel  string `json:"channel"`
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	ch := model.Channel(req.Channel)
	if req.UserID == "" || req.Token == "" || (ch != model.ChannelFCM && ch != model.ChannelWebPush) {
		writeError(w, http.StatusBadRequest, "user_id, token and channel (fcm|webpush) are required")
		return
	}
	dev := &model.PushDevice{
		UserID:   req.UserID,
		Channel:  ch,
		Token:    req.Token,
		Platform: req.Platform,
	}
	if err := s.devices.Save(r.Context(), repository.NoTX, dev); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": dev.ID})
}

func toJobResponse(job *model.Job) jobResponse {
	return jobResponse{
		ID:        job.ID,
		Status:    string(job.Status),
		AudioKey:  job.AudioKey,
		LastError: job.LastError,
		EntryIDs:  job.EntryIDs,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrJobWithNoInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
