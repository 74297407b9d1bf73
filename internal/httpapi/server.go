// Package httpapi exposes the thin HTTP entry points around the pipeline:
// the authenticated cron trigger, publish, and the subscription endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"TechDigest/internal/infrastructure/storage"
	"TechDigest/internal/ports"
	"TechDigest/internal/usecase"
)

// Server routes HTTP requests to the pipeline use cases.
type Server struct {
	generator   *usecase.Generator
	publisher   *usecase.Publisher
	editions    ports.EditionRepository
	subscribers ports.SubscriberRepository
	cronSecret  string
	logger      *slog.Logger
}

// Deps carries everything the server needs.
type Deps struct {
	Generator   *usecase.Generator
	Publisher   *usecase.Publisher
	Editions    ports.EditionRepository
	Subscribers ports.SubscriberRepository
	CronSecret  string
	Logger      *slog.Logger
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewServer wires the route handlers.
func NewServer(deps Deps) *Server {
	return &Server{
		generator:   deps.Generator,
		publisher:   deps.Publisher,
		editions:    deps.Editions,
		subscribers: deps.Subscribers,
		cronSecret:  deps.CronSecret,
		logger:      deps.Logger,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/cron", s.handleCron)
	r.Post("/api/editions/{id}/publish", s.handlePublish)
	r.Delete("/api/editions/{id}", s.handleDelete)
	r.Post("/api/subscribe", s.handleSubscribe)
	r.Get("/unsubscribe", s.handleUnsubscribe)

	return r
}

// handleCron runs the generation pipeline behind a bearer secret.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" || r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
		respond(w, http.StatusUnauthorized, apiResponse{Success: false, Message: "unauthorized"})
		return
	}

	edition, err := s.generator.Generate(r.Context())
	if err != nil {
		s.error("generation failed", err)
		respond(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to generate edition"})
		return
	}

	respond(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "edition generated",
		Data:    map[string]any{"id": edition.ID, "edition_number": edition.EditionNumber},
	})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := s.publisher.Publish(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrEditionNotFound) {
			respond(w, http.StatusNotFound, apiResponse{Success: false, Message: "edition not found"})
			return
		}
		s.error("publish failed", err)
		respond(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to publish edition", Data: summary})
		return
	}

	respond(w, http.StatusOK, apiResponse{Success: true, Message: publishMessage(summary), Data: summary})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.editions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrEditionNotFound) {
			respond(w, http.StatusNotFound, apiResponse{Success: false, Message: "edition not found"})
			return
		}
		s.error("delete failed", err)
		respond(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to delete edition"})
		return
	}

	respond(w, http.StatusOK, apiResponse{Success: true, Message: "edition deleted and sequence renumbered"})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Email == "" {
		respond(w, http.StatusBadRequest, apiResponse{Success: false, Message: "a valid email is required"})
		return
	}

	if _, err := s.subscribers.Subscribe(r.Context(), payload.Email); err != nil {
		if errors.Is(err, storage.ErrAlreadySubscribed) {
			respond(w, http.StatusOK, apiResponse{Success: true, Message: "you are already on the list"})
			return
		}
		s.error("subscribe failed", err)
		respond(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to subscribe"})
		return
	}

	respond(w, http.StatusOK, apiResponse{Success: true, Message: "subscribed, welcome aboard"})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respond(w, http.StatusBadRequest, apiResponse{Success: false, Message: "missing token"})
		return
	}

	if err := s.subscribers.UnsubscribeByToken(r.Context(), token); err != nil {
		if errors.Is(err, storage.ErrUnknownToken) {
			respond(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid or expired unsubscribe link"})
			return
		}
		s.error("unsubscribe failed", err)
		respond(w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to unsubscribe"})
		return
	}

	respond(w, http.StatusOK, apiResponse{Success: true, Message: "subscription cancelled"})
}

func publishMessage(summary usecase.PublishSummary) string {
	switch summary.Outcome {
	case usecase.OutcomeAlreadyPublished:
		return "this edition is already published"
	case usecase.OutcomeNoRecipients:
		return "no active subscribers to send to"
	default:
		return "edition published"
	}
}

func respond(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) error(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
