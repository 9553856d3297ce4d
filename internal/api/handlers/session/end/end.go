// Package end реализует HTTP-обработчик явного завершения сессии.
package end

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/services/session"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Service определяет методы бизнес-логики завершения сессии.
type Service interface {
	End(ctx context.Context, userID, sessionID string) (*models.Session, int64, error)
}

// Handler обрабатывает HTTP-запросы завершения сессии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Завершение сессии
// @Description Завершает активную сессию; если таймер уже истёк, сессия помечается как expired
// @Tags Sessions
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор сессии"
// @Success 200 {object} map[string]any "Сессия и фактическая длительность в секундах"
// @Failure 400 {object} response.ErrorResponse "Сессия уже завершена или истекла"
// @Failure 403 {object} response.ErrorResponse "Сессия принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions/{id}/end [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.end"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserID(r.Context())
	if !ok {
		log.Error("user id is missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sessionID := chi.URLParam(r, "id")

	ended, durationUsed, err := h.service.End(r.Context(), userID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotSessionOwner):
			log.Info("session belongs to another user", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("session belongs to another user"))
		case errors.Is(err, repository.ErrSessionNotFound):
			log.Info("session not found", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("session not found"))
		case errors.Is(err, repository.ErrSessionAlreadyEnded):
			log.Info("session already ended", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("session already ended"))
		case errors.Is(err, repository.ErrSessionExpired):
			log.Info("session expired", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("session expired"))
		default:
			log.Error("failed to end session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to end session"))
		}
		return
	}

	log.Info("session ended",
		slog.String("session_id", sessionID),
		slog.Int64("duration_used_seconds", durationUsed))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session":               ended,
		"duration_used_seconds": durationUsed,
	}))
}
