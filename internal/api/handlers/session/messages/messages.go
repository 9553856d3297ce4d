// Package messages реализует HTTP-обработчик чтения переписки сессии.
// Чужие сессии и сессии пользователей с отключённой историей неотличимы
// от несуществующих: все три случая дают 404.
package messages

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
	"github.com/gdohealth/chat-backend/internal/services/retention"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Service определяет методы бизнес-логики чтения переписки.
type Service interface {
	GetMessages(ctx context.Context, userID, sessionID string) ([]models.ConversationTurn, error)
}

// Handler обрабатывает HTTP-запросы чтения переписки.
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
// @Summary Переписка сессии
// @Description Возвращает сообщения сессии в хронологическом порядке
// @Tags Sessions
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор сессии"
// @Success 200 {object} map[string]any "Сообщения сессии"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions/{id}/messages [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.messages"

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

	turns, err := h.service.GetMessages(r.Context(), userID, sessionID)
	if err != nil {
		// Не раскрываем, существует ли сессия и чья она
		switch {
		case errors.Is(err, retention.ErrNotSessionOwner),
			errors.Is(err, retention.ErrHistoryDisabled),
			errors.Is(err, repository.ErrSessionNotFound):
			log.Info("session messages unavailable", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("session not found"))
		default:
			log.Error("failed to get session messages", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to get session messages"))
		}
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": sessionID,
		"messages":   turns,
	}))
}
