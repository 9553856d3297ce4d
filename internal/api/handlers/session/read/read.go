// Package read реализует HTTP-обработчик чтения одной сессии.
package read

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

// Service определяет методы бизнес-логики чтения сессии.
type Service interface {
	Get(ctx context.Context, userID, sessionID string) (*models.Session, error)
}

// Handler обрабатывает HTTP-запросы чтения сессии.
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
// @Summary Чтение сессии
// @Description Возвращает сессию владельцу; просроченная активная сессия при чтении переводится в expired
// @Tags Sessions
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор сессии"
// @Success 200 {object} map[string]any "Сессия"
// @Failure 403 {object} response.ErrorResponse "Сессия принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.read"

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

	found, err := h.service.Get(r.Context(), userID, sessionID)
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
		default:
			log.Error("failed to get session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to get session"))
		}
		return
	}

	render.JSON(w, r, response.OKWithData(found))
}
