// Package summary реализует HTTP-обработчик прикрепления итога к сессии.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/session"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Request — входные данные прикрепления итога.
type Request struct {
	Summary string `json:"summary" validate:"required"`
}

// Service определяет методы бизнес-логики прикрепления итога.
type Service interface {
	AttachSummary(ctx context.Context, userID, sessionID, summary string) error
}

// Handler обрабатывает HTTP-запросы прикрепления итога.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Прикрепление итога сессии
// @Description Сохраняет краткий итог диалога; допустимо и для завершённых сессий
// @Tags Sessions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор сессии"
// @Param request body Request true "Текст итога"
// @Success 200 {object} map[string]any "Итог сохранён"
// @Failure 400 {object} response.ErrorResponse "Отсутствует текст итога"
// @Failure 403 {object} response.ErrorResponse "Сессия принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /sessions/{id}/summary [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.summary"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("summary is required"))
		return
	}

	if err := h.service.AttachSummary(r.Context(), userID, sessionID, req.Summary); err != nil {
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
			log.Error("failed to attach summary", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to attach summary"))
		}
		return
	}

	log.Info("summary attached", slog.String("session_id", sessionID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": sessionID,
	}))
}
