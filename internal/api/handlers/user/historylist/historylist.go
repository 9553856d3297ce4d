// Package historylist реализует HTTP-обработчик постраничного списка
// прошлых сессий пользователя.
package historylist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service определяет методы бизнес-логики списка истории.
type Service interface {
	ListSessions(ctx context.Context, userID string, limit, offset int) (*models.SessionHistory, error)
}

// Handler обрабатывает HTTP-запросы списка истории сессий.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler с заданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История сессий
// @Description Возвращает страницу прошлых сессий; пустой список с флагом history_disabled, если хранение отключено
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param limit query int false "Размер страницы (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} map[string]any "Страница истории"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/me/sessions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.historylist"

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

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	history, err := h.service.ListSessions(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error("failed to list session history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list session history"))
		return
	}

	render.JSON(w, r, response.OKWithData(history))
}
