// Package syncuser реализует внутренний HTTP-обработчик синхронизации
// пользователей из WordPress. Доступ защищён общим секретом X-Internal-Key.
package syncuser

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
)

// Request — входные данные синхронизации пользователя WordPress.
type Request struct {
	WPUserID    int64      `json:"wp_user_id" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	DisplayName string     `json:"display_name" validate:"max=100"`
	CreatedAt   *time.Time `json:"created_at"`
}

// Service определяет методы бизнес-логики синхронизации пользователей.
type Service interface {
	SyncWordPressUser(ctx context.Context, wpUserID int64, email, displayName string, createdAt *time.Time) (string, string, error)
}

// Handler обрабатывает внутренние запросы синхронизации пользователей.
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
// @Summary Синхронизация пользователя из WordPress
// @Description Upsert пользователя: обновляет по wp_user_id, связывает по email или создаёт нового
// @Tags Internal
// @Accept  json
// @Produce  json
// @Param X-Internal-Key header string true "Внутренний ключ API"
// @Param request body Request true "Данные пользователя WordPress"
// @Success 200 {object} map[string]any "Идентификатор пользователя и статус upsert"
// @Failure 401 {object} response.ErrorResponse "Неверный внутренний ключ"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации данных"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /internal/sync-user [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.internalapi.syncuser"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userID, status, err := h.service.SyncWordPressUser(r.Context(), req.WPUserID, req.Email, req.DisplayName, req.CreatedAt)
	if err != nil {
		log.Error("failed to sync wordpress user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to sync user"))
		return
	}

	log.Info("wordpress user synced",
		slog.Int64("wp_user_id", req.WPUserID),
		slog.String("user_id", userID),
		slog.String("status", status))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_id": userID,
		"status":  status,
	}))
}
