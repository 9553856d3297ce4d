// Package devtoken реализует HTTP-обработчик выпуска токена без пароля
// для окружений разработки. В продуктивных окружениях маршрут выключен.
package devtoken

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
)

// Request — входные данные для выпуска токена
type Request struct {
	UserID string `json:"user_id" validate:"required"`
}

// Service определяет методы бизнес-логики выпуска токена.
type Service interface {
	DevToken(ctx context.Context, subject string) (string, error)
}

// Handler обрабатывает HTTP-запросы выпуска dev-токена.
type Handler struct {
	log      *slog.Logger
	service  Service
	enabled  bool
	validate *validator.Validate
}

// New создает новый экземпляр Handler. enabled управляет доступностью маршрута.
func New(log *slog.Logger, service Service, enabled bool) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		enabled:  enabled,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выпуск токена для разработки
// @Description Выпускает JWT для указанного пользователя без проверки пароля
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор пользователя"
// @Success 200 {object} map[string]any "Токен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Маршрут выключен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /auth/dev-token [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.devtoken"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if !h.enabled {
		log.Info("dev token endpoint is disabled")
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("dev tokens are disabled"))
		return
	}

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

	token, err := h.service.DevToken(r.Context(), req.UserID)
	if err != nil {
		log.Error("failed to issue dev token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to issue token"))
		return
	}

	log.Info("dev token issued", slog.String("user_id", req.UserID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
	}))
}
