// Package resetpassword реализует HTTP-обработчик установки нового пароля
// по одноразовому токену восстановления.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/services/auth"
)

// Request — входные данные установки нового пароля
type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// Service определяет методы бизнес-логики сброса пароля.
type Service interface {
	ResetPassword(ctx context.Context, token, rawPassword string) error
}

// Handler обрабатывает HTTP-запросы сброса пароля.
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
// @Summary Установка нового пароля
// @Description Устанавливает новый пароль по одноразовому токену восстановления
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Токен и новый пароль"
// @Success 200 {object} map[string]any "Пароль обновлён"
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации или недействительный токен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /auth/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"

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

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			log.Info("invalid or expired reset token")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid or expired reset token"))
			return
		}
		log.Error("failed to reset password", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to reset password"))
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "password updated",
	}))
}
